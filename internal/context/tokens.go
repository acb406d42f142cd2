package context

import (
	"encoding/json"
	"unicode/utf8"
)

// =============================================================================
// Token Counting Utilities
// =============================================================================
// Token estimation for context budget management. The heuristic is
// calibrated for the external generator's subword tokenizer at roughly
// 4 characters per token. This ratio is an estimate, not exact: actual
// token counts depend on the generator's vocabulary, so every budget
// carries a safety margin on top of these numbers.

// TokenCounter provides token estimation.
type TokenCounter struct {
	// Calibration factor (characters per token).
	charsPerToken float64
}

// NewTokenCounter creates a token counter with default calibration.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{charsPerToken: 4.0}
}

// CountString estimates tokens in a string, rounding up so budgets err on
// the safe side.
func (tc *TokenCounter) CountString(s string) int {
	if s == "" {
		return 0
	}
	runes := utf8.RuneCountInString(s)
	return (runes + int(tc.charsPerToken) - 1) / int(tc.charsPerToken)
}

// CountValue estimates tokens for a value's compact JSON encoding.
func (tc *TokenCounter) CountValue(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return tc.CountString(string(data))
}

// =============================================================================
// Prompt Window Budget
// =============================================================================

// WindowBudget models the overall prompt-size calculation for one turn.
// All quantities are in the same token-estimated unit.
type WindowBudget struct {
	Total           int // hard context window (e.g. 4096)
	Instruction     int // fixed instruction block
	History         int // conversation history carried into the prompt
	ResponseReserve int // tokens reserved for the generator's reply
	SafetyMargin    int // slack for estimation error
}

// Available returns the tokens left for assembled state context,
// clamped to zero.
func (w WindowBudget) Available() int {
	a := w.Total - w.Instruction - w.History - w.ResponseReserve - w.SafetyMargin
	if a < 0 {
		return 0
	}
	return a
}

// Committed returns the tokens spoken for before any state context is
// included.
func (w WindowBudget) Committed() int {
	return w.Instruction + w.History + w.ResponseReserve + w.SafetyMargin
}
