package validation

import (
	"strings"

	"questloom/internal/consistency"
	"questloom/internal/generator"
	"questloom/internal/logging"
	"questloom/internal/narrative"
)

// Limits bounds acceptable narration shape.
type Limits struct {
	MaxNarrationChars int
	MinNarrationChars int
	MinSentences      int
	MaxSentences      int
}

// DefaultLimits matches the narration contract given to the generator.
func DefaultLimits() Limits {
	return Limits{
		MaxNarrationChars: 400,
		MinNarrationChars: 40,
		MinSentences:      2,
		MaxSentences:      4,
	}
}

// thirdPersonPhrases must never appear: narration is second person.
var thirdPersonPhrases = []string{"the hero", "the warrior"}

// forbiddenSuggestionPhrases are hedging forms suggestions must avoid.
var forbiddenSuggestionPhrases = []string{"you could", "you can", "you may", "what do you"}

// Validator runs the post-flight gate. It holds the consistency analyzer so
// format checks and consistency scoring happen in one pass.
type Validator struct {
	analyzer *consistency.Analyzer
	limits   Limits
}

// NewValidator creates a post-flight validator around an analyzer.
func NewValidator(analyzer *consistency.Analyzer, limits Limits) *Validator {
	return &Validator{analyzer: analyzer, limits: limits}
}

// Analyzer returns the wrapped consistency analyzer.
func (v *Validator) Analyzer() *consistency.Analyzer {
	return v.analyzer
}

// ValidateAfterResponse gates a generation result before commit. prev is
// the state the turn started from, next the candidate state with the
// turn's mutations applied. Errors discard the turn; warnings ride along.
func (v *Validator) ValidateAfterResponse(prev, next *narrative.QuestState, narration string, turn *generator.StructuredTurn) Result {
	var r Result

	if turn == nil {
		r.addError(CodeFormatViolation, "no structured turn")
		return r
	}
	if turn.Progress == nil {
		r.addError(CodeFormatViolation, "structured turn missing progress object")
	}

	lower := strings.ToLower(narration)
	if len(narration) > v.limits.MaxNarrationChars {
		r.addError(CodeFormatViolation, "narration %d chars exceeds %d", len(narration), v.limits.MaxNarrationChars)
	}
	for _, phrase := range thirdPersonPhrases {
		if strings.Contains(lower, phrase) {
			r.addError(CodeFormatViolation, "narration slips into third person (%q)", phrase)
		}
	}
	if w, ok := thirdPersonPronoun(lower); ok {
		r.addError(CodeFormatViolation, "narration slips into third person (%q)", w)
	}

	if len(narration) < v.limits.MinNarrationChars {
		r.addWarning(CodeFormatViolation, "narration only %d chars", len(narration))
	}
	if n := sentenceCount(narration); n < v.limits.MinSentences || n > v.limits.MaxSentences {
		r.addWarning(CodeFormatViolation, "narration has %d sentences, want %d-%d", n, v.limits.MinSentences, v.limits.MaxSentences)
	}
	if len(turn.SuggestedActions) == 0 {
		r.addWarning(CodeFormatViolation, "no suggested actions")
	}
	for _, action := range turn.SuggestedActions {
		if phrase, ok := containsPhrase(strings.ToLower(action), forbiddenSuggestionPhrases); ok {
			r.addWarning(CodeFormatViolation, "suggestion %q uses forbidden phrasing (%q)", action, phrase)
		}
	}

	score := v.analyzer.Analyze(consistency.Input{
		State:     next,
		Previous:  prev,
		Narration: narration,
		NewEvent:  turn.CausalEvent,
	})
	r.Consistency = &score
	for _, issue := range score.Issues {
		switch issue.Severity {
		case consistency.SeverityCritical:
			r.addError(CodeConsistencyViolation, "%s: %s", issue.Kind, issue.Description)
		case consistency.SeverityMajor:
			r.addWarning(CodeConsistencyViolation, "%s: %s", issue.Kind, issue.Description)
		}
	}

	logging.Validation("post-flight: valid=%v errors=%d warnings=%d score=%.2f",
		r.IsValid(), len(r.Errors), len(r.Warnings), score.Overall)
	return r
}

// thirdPersonPronoun scans for standalone he/she, which substring matching
// cannot do safely ("the" contains "he").
func thirdPersonPronoun(lower string) (string, bool) {
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if w == "he" || w == "she" {
			return w, true
		}
	}
	return "", false
}

func containsPhrase(text string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return p, true
		}
	}
	return "", false
}

// sentenceCount counts terminator runs; an ellipsis ends one sentence.
func sentenceCount(s string) int {
	count := 0
	inRun := false
	for _, r := range s {
		if r == '.' || r == '!' || r == '?' {
			if !inRun {
				count++
				inRun = true
			}
		} else {
			inRun = false
		}
	}
	return count
}
