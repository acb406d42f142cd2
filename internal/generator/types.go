// Package generator defines the narration-generation collaborator: prompt
// in, structured turn out, or a typed failure. The engine never depends on
// a concrete backend; the Gemini implementation here is one provider.
package generator

import (
	"context"
	"fmt"

	ctxasm "questloom/internal/context"
	"questloom/internal/narrative"
)

// StructuredContext is the assembled state payload plus free-text scene
// framing for one generation call.
type StructuredContext struct {
	Payload      *ctxasm.Payload `json:"state"`
	SceneFraming string          `json:"scene,omitempty"`
	PlayerAction string          `json:"player_action"`
}

// Progress reports the generator's view of quest advancement.
type Progress struct {
	Completed        bool `json:"completed"`
	CurrentEncounter int  `json:"current_encounter"`
}

// LocationStatus is a status change the narration established for one
// named area.
type LocationStatus string

const (
	LocationCleared    LocationStatus = "cleared"
	LocationLocked     LocationStatus = "locked"
	LocationUnlocked   LocationStatus = "unlocked"
	LocationDiscovered LocationStatus = "discovered"
	LocationDestroyed  LocationStatus = "destroyed"
	LocationThreat     LocationStatus = "threat"
	LocationSafe       LocationStatus = "safe"
)

// LocationUpdate marks one named area with a status change.
type LocationUpdate struct {
	Name   string         `json:"name"`
	Status LocationStatus `json:"status"`
}

// StructuredTurn is the required shape of a generation result. Anything
// that does not parse into this shape is a generation error; content-level
// rules are the post-flight validator's job.
type StructuredTurn struct {
	Narration        string                 `json:"narration"`
	Progress         *Progress              `json:"progress,omitempty"`
	SuggestedActions []string               `json:"suggested_actions"`
	CausalEvent      *narrative.CausalEvent `json:"causal_event,omitempty"`

	// Narrative bookkeeping extracted alongside the prose.
	NewThreads      []narrative.NarrativeThread `json:"new_threads,omitempty"`
	ResolvedThreads []string                    `json:"resolved_threads,omitempty"`
	LocationUpdates []LocationUpdate            `json:"location_updates,omitempty"`
	TensionDelta    int                         `json:"tension_delta,omitempty"`
}

// Options tunes a single generation call.
type Options struct {
	MaxOutputTokens int
	Temperature     float32
}

// Error is a typed generation failure: transport trouble or a response
// that violates the structured-turn schema.
type Error struct {
	Reason string // "transport", "schema", "empty"
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("generation failed (%s)", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Generator produces one structured turn per call.
type Generator interface {
	Generate(ctx context.Context, sc *StructuredContext, opts Options) (*StructuredTurn, error)
}

// Streamer additionally delivers partial narration text while the turn is
// being produced. onPartial receives cumulative narration fragments; only
// the returned terminal turn may drive state mutation.
type Streamer interface {
	Generator
	GenerateStream(ctx context.Context, sc *StructuredContext, opts Options, onPartial func(text string)) (*StructuredTurn, error)
}
