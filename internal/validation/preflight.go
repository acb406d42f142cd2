package validation

import (
	ctxasm "questloom/internal/context"
	"questloom/internal/logging"
	"questloom/internal/narrative"
)

// warnUsageRatio triggers a budget warning above this share of the window.
const warnUsageRatio = 0.90

// ValidateBeforeCall runs the cheap fail-fast gate before any generator
// call: state invariants and token budget. It is a pure function of its
// inputs; running it twice on unchanged inputs yields the same result.
func ValidateBeforeCall(s *narrative.QuestState, payload *ctxasm.Payload, window ctxasm.WindowBudget) Result {
	var r Result

	if s == nil {
		r.addError(CodeStateCorruption, "no quest state")
		return r
	}

	if s.Tension < 1 || s.Tension > 10 {
		r.addError(CodeStateCorruption, "tension %d outside 1..10", s.Tension)
	}

	seen := map[string]bool{}
	for _, t := range s.Threads {
		if seen[t.ID] {
			r.addError(CodeStateCorruption, "duplicate thread id %q", t.ID)
		}
		seen[t.ID] = true
	}

	for name, rel := range s.NPCs {
		if rel.Relationship < -10 || rel.Relationship > 10 {
			r.addError(CodeStateCorruption, "npc %q relationship %d outside -10..10", name, rel.Relationship)
		}
	}

	if payload.Empty() {
		r.addError(CodeMissingContext, "assembled context payload is empty")
	}

	total := window.Committed()
	if payload != nil {
		total += payload.UsedTokens
	}
	if total > window.Total {
		r.addError(CodeTokenOverflow, "estimated %d tokens exceed the %d-token window", total, window.Total)
	} else if window.Total > 0 && float64(total) > warnUsageRatio*float64(window.Total) {
		r.addWarning(CodeTokenOverflow, "estimated %d tokens above %.0f%% of the %d-token window", total, warnUsageRatio*100, window.Total)
	}

	if expected := narrative.StageForProgress(s.CurrentEncounter, s.TotalEncounters); s.Stage != expected {
		r.addWarning(CodeStateCorruption, "stage %s does not match progress %d/%d (expected %s)",
			s.Stage, s.CurrentEncounter, s.TotalEncounters, expected)
	}

	// Soft invariant: a location should carry at most one terminal status.
	for name := range s.Locations.Cleared {
		if s.Locations.Locked[name] || s.Locations.Destroyed[name] {
			r.addWarning(CodeStateCorruption, "location %q has conflicting statuses", name)
		}
	}
	for name := range s.Locations.Locked {
		if s.Locations.Destroyed[name] {
			r.addWarning(CodeStateCorruption, "location %q has conflicting statuses", name)
		}
	}

	if !r.IsValid() {
		logging.Validation("pre-flight failed: %d errors", len(r.Errors))
	}
	return r
}
