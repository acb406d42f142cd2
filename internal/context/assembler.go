// Package context converts a quest's narrative state into token-bounded,
// consumer-specific payloads. Consumers ("specialists") declare an ordered
// list of tiers; assembly includes tiers until the estimated token budget
// runs out and reports how much it used.
package context

import (
	"encoding/json"
	"fmt"

	"questloom/internal/logging"
	"questloom/internal/narrative"
)

// Payload is the merged, tier-structured snapshot handed to a specialist.
type Payload struct {
	Critical  *CriticalTier  `json:"critical,omitempty"`
	Narrative *NarrativeTier `json:"narrative,omitempty"`
	Situation *SituationTier `json:"situation,omitempty"`
	Extended  *ExtendedTier  `json:"extended,omitempty"`

	// Accounting (not serialized into the prompt).
	UsedTokens int    `json:"-"`
	Included   []Tier `json:"-"`
	Specialist string `json:"-"`
}

// Empty reports whether no tier made it into the payload.
func (p *Payload) Empty() bool {
	return p == nil || (p.Critical == nil && p.Narrative == nil && p.Situation == nil && p.Extended == nil)
}

// Encode returns the compact wire encoding of the payload, the same
// encoding the token estimate is based on.
func (p *Payload) Encode() string {
	data, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Assembler produces budgeted payloads from quest state snapshots.
type Assembler struct {
	counter *TokenCounter
}

// NewAssembler returns an assembler with default token calibration.
func NewAssembler() *Assembler {
	return &Assembler{counter: NewTokenCounter()}
}

// Counter exposes the token counter so callers estimate prompts with the
// same calibration the assembler budgets with.
func (a *Assembler) Counter() *TokenCounter {
	return a.counter
}

// Assemble builds the specialist's payload from a state snapshot. Declared
// tiers are taken in order; the first tier whose estimated cost would
// overflow the budget stops inclusion, and no later tier is considered even
// if it would fit on its own. The returned payload's UsedTokens never
// exceeds the specialist's MaxTokens.
func (a *Assembler) Assemble(s *narrative.QuestState, spec Specialist) (*Payload, error) {
	if s == nil {
		return nil, fmt.Errorf("nil quest state")
	}
	if spec.MaxTokens <= 0 {
		return nil, fmt.Errorf("specialist %q has no token budget", spec.Name)
	}

	p := &Payload{Specialist: spec.Name}
	used := 0
	for _, tier := range spec.Tiers {
		var cost int
		switch tier {
		case TierCritical:
			t := criticalTier(s)
			cost = a.counter.CountValue(t)
			if used+cost > spec.MaxTokens {
				logging.ContextDebug("tier %s skipped for %s: %d+%d > %d", tier, spec.Name, used, cost, spec.MaxTokens)
				return p, nil
			}
			p.Critical = t
		case TierNarrative:
			t := narrativeTier(s)
			cost = a.counter.CountValue(t)
			if used+cost > spec.MaxTokens {
				logging.ContextDebug("tier %s skipped for %s: %d+%d > %d", tier, spec.Name, used, cost, spec.MaxTokens)
				return p, nil
			}
			p.Narrative = t
		case TierSituation:
			t := situationTier(s)
			cost = a.counter.CountValue(t)
			if used+cost > spec.MaxTokens {
				logging.ContextDebug("tier %s skipped for %s: %d+%d > %d", tier, spec.Name, used, cost, spec.MaxTokens)
				return p, nil
			}
			p.Situation = t
		case TierExtended:
			t := &ExtendedTier{}
			cost = a.counter.CountValue(t)
			if used+cost > spec.MaxTokens {
				return p, nil
			}
			p.Extended = t
		default:
			return nil, fmt.Errorf("unknown tier %q for specialist %q", tier, spec.Name)
		}
		used += cost
		p.UsedTokens = used
		p.Included = append(p.Included, tier)
	}
	logging.ContextDebug("assembled %s: tiers=%v used=%d budget=%d", spec.Name, p.Included, used, spec.MaxTokens)
	return p, nil
}
