package context

import (
	"sort"

	"questloom/internal/narrative"
)

// Tier identifies one priority-ordered chunk of narrative state.
// Tiers are strictly cumulative: a specialist consumes them in its declared
// order, and the first tier that does not fit the token budget stops
// inclusion of everything after it.
type Tier string

const (
	TierCritical  Tier = "critical"  // stage only, ~constant size
	TierNarrative Tier = "narrative" // thread/chain/location/NPC digest
	TierSituation Tier = "situation" // goal, progress counters, location
	TierExtended  Tier = "extended"  // reserved, currently empty
)

// Specialist is a named consumer of assembled context with its own tier
// preferences and token budget.
type Specialist struct {
	Name      string
	Tiers     []Tier
	MaxTokens int
}

// NarrationSpecialist wants every tier, in full priority order.
func NarrationSpecialist(maxTokens int) Specialist {
	return Specialist{
		Name:      "narration",
		Tiers:     []Tier{TierCritical, TierNarrative, TierSituation, TierExtended},
		MaxTokens: maxTokens,
	}
}

// ClassifierSpecialist only needs the stage to pick an encounter type.
func ClassifierSpecialist(maxTokens int) Specialist {
	return Specialist{
		Name:      "encounter-classifier",
		Tiers:     []Tier{TierCritical},
		MaxTokens: maxTokens,
	}
}

// =============================================================================
// Tier payloads
// =============================================================================
// One explicit struct per tier; serialization to the wire format is handled
// separately by Payload.Encode.

// CriticalTier carries the quest stage.
type CriticalTier struct {
	Stage string `json:"stage"`
}

// ThreadDigest is the compact form of an unresolved thread.
type ThreadDigest struct {
	Text     string `json:"text"`
	Kind     string `json:"kind"`
	Priority int    `json:"priority"`
}

// EventDigest is the compact form of a causal chain link.
type EventDigest struct {
	Event       string `json:"event"`
	Cause       string `json:"cause,omitempty"`
	Consequence string `json:"consequence,omitempty"`
}

// NPCDigest is the compact form of one NPC relation.
type NPCDigest struct {
	Name            string `json:"name"`
	Relationship    int    `json:"relationship"`
	TimesMet        int    `json:"times_met"`
	LastInteraction string `json:"last_interaction,omitempty"`
	Promises        int    `json:"promises,omitempty"`
}

// LocationDigest lists location names by status.
type LocationDigest struct {
	Cleared   []string `json:"cleared,omitempty"`
	Locked    []string `json:"locked,omitempty"`
	Destroyed []string `json:"destroyed,omitempty"`
	Threats   []string `json:"threats,omitempty"`
}

// NarrativeTier is the full compact story digest.
type NarrativeTier struct {
	Threads   []ThreadDigest `json:"threads,omitempty"`
	Chain     []EventDigest  `json:"chain,omitempty"`
	Locations LocationDigest `json:"locations"`
	NPCs      []NPCDigest    `json:"npcs,omitempty"`
}

// SituationTier carries goal and progress.
type SituationTier struct {
	Goal      string `json:"goal"`
	Encounter int    `json:"encounter"`
	Total     int    `json:"total"`
	Location  string `json:"location"`
	Tension   int    `json:"tension"`
}

// ExtendedTier is reserved for future expansion.
type ExtendedTier struct{}

// chainDigestWindow bounds how much of the causal chain the narrative tier
// carries; older links are summarized by their consequences downstream.
const chainDigestWindow = 10

// interactionSnippetLen bounds the last-interaction excerpt per NPC.
const interactionSnippetLen = 80

func criticalTier(s *narrative.QuestState) *CriticalTier {
	return &CriticalTier{Stage: string(s.Stage)}
}

func narrativeTier(s *narrative.QuestState) *NarrativeTier {
	t := &NarrativeTier{}
	for _, th := range s.UnresolvedThreads() {
		t.Threads = append(t.Threads, ThreadDigest{
			Text:     th.Text,
			Kind:     string(th.Kind),
			Priority: th.Priority,
		})
	}
	chain := s.Chain
	if len(chain) > chainDigestWindow {
		chain = chain[len(chain)-chainDigestWindow:]
	}
	for _, e := range chain {
		t.Chain = append(t.Chain, EventDigest{
			Event:       e.Event,
			Cause:       e.Cause,
			Consequence: e.Consequence,
		})
	}
	t.Locations = LocationDigest{
		Cleared:   sortedNames(s.Locations.Cleared),
		Locked:    sortedNames(s.Locations.Locked),
		Destroyed: sortedNames(s.Locations.Destroyed),
		Threats:   sortedNames(s.Locations.ActiveThreats),
	}
	for _, name := range sortedKeys(s.NPCs) {
		rel := s.NPCs[name]
		t.NPCs = append(t.NPCs, NPCDigest{
			Name:            name,
			Relationship:    rel.Relationship,
			TimesMet:        rel.TimesMet,
			LastInteraction: truncate(rel.LastInteraction, interactionSnippetLen),
			Promises:        len(rel.Promises),
		})
	}
	return t
}

func situationTier(s *narrative.QuestState) *SituationTier {
	return &SituationTier{
		Goal:      s.Goal,
		Encounter: s.CurrentEncounter,
		Total:     s.TotalEncounters,
		Location:  s.Location,
		Tension:   s.Tension,
	}
}

func sortedNames(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]narrative.NPCRelation) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
