// Package narrative holds the canonical story-so-far state for a single
// quest: open threads, the causal chain, location knowledge, NPC relations,
// quest stage and tension. The state is exclusively owned by the turn
// orchestrator; every other consumer works from a Snapshot.
package narrative

// =============================================================================
// Enumerations
// =============================================================================

// QuestType classifies a quest by its objective.
type QuestType string

const (
	QuestCombat        QuestType = "combat"
	QuestRetrieval     QuestType = "retrieval"
	QuestEscort        QuestType = "escort"
	QuestInvestigation QuestType = "investigation"
	QuestRescue        QuestType = "rescue"
	QuestDiplomatic    QuestType = "diplomatic"
)

// CodeControlled reports whether quest completion is decided by engine code.
// Combat, retrieval and escort quests have objectives the engine can verify;
// the remaining types depend on narrative content the engine cannot reliably
// detect, so they auto-complete once the encounter budget runs out.
func (t QuestType) CodeControlled() bool {
	switch t {
	case QuestCombat, QuestRetrieval, QuestEscort:
		return true
	}
	return false
}

// Stage is the dramatic stage of a quest. It is always derived from
// encounter progress via StageForProgress and never set directly.
type Stage string

const (
	StageIntro      Stage = "intro"
	StageRising     Stage = "rising"
	StageClimax     Stage = "climax"
	StageResolution Stage = "resolution"
)

// StageForProgress maps encounter progress to a stage using fixed bands:
// [0,0.3) intro, [0.3,0.7) rising, [0.7,0.95) climax, [0.95,inf) resolution.
func StageForProgress(current, total int) Stage {
	if total <= 0 {
		return StageIntro
	}
	ratio := float64(current) / float64(total)
	switch {
	case ratio < 0.3:
		return StageIntro
	case ratio < 0.7:
		return StageRising
	case ratio < 0.95:
		return StageClimax
	default:
		return StageResolution
	}
}

// TensionBand returns the expected tension range for a stage.
func (s Stage) TensionBand() (lo, hi int) {
	switch s {
	case StageIntro:
		return 1, 3
	case StageRising:
		return 4, 6
	case StageClimax:
		return 7, 9
	case StageResolution:
		return 2, 4
	}
	return 1, 10
}

// ThreadKind classifies an open narrative element.
type ThreadKind string

const (
	ThreadClue       ThreadKind = "clue"
	ThreadSubplot    ThreadKind = "subplot"
	ThreadForeshadow ThreadKind = "foreshadow"
	ThreadPromise    ThreadKind = "promise"
	ThreadMystery    ThreadKind = "mystery"
)

// =============================================================================
// Core records
// =============================================================================

// NarrativeThread is an open story element expected to be resolved later.
type NarrativeThread struct {
	ID           string     `json:"id"`
	Text         string     `json:"text"`
	Kind         ThreadKind `json:"kind"`
	IntroducedAt int        `json:"introduced_at_encounter"`
	Resolved     bool       `json:"resolved"`
	Priority     int        `json:"priority"` // 1..10
}

// CausalEvent is one link in the quest's cause/event/consequence chain.
// The chain is append-only within a quest; adjacent links should satisfy
// chain[i].Consequence == chain[i+1].Cause when both are present.
type CausalEvent struct {
	Event       string `json:"event"`
	Cause       string `json:"cause,omitempty"`
	Consequence string `json:"consequence,omitempty"`
	Encounter   int    `json:"encounter"`
}

// NPCRelation tracks the player's standing with one named NPC.
// Created on first mention, mutated on every scene involving the NPC,
// never deleted within a quest.
type NPCRelation struct {
	Relationship    int             `json:"relationship"` // -10..10
	TimesMet        int             `json:"times_met"`
	LastInteraction string          `json:"last_interaction,omitempty"`
	Promises        []string        `json:"promises,omitempty"`
	Secrets         map[string]bool `json:"secrets,omitempty"`
}

// LocationState partitions known location names into disjoint status sets.
// A name should not appear in more than one of cleared/locked/destroyed at
// once; this is a soft invariant, checked by the validator rather than
// enforced here.
type LocationState struct {
	Cleared       map[string]bool `json:"cleared,omitempty"`
	Locked        map[string]bool `json:"locked,omitempty"`
	Discovered    map[string]bool `json:"discovered,omitempty"`
	Destroyed     map[string]bool `json:"destroyed,omitempty"`
	ActiveThreats map[string]bool `json:"active_threats,omitempty"`
}

func newLocationState() LocationState {
	return LocationState{
		Cleared:       map[string]bool{},
		Locked:        map[string]bool{},
		Discovered:    map[string]bool{},
		Destroyed:     map[string]bool{},
		ActiveThreats: map[string]bool{},
	}
}

// =============================================================================
// QuestState
// =============================================================================

// QuestState is the canonical mutable record of one quest's story so far.
// It also carries the per-quest orchestration state that has to survive a
// save/load round trip (last encounter type, trap spacing, active
// conversation).
type QuestState struct {
	QuestID          string    `json:"quest_id"`
	Type             QuestType `json:"quest_type"`
	Goal             string    `json:"goal"`
	Location         string    `json:"location"`
	CurrentEncounter int       `json:"current_encounter"`
	TotalEncounters  int       `json:"total_encounters"`
	Stage            Stage     `json:"stage"`
	Tension          int       `json:"tension"` // 1..10

	Threads  []NarrativeThread `json:"threads"`
	Archived []NarrativeThread `json:"archived_threads,omitempty"`
	Chain    []CausalEvent     `json:"chain"`

	Locations LocationState          `json:"location_state"`
	NPCs      map[string]NPCRelation `json:"npc_relations"`

	Completed bool `json:"completed"`
	Failed    bool `json:"failed,omitempty"`

	// Orchestration state.
	LastEncounterType  string   `json:"last_encounter_type,omitempty"`
	LastTrapEncounter  int      `json:"last_trap_encounter"` // -1 when no trap yet
	ActiveNPC          string   `json:"active_npc,omitempty"`
	ConversationTurns  int      `json:"conversation_turns,omitempty"`
	EncounterSummaries []string `json:"encounter_summaries,omitempty"`
}

// UnresolvedThreads returns the active threads that are not yet resolved,
// in introduction order.
func (s *QuestState) UnresolvedThreads() []NarrativeThread {
	var out []NarrativeThread
	for _, t := range s.Threads {
		if !t.Resolved {
			out = append(out, t)
		}
	}
	return out
}

// ThreadByID returns the active thread with the given id, if any.
func (s *QuestState) ThreadByID(id string) (NarrativeThread, bool) {
	for _, t := range s.Threads {
		if t.ID == id {
			return t, true
		}
	}
	return NarrativeThread{}, false
}

// Clone returns a deep copy of the state. Consumers that need a stable view
// while the orchestrator keeps mutating (UI observation, transition logging)
// must work from a clone; the store offers no internal synchronization.
func (s *QuestState) Clone() *QuestState {
	if s == nil {
		return nil
	}
	out := *s
	out.Threads = append([]NarrativeThread(nil), s.Threads...)
	out.Archived = append([]NarrativeThread(nil), s.Archived...)
	out.Chain = append([]CausalEvent(nil), s.Chain...)
	out.EncounterSummaries = append([]string(nil), s.EncounterSummaries...)
	out.Locations = LocationState{
		Cleared:       cloneSet(s.Locations.Cleared),
		Locked:        cloneSet(s.Locations.Locked),
		Discovered:    cloneSet(s.Locations.Discovered),
		Destroyed:     cloneSet(s.Locations.Destroyed),
		ActiveThreats: cloneSet(s.Locations.ActiveThreats),
	}
	out.NPCs = make(map[string]NPCRelation, len(s.NPCs))
	for name, rel := range s.NPCs {
		r := rel
		r.Promises = append([]string(nil), rel.Promises...)
		r.Secrets = cloneSet(rel.Secrets)
		out.NPCs[name] = r
	}
	return &out
}

func cloneSet(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
