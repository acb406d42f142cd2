package narrative

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"questloom/internal/logging"
)

// maxUnresolvedThreads bounds the active unresolved thread count so the
// context assembler's narrative tier stays small. Threads pruned past this
// limit are archived, not discarded: they are excluded from context and
// consistency scoring but still appear in the end-of-quest report.
const maxUnresolvedThreads = 5

// QuestParams configures a new quest.
type QuestParams struct {
	QuestID         string // generated when empty
	Type            QuestType
	Goal            string
	Location        string
	TotalEncounters int
}

// Store owns the QuestState for at most one active quest.
// All mutation goes through its methods; reads by other components go
// through Snapshot. The store is not safe for concurrent use.
type Store struct {
	state *QuestState
}

// NewStore returns an empty store with no active quest.
func NewStore() *Store {
	return &Store{}
}

// StartQuest creates a fresh QuestState with stage intro, tension 2, and all
// collections empty. It fails if a quest is already active.
func (st *Store) StartQuest(p QuestParams) (*QuestState, error) {
	if st.state != nil {
		return nil, fmt.Errorf("quest %s is still active", st.state.QuestID)
	}
	if p.TotalEncounters <= 0 {
		return nil, fmt.Errorf("total encounters must be positive, got %d", p.TotalEncounters)
	}
	id := p.QuestID
	if id == "" {
		id = uuid.NewString()
	}
	st.state = &QuestState{
		QuestID:           id,
		Type:              p.Type,
		Goal:              p.Goal,
		Location:          p.Location,
		TotalEncounters:   p.TotalEncounters,
		Stage:             StageIntro,
		Tension:           2,
		Locations:         newLocationState(),
		NPCs:              map[string]NPCRelation{},
		LastTrapEncounter: -1,
	}
	logging.Narrative("quest started: id=%s type=%s encounters=%d", id, p.Type, p.TotalEncounters)
	return st.state, nil
}

// Resume adopts a previously saved state as the active quest.
func (st *Store) Resume(s *QuestState) error {
	if st.state != nil {
		return fmt.Errorf("quest %s is still active", st.state.QuestID)
	}
	if s == nil {
		return fmt.Errorf("nil quest state")
	}
	st.state = s
	return nil
}

// EndQuest discards the active quest state.
func (st *Store) EndQuest() {
	if st.state != nil {
		logging.Narrative("quest ended: id=%s", st.state.QuestID)
	}
	st.state = nil
}

// Active reports whether a quest is in progress.
func (st *Store) Active() bool {
	return st.state != nil
}

// State returns the live quest state. Only the owning orchestrator may hold
// this pointer; everyone else goes through Snapshot.
func (st *Store) State() *QuestState {
	return st.state
}

// Snapshot returns a deep copy of the active state, or nil.
func (st *Store) Snapshot() *QuestState {
	return st.state.Clone()
}

// IncrementEncounter advances the encounter counter and recomputes the
// stage from the progress ratio. The counter never exceeds total+1.
func (st *Store) IncrementEncounter() {
	s := st.state
	if s == nil {
		return
	}
	if s.CurrentEncounter <= s.TotalEncounters {
		s.CurrentEncounter++
	}
	s.Stage = StageForProgress(s.CurrentEncounter, s.TotalEncounters)
}

// AddThread appends a thread and prunes the unresolved set down to the
// five highest-priority entries. An empty ID is generated; a zero
// IntroducedAt defaults to the current encounter.
func (st *Store) AddThread(t NarrativeThread) error {
	s := st.state
	if s == nil {
		return fmt.Errorf("no active quest")
	}
	if t.Priority < 1 || t.Priority > 10 {
		return fmt.Errorf("thread priority %d outside 1..10", t.Priority)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, dup := s.ThreadByID(t.ID); dup {
		return fmt.Errorf("duplicate thread id %q", t.ID)
	}
	if t.IntroducedAt == 0 {
		t.IntroducedAt = s.CurrentEncounter
	}
	s.Threads = append(s.Threads, t)
	st.pruneThreads()
	return nil
}

// ResolveThread marks the active thread with the given id as resolved.
// Resolved threads are kept for history and never pruned. Archived threads
// are out of play and cannot be resolved.
func (st *Store) ResolveThread(id string) bool {
	s := st.state
	if s == nil {
		return false
	}
	for i := range s.Threads {
		if s.Threads[i].ID == id && !s.Threads[i].Resolved {
			s.Threads[i].Resolved = true
			logging.Narrative("thread resolved: %s", id)
			return true
		}
	}
	return false
}

// AddCausalEvent appends one link to the causal chain. The chain is
// append-only; linkage quality is scored by the consistency analyzer, not
// enforced here.
func (st *Store) AddCausalEvent(e CausalEvent) {
	s := st.state
	if s == nil {
		return
	}
	if e.Encounter == 0 {
		e.Encounter = s.CurrentEncounter
	}
	s.Chain = append(s.Chain, e)
}

// UpdateLocations applies a read-modify-write closure to the location sets.
func (st *Store) UpdateLocations(fn func(*LocationState)) {
	if st.state == nil {
		return
	}
	fn(&st.state.Locations)
}

// UpdateNPC applies a read-modify-write closure to one NPC relation,
// creating the relation on first mention. The relationship value is clamped
// to [-10,10] after the closure runs.
func (st *Store) UpdateNPC(name string, fn func(*NPCRelation)) {
	s := st.state
	if s == nil || name == "" {
		return
	}
	if s.NPCs == nil {
		s.NPCs = map[string]NPCRelation{}
	}
	rel, ok := s.NPCs[name]
	if !ok {
		rel = NPCRelation{Secrets: map[string]bool{}}
	}
	fn(&rel)
	rel.Relationship = clamp(rel.Relationship, -10, 10)
	if rel.TimesMet < 0 {
		rel.TimesMet = 0
	}
	s.NPCs[name] = rel
}

// Replace swaps in a fully-built candidate state. The orchestrator mutates
// a clone during a turn and commits it here only after validation passes,
// so a failed turn leaves the stored state untouched.
func (st *Store) Replace(s *QuestState) error {
	if s == nil {
		return fmt.Errorf("nil quest state")
	}
	if st.state != nil && st.state.QuestID != s.QuestID {
		return fmt.Errorf("state belongs to quest %s, active quest is %s", s.QuestID, st.state.QuestID)
	}
	st.state = s
	return nil
}

// AdjustTension shifts tension by delta, clamped to [1,10].
func (st *Store) AdjustTension(delta int) {
	s := st.state
	if s == nil {
		return
	}
	s.Tension = clamp(s.Tension+delta, 1, 10)
}

// pruneThreads keeps the five highest-priority unresolved threads. Ties keep
// the earlier-introduced thread; an older thread yields to a newer one only
// on a strict priority win. The rest move to the archive unchanged.
func (st *Store) pruneThreads() {
	s := st.state
	unresolved := s.UnresolvedThreads()
	if len(unresolved) <= maxUnresolvedThreads {
		return
	}
	sort.SliceStable(unresolved, func(i, j int) bool {
		if unresolved[i].Priority != unresolved[j].Priority {
			return unresolved[i].Priority > unresolved[j].Priority
		}
		return unresolved[i].IntroducedAt < unresolved[j].IntroducedAt
	})
	keep := make(map[string]bool, maxUnresolvedThreads)
	for _, t := range unresolved[:maxUnresolvedThreads] {
		keep[t.ID] = true
	}
	kept := s.Threads[:0]
	for _, t := range s.Threads {
		if t.Resolved || keep[t.ID] {
			kept = append(kept, t)
			continue
		}
		logging.NarrativeDebug("thread archived: id=%s priority=%d", t.ID, t.Priority)
		s.Archived = append(s.Archived, t)
	}
	s.Threads = kept
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
