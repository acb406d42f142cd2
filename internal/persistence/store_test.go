package persistence

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questloom/internal/narrative"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleState() *narrative.QuestState {
	return &narrative.QuestState{
		QuestID:          "q-roundtrip",
		Type:             narrative.QuestInvestigation,
		Goal:             "find who poisoned the well",
		Location:         "Milltown",
		CurrentEncounter: 3,
		TotalEncounters:  7,
		Stage:            narrative.StageRising,
		Tension:          5,
		Threads: []narrative.NarrativeThread{
			{ID: "t1", Text: "a vial with a crest", Kind: narrative.ThreadClue, IntroducedAt: 2, Priority: 7},
		},
		Archived: []narrative.NarrativeThread{
			{ID: "t0", Text: "strange birds overhead", Kind: narrative.ThreadForeshadow, IntroducedAt: 1, Priority: 2},
		},
		Chain: []narrative.CausalEvent{
			{Event: "well poisoned", Consequence: "villagers sick", Encounter: 1},
		},
		Locations: narrative.LocationState{
			Cleared: map[string]bool{"square": true},
			Locked:  map[string]bool{"manor": true},
		},
		NPCs: map[string]narrative.NPCRelation{
			"Aldric": {Relationship: 3, TimesMet: 2, Promises: []string{"return the vial"}},
		},
		LastEncounterType: "social",
		LastTrapEncounter: -1,
		ActiveNPC:         "Aldric",
		ConversationTurns: 2,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := openTestStore(t)
	want := sampleState()
	require.NoError(t, st.Save(want))

	got, err := st.Load("q-roundtrip")
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(want, got))
}

func TestSaveOverwrites(t *testing.T) {
	st := openTestStore(t)
	s := sampleState()
	require.NoError(t, st.Save(s))

	s.CurrentEncounter = 4
	s.Tension = 6
	require.NoError(t, st.Save(s))

	got, err := st.Load(s.QuestID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.CurrentEncounter)
	assert.Equal(t, 6, got.Tension)
}

func TestLoadMissing(t *testing.T) {
	st := openTestStore(t)
	_, err := st.Load("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejectsAnonymousState(t *testing.T) {
	st := openTestStore(t)
	assert.Error(t, st.Save(&narrative.QuestState{}))
	assert.Error(t, st.Save(nil))
}

func TestDelete(t *testing.T) {
	st := openTestStore(t)
	s := sampleState()
	require.NoError(t, st.Save(s))
	require.NoError(t, st.Delete(s.QuestID))
	_, err := st.Load(s.QuestID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Idempotent.
	assert.NoError(t, st.Delete(s.QuestID))
}

func TestList(t *testing.T) {
	st := openTestStore(t)
	a := sampleState()
	b := sampleState()
	b.QuestID = "q-other"
	b.Completed = true
	require.NoError(t, st.Save(a))
	require.NoError(t, st.Save(b))

	quests, err := st.List()
	require.NoError(t, err)
	require.Len(t, quests, 2)
	byID := map[string]QuestMeta{}
	for _, m := range quests {
		byID[m.QuestID] = m
	}
	assert.False(t, byID["q-roundtrip"].Completed)
	assert.True(t, byID["q-other"].Completed)
	assert.Equal(t, narrative.QuestInvestigation, byID["q-other"].Type)
}
