package consistency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questloom/internal/narrative"
)

func baseState() *narrative.QuestState {
	return &narrative.QuestState{
		QuestID:          "q1",
		Type:             narrative.QuestRetrieval,
		Goal:             "Recover the stolen ledger",
		Location:         "Duskmire Keep",
		CurrentEncounter: 4,
		TotalEncounters:  8,
		Stage:            narrative.StageRising,
		Tension:          5,
		Locations: narrative.LocationState{
			Cleared:       map[string]bool{},
			Locked:        map[string]bool{},
			Discovered:    map[string]bool{},
			Destroyed:     map[string]bool{},
			ActiveThreats: map[string]bool{},
		},
		NPCs: map[string]narrative.NPCRelation{},
	}
}

func findIssue(t *testing.T, score Score, kind IssueKind) Issue {
	t.Helper()
	for _, is := range score.Issues {
		if is.Kind == kind {
			return is
		}
	}
	t.Fatalf("no issue of kind %s in %+v", kind, score.Issues)
	return Issue{}
}

func TestAnalyze_CleanNarrationScoresPerfect(t *testing.T) {
	a := NewAnalyzer()
	score := a.Analyze(Input{
		State:     baseState(),
		Narration: "You slip through the mist toward the keep, ledger rumors pulling you onward.",
	})
	assert.InDelta(t, 1.0, score.Overall, 1e-9)
	assert.Empty(t, score.Issues)
}

func TestAnalyze_LockedAreaEntered(t *testing.T) {
	s := baseState()
	s.Locations.Locked["vault"] = true

	a := NewAnalyzer()
	score := a.Analyze(Input{State: s, Narration: "You walk into the vault and see treasure"})

	assert.Less(t, score.Breakdown.Spatial, 1.0)
	is := findIssue(t, score, IssueSpatialViolation)
	assert.Equal(t, SeverityMajor, is.Severity)
	assert.InDelta(t, 0.5, score.Breakdown.Spatial, 1e-9)
}

func TestAnalyze_ClearedAreaWithDanger(t *testing.T) {
	s := baseState()
	s.Locations.Cleared["gatehouse"] = true

	a := NewAnalyzer()
	score := a.Analyze(Input{State: s, Narration: "An ambush erupts as you pass the gatehouse."})

	is := findIssue(t, score, IssueSpatialViolation)
	assert.Equal(t, SeverityModerate, is.Severity)
	assert.InDelta(t, 0.7, score.Breakdown.Spatial, 1e-9)
}

func TestAnalyze_DestroyedAreaIntact(t *testing.T) {
	s := baseState()
	s.Locations.Destroyed["watchtower"] = true

	a := NewAnalyzer()
	score := a.Analyze(Input{State: s, Narration: "The watchtower stands pristine against the night sky."})

	findIssue(t, score, IssueSpatialViolation)
	assert.InDelta(t, 0.7, score.Breakdown.Spatial, 1e-9)
}

func TestAnalyze_HostileNPCActsFriendly(t *testing.T) {
	s := baseState()
	s.NPCs["the guard"] = narrative.NPCRelation{Relationship: -8, TimesMet: 3}

	a := NewAnalyzer()
	score := a.Analyze(Input{State: s, Narration: "The guard smiles warmly and welcomes you"})

	is := findIssue(t, score, IssueNPCInconsistency)
	assert.Equal(t, SeverityMajor, is.Severity)
	assert.InDelta(t, 0.6, score.Breakdown.NPC, 1e-9)
}

func TestAnalyze_FriendlyNPCActsHostile(t *testing.T) {
	s := baseState()
	s.NPCs["Mira"] = narrative.NPCRelation{Relationship: 7, TimesMet: 4}

	a := NewAnalyzer()
	score := a.Analyze(Input{State: s, Narration: "Mira snarls and threatens to turn you in."})

	is := findIssue(t, score, IssueNPCInconsistency)
	assert.Equal(t, SeverityMajor, is.Severity)
}

func TestAnalyze_FirstMeetingDescribedAsReunion(t *testing.T) {
	s := baseState()
	s.NPCs["Bren"] = narrative.NPCRelation{Relationship: 0, TimesMet: 1}

	a := NewAnalyzer()
	score := a.Analyze(Input{State: s, Narration: "Bren greets you once more at the crossroads."})

	is := findIssue(t, score, IssueNPCInconsistency)
	assert.Equal(t, SeverityMinor, is.Severity)
	assert.InDelta(t, 0.8, score.Breakdown.NPC, 1e-9)
}

func TestAnalyze_UnmentionedNPCIsIgnored(t *testing.T) {
	s := baseState()
	s.NPCs["Mira"] = narrative.NPCRelation{Relationship: -9, TimesMet: 2}

	a := NewAnalyzer()
	score := a.Analyze(Input{State: s, Narration: "A stranger smiles and helps you up from the mud."})
	assert.InDelta(t, 1.0, score.Breakdown.NPC, 1e-9)
}

func TestAnalyze_TensionDropDuringClimax(t *testing.T) {
	prev := baseState()
	prev.Tension = 7
	prev.CurrentEncounter = 6
	prev.Stage = narrative.StageClimax

	cur := baseState()
	cur.Tension = 4
	cur.CurrentEncounter = 7
	cur.Stage = narrative.StageClimax

	a := NewAnalyzer()
	score := a.Analyze(Input{State: cur, Previous: prev, Narration: "Recover the ledger now or never."})

	is := findIssue(t, score, IssueTensionInversion)
	assert.Equal(t, SeverityModerate, is.Severity)
}

func TestAnalyze_TensionNeutralWithoutPrevious(t *testing.T) {
	cur := baseState()
	cur.Tension = 10 // far outside the rising band

	a := NewAnalyzer()
	score := a.Analyze(Input{State: cur, Narration: "Quiet settles over the keep."})
	assert.InDelta(t, 1.0, score.Breakdown.Tension, 1e-9)
}

func TestAnalyze_TensionSpikeAndBand(t *testing.T) {
	prev := baseState()
	prev.Tension = 2

	cur := baseState()
	cur.Tension = 8 // +6 spike, and outside rising band 4-6

	a := NewAnalyzer()
	score := a.Analyze(Input{State: cur, Previous: prev, Narration: "Chaos."})

	assert.InDelta(t, 0.7, score.Breakdown.Tension, 1e-9)
	assert.Len(t, score.IssuesAt(SeverityMinor), 2)
}

func TestAnalyze_UnknownCause(t *testing.T) {
	s := baseState()
	s.Chain = []narrative.CausalEvent{
		{Event: "gatehouse alarm raised", Consequence: "guards doubled", Encounter: 2},
	}

	a := NewAnalyzer()
	score := a.Analyze(Input{
		State:     s,
		Narration: "The bridge collapses behind you.",
		NewEvent:  &narrative.CausalEvent{Event: "bridge collapses", Cause: "dragon attack", Encounter: 4},
	})

	is := findIssue(t, score, IssueCausalViolation)
	assert.Equal(t, SeverityMajor, is.Severity)
	assert.InDelta(t, 0.5, score.Breakdown.Causal, 1e-9)
}

func TestAnalyze_KnownCausePasses(t *testing.T) {
	s := baseState()
	s.Chain = []narrative.CausalEvent{
		{Event: "gatehouse alarm raised", Consequence: "guards doubled", Encounter: 2},
	}

	a := NewAnalyzer()
	score := a.Analyze(Input{
		State:    s,
		NewEvent: &narrative.CausalEvent{Event: "patrols everywhere", Cause: "guards doubled", Encounter: 4},
	})
	assert.InDelta(t, 1.0, score.Breakdown.Causal, 1e-9)
}

func TestAnalyze_ChainGap(t *testing.T) {
	s := baseState()
	s.Chain = []narrative.CausalEvent{
		{Event: "alarm raised", Consequence: "guards doubled", Encounter: 2},
		{Event: "you bribe a sentry", Cause: "a sudden storm", Encounter: 3},
	}

	a := NewAnalyzer()
	score := a.Analyze(Input{State: s, Narration: "Rain hammers the keep."})

	is := findIssue(t, score, IssueLogicalGap)
	assert.Equal(t, SeverityModerate, is.Severity)
	assert.InDelta(t, 0.8, score.Breakdown.Causal, 1e-9)
}

func TestAnalyze_AgedHighPriorityThread(t *testing.T) {
	s := baseState()
	s.CurrentEncounter = 7
	s.Threads = []narrative.NarrativeThread{
		{ID: "t1", Text: "the cipher half", Kind: narrative.ThreadClue, Priority: 9, IntroducedAt: 1},
	}

	a := NewAnalyzer()
	score := a.Analyze(Input{State: s, Narration: "You press on."})

	is := findIssue(t, score, IssueUnresolvedThread)
	assert.Equal(t, SeverityModerate, is.Severity)
	assert.InDelta(t, 0.85, score.Breakdown.Thread, 1e-9)
}

func TestAnalyze_BrokenPromise(t *testing.T) {
	s := baseState()
	s.CurrentEncounter = 6
	s.Threads = []narrative.NarrativeThread{
		{ID: "p1", Text: "promised to free the miller", Kind: narrative.ThreadPromise, Priority: 5, IntroducedAt: 1},
	}

	a := NewAnalyzer()
	score := a.Analyze(Input{State: s, Narration: "You press on."})

	is := findIssue(t, score, IssueUnresolvedThread)
	assert.Equal(t, SeverityMajor, is.Severity)
	assert.InDelta(t, 0.7, score.Breakdown.Thread, 1e-9)
}

func TestAnalyze_QuestDriftAtClimax(t *testing.T) {
	s := baseState()
	s.Stage = narrative.StageClimax
	s.Tension = 8

	a := NewAnalyzer()
	score := a.Analyze(Input{State: s, Narration: "You pause to admire some flowers."})

	is := findIssue(t, score, IssueQuestDrift)
	assert.Equal(t, SeverityModerate, is.Severity)
	assert.InDelta(t, 0.7, score.Breakdown.Quest, 1e-9)

	// Referencing a goal content word clears the drift.
	score = a.Analyze(Input{State: s, Narration: "The ledger is within reach at last."})
	assert.InDelta(t, 1.0, score.Breakdown.Quest, 1e-9)
}

func TestAnalyze_RepetitionUsesCommittedHistoryOnly(t *testing.T) {
	a := NewAnalyzer()
	s := baseState()
	narration := "You creep along the eastern rampart, counting torches in the courtyard below."

	// Nothing remembered yet: neutral.
	score := a.Analyze(Input{State: s, Narration: narration})
	assert.InDelta(t, 1.0, score.Breakdown.Repetition, 1e-9)

	// Analysis alone must not pollute the buffer.
	score = a.Analyze(Input{State: s, Narration: narration})
	assert.InDelta(t, 1.0, score.Breakdown.Repetition, 1e-9)

	a.Remember(narration)
	score = a.Analyze(Input{State: s, Narration: narration})
	require.NotEmpty(t, score.Issues)
	is := findIssue(t, score, IssueRepetition)
	assert.Equal(t, SeverityModerate, is.Severity)
	assert.InDelta(t, 0.7, score.Breakdown.Repetition, 1e-9)
}

func TestAnalyze_IssuesSortedBySeverity(t *testing.T) {
	s := baseState()
	s.Locations.Locked["vault"] = true
	s.NPCs["Bren"] = narrative.NPCRelation{TimesMet: 1}

	a := NewAnalyzer()
	score := a.Analyze(Input{State: s, Narration: "Bren waves you back as you step into the vault."})

	require.GreaterOrEqual(t, len(score.Issues), 2)
	for i := 1; i < len(score.Issues); i++ {
		assert.GreaterOrEqual(t, score.Issues[i-1].Severity, score.Issues[i].Severity)
	}
	worst, ok := score.Worst()
	require.True(t, ok)
	assert.Equal(t, SeverityMajor, worst)
}

func TestAnalyze_OverallIsWeightedSum(t *testing.T) {
	s := baseState()
	s.Locations.Locked["vault"] = true

	a := NewAnalyzer()
	score := a.Analyze(Input{State: s, Narration: "You walk into the vault."})

	want := 0.20*1 + 0.15*0.5 + 0.20*1 + 0.10*1 + 0.10*1 + 0.10*1 + 0.15*1
	assert.InDelta(t, want, score.Overall, 1e-9)
}

func TestKeywordTables(t *testing.T) {
	if w, ok := containsAny("an ambush in the dark", DangerWords); assert.True(t, ok) {
		assert.Equal(t, "ambush", w)
	}
	_, ok := containsAny("a calm evening stroll", DangerWords)
	assert.False(t, ok)

	words := contentWords("Recover the stolen ledger from the keep")
	assert.Equal(t, []string{"recover", "stolen", "ledger", "keep"}, words)
}

func TestHistoryBuffer_EvictsOldest(t *testing.T) {
	h := NewHistoryBuffer(2)
	h.Add("alpha bravo charlie delta")
	h.Add("echo foxtrot golf hotel")
	h.Add("india juliet kilo lima")
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 0.0, h.MaxSimilarity("alpha bravo charlie delta"))
	assert.Equal(t, 1.0, h.MaxSimilarity("india juliet kilo lima"))
}
