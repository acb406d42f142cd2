package context

import (
	"strings"
	"testing"

	"questloom/internal/narrative"
)

func testState(t *testing.T) *narrative.QuestState {
	t.Helper()
	st := narrative.NewStore()
	s, err := st.StartQuest(narrative.QuestParams{
		Type:            narrative.QuestRetrieval,
		Goal:            "Recover the stolen ledger from Duskmire Keep",
		Location:        "Duskmire Keep",
		TotalEncounters: 8,
	})
	if err != nil {
		t.Fatalf("StartQuest failed: %v", err)
	}
	st.AddThread(narrative.NarrativeThread{ID: "t1", Text: "a hooded courier fled east", Kind: narrative.ThreadClue, Priority: 6})
	st.AddCausalEvent(narrative.CausalEvent{Event: "gatehouse alarm raised", Consequence: "guards doubled"})
	st.UpdateNPC("Mira", func(r *narrative.NPCRelation) {
		r.TimesMet = 2
		r.Relationship = 3
		r.LastInteraction = "traded rumors about the vault"
	})
	st.UpdateLocations(func(ls *narrative.LocationState) {
		ls.Locked["vault"] = true
		ls.Discovered["gatehouse"] = true
	})
	return s
}

func TestAssemble_AllTiersFit(t *testing.T) {
	a := NewAssembler()
	p, err := a.Assemble(testState(t), NarrationSpecialist(2000))
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if p.Critical == nil || p.Narrative == nil || p.Situation == nil || p.Extended == nil {
		t.Fatalf("expected all four tiers, got %+v", p.Included)
	}
	if p.Critical.Stage != "intro" {
		t.Errorf("stage = %q, want intro", p.Critical.Stage)
	}
	if p.UsedTokens <= 0 {
		t.Error("UsedTokens should be positive")
	}
}

func TestAssemble_NeverExceedsBudget(t *testing.T) {
	a := NewAssembler()
	s := testState(t)
	for budget := 1; budget <= 400; budget += 7 {
		p, err := a.Assemble(s, NarrationSpecialist(budget))
		if err != nil {
			t.Fatalf("budget %d: %v", budget, err)
		}
		if p.UsedTokens > budget {
			t.Fatalf("budget %d: used %d tokens", budget, p.UsedTokens)
		}
	}
}

func TestAssemble_TiersAreStrictlyCumulative(t *testing.T) {
	a := NewAssembler()
	s := testState(t)

	// Budget large enough for critical but not for the narrative digest.
	// Situation would fit on its own, yet must not be included once
	// narrative is skipped.
	critCost := a.counter.CountValue(criticalTier(s))
	narrCost := a.counter.CountValue(narrativeTier(s))
	budget := critCost + narrCost - 1
	if budget <= critCost {
		t.Skip("narrative digest too small to exercise the gap")
	}

	p, err := a.Assemble(s, NarrationSpecialist(budget))
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if p.Critical == nil {
		t.Error("critical tier should be included")
	}
	if p.Narrative != nil {
		t.Error("narrative tier should not fit")
	}
	if p.Situation != nil || p.Extended != nil {
		t.Error("no tier after a skipped tier may be included")
	}
	if len(p.Included) != 1 {
		t.Errorf("Included = %v, want [critical]", p.Included)
	}
}

func TestAssemble_ClassifierGetsStageOnly(t *testing.T) {
	a := NewAssembler()
	p, err := a.Assemble(testState(t), ClassifierSpecialist(100))
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if p.Critical == nil || p.Narrative != nil || p.Situation != nil {
		t.Errorf("classifier payload should carry the critical tier only: %+v", p.Included)
	}
}

func TestAssemble_Errors(t *testing.T) {
	a := NewAssembler()
	if _, err := a.Assemble(nil, NarrationSpecialist(100)); err == nil {
		t.Error("nil state should fail")
	}
	if _, err := a.Assemble(testState(t), Specialist{Name: "x", Tiers: []Tier{TierCritical}}); err == nil {
		t.Error("zero budget should fail")
	}
	if _, err := a.Assemble(testState(t), Specialist{Name: "x", Tiers: []Tier{"bogus"}, MaxTokens: 100}); err == nil {
		t.Error("unknown tier should fail")
	}
}

func TestPayload_EncodeMatchesEstimate(t *testing.T) {
	a := NewAssembler()
	p, err := a.Assemble(testState(t), NarrationSpecialist(4000))
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	enc := p.Encode()
	if !strings.Contains(enc, `"stage":"intro"`) {
		t.Errorf("encoded payload missing stage: %s", enc)
	}
	// The whole-payload estimate includes struct framing, so it may exceed
	// the per-tier sum slightly, but each tier's cost was bounded.
	if got := a.counter.CountString(enc); got == 0 {
		t.Error("encoded payload should cost tokens")
	}
}

func TestTokenCounter_Estimate(t *testing.T) {
	tc := NewTokenCounter()
	if got := tc.CountString(""); got != 0 {
		t.Errorf("empty string = %d tokens", got)
	}
	if got := tc.CountString("abcd"); got != 1 {
		t.Errorf("4 chars = %d tokens, want 1", got)
	}
	if got := tc.CountString("abcde"); got != 2 {
		t.Errorf("5 chars = %d tokens, want 2 (rounds up)", got)
	}
}

func TestWindowBudget_Available(t *testing.T) {
	w := WindowBudget{Total: 4096, Instruction: 900, History: 1200, ResponseReserve: 512, SafetyMargin: 128}
	if got := w.Available(); got != 4096-900-1200-512-128 {
		t.Errorf("Available = %d", got)
	}

	w.History = 4000
	if got := w.Available(); got != 0 {
		t.Errorf("Available should clamp to 0, got %d", got)
	}
}
