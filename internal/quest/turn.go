package quest

import (
	"fmt"
	"strings"

	"questloom/internal/generator"
	"questloom/internal/logging"
	"questloom/internal/narrative"
)

// summarySnippetLen bounds the per-encounter summary excerpt.
const summarySnippetLen = 120

// interactionSnippetLen bounds the recorded NPC last-interaction text.
const interactionSnippetLen = 120

type branchSetup struct {
	monster *Monster
	framing string
}

// selectEncounter picks this turn's encounter type on the candidate state
// and performs branch setup. A live NPC conversation bypasses selection
// entirely unless the player's input ends it.
func (o *Orchestrator) selectEncounter(s *narrative.QuestState, input string) (EncounterType, branchSetup) {
	var enc EncounterType
	if s.ActiveNPC != "" && !conversationEnding(input) {
		enc = EncounterSocial
		s.ConversationTurns++
		logging.QuestDebug("conversation continues with %s (turn %d)", s.ActiveNPC, s.ConversationTurns)
	} else {
		s.ActiveNPC = ""
		s.ConversationTurns = 0
		proposed := o.encounters.NextType(s)
		enc = enforceVariety(s, proposed)
		if enc != proposed {
			logging.QuestDebug("variety coerced %s -> %s", proposed, enc)
		}
	}
	return enc, o.setupBranch(s, enc)
}

// setupBranch prepares the candidate state and scene framing for the chosen
// encounter type.
func (o *Orchestrator) setupBranch(s *narrative.QuestState, enc EncounterType) branchSetup {
	switch enc {
	case EncounterCombat:
		s.ActiveNPC = ""
		s.ConversationTurns = 0
		var m Monster
		if s.Type == narrative.QuestCombat && o.difficulty == DifficultyBoss {
			m = o.encounters.BossMonster(s)
		} else {
			m = o.encounters.Monster(s)
		}
		return branchSetup{
			monster: &m,
			framing: fmt.Sprintf("A combat encounter. The enemy: %s, %s.", m.Name, m.Description),
		}
	case EncounterFinal:
		s.ActiveNPC = ""
		s.ConversationTurns = 0
		return branchSetup{
			framing: fmt.Sprintf("The final encounter. No new enemy; bring the objective to a head: %s.", s.Goal),
		}
	case EncounterSocial:
		if s.ActiveNPC == "" {
			s.ActiveNPC = o.encounters.NPCName(s)
			s.ConversationTurns = 1
		}
		return branchSetup{
			framing: fmt.Sprintf("A social encounter with %s.", s.ActiveNPC),
		}
	case EncounterTrap:
		s.ActiveNPC = ""
		s.ConversationTurns = 0
		return branchSetup{framing: "A trap encounter. Describe the hazard and its tell."}
	default:
		s.ActiveNPC = ""
		s.ConversationTurns = 0
		return branchSetup{framing: "An exploration encounter."}
	}
}

// applyTurn folds an accepted generation result into the candidate state:
// counter, summary, threads, chain, NPC bookkeeping, tension, completion.
func (o *Orchestrator) applyTurn(ws *narrative.Store, enc EncounterType, turn *generator.StructuredTurn) {
	ws.IncrementEncounter()
	s := ws.State()

	s.LastEncounterType = string(enc)
	if enc == EncounterTrap {
		s.LastTrapEncounter = s.CurrentEncounter
	}
	s.EncounterSummaries = append(s.EncounterSummaries,
		fmt.Sprintf("#%d %s: %s", s.CurrentEncounter, enc, snippet(turn.Narration, summarySnippetLen)))

	if turn.CausalEvent != nil {
		ws.AddCausalEvent(*turn.CausalEvent)
	}
	for _, th := range turn.NewThreads {
		if th.Priority == 0 {
			th.Priority = 5
		}
		if err := ws.AddThread(th); err != nil {
			logging.QuestWarn("new thread dropped: %v", err)
		}
	}
	for _, id := range turn.ResolvedThreads {
		ws.ResolveThread(id)
	}
	for _, u := range turn.LocationUpdates {
		if u.Name == "" {
			continue
		}
		ws.UpdateLocations(func(l *narrative.LocationState) {
			applyLocationUpdate(l, u)
		})
	}

	if enc == EncounterSocial && s.ActiveNPC != "" {
		firstMeeting := s.ConversationTurns == 1
		ws.UpdateNPC(s.ActiveNPC, func(r *narrative.NPCRelation) {
			if firstMeeting {
				r.TimesMet++
			}
			r.LastInteraction = snippet(turn.Narration, interactionSnippetLen)
		})
	}

	ws.AdjustTension(turn.TensionDelta)

	// Completion: a committed final encounter completes any quest type.
	// Generator-controlled types may also complete on the model's say-so;
	// code-controlled types never do.
	if enc == EncounterFinal {
		s.Completed = true
	} else if turn.Progress != nil && turn.Progress.Completed && !s.Type.CodeControlled() {
		s.Completed = true
	}
}

// applyLocationUpdate folds one reported status change into the location
// sets, keeping cleared/locked/destroyed disjoint so the state never trips
// the pre-flight conflicting-status check on its own.
func applyLocationUpdate(l *narrative.LocationState, u generator.LocationUpdate) {
	name := strings.ToLower(strings.TrimSpace(u.Name))
	if name == "" {
		return
	}
	switch u.Status {
	case generator.LocationCleared:
		setStatus(&l.Cleared, name)
		delete(l.ActiveThreats, name)
		delete(l.Locked, name)
	case generator.LocationLocked:
		setStatus(&l.Locked, name)
		delete(l.Cleared, name)
	case generator.LocationUnlocked:
		delete(l.Locked, name)
	case generator.LocationDiscovered:
		setStatus(&l.Discovered, name)
	case generator.LocationDestroyed:
		setStatus(&l.Destroyed, name)
		delete(l.Cleared, name)
		delete(l.Locked, name)
	case generator.LocationThreat:
		setStatus(&l.ActiveThreats, name)
		delete(l.Cleared, name)
	case generator.LocationSafe:
		delete(l.ActiveThreats, name)
	default:
		logging.QuestWarn("location update for %q dropped: unknown status %q", u.Name, u.Status)
	}
}

// setStatus adds to a set, allocating it first. A state restored from JSON
// can carry nil sets because empty ones are omitted on save.
func setStatus(set *map[string]bool, name string) {
	if *set == nil {
		*set = map[string]bool{}
	}
	(*set)[name] = true
}

// resolveExhausted settles a quest whose encounter budget has run out:
// code-controlled types fail unless already completed, the rest
// auto-complete since their objectives cannot be verified in code.
func (o *Orchestrator) resolveExhausted() *Outcome {
	s := o.store.State()
	if s.Type.CodeControlled() && !s.Completed {
		return o.failQuest("the encounter budget ran out before the objective was met")
	}
	s.Completed = true
	o.persist(s)
	logging.Quest("quest auto-completed at budget end: %s", s.QuestID)
	return o.completedOutcome(s)
}

func (o *Orchestrator) failQuest(reason string) *Outcome {
	s := o.store.State()
	s.Failed = true
	o.persist(s)
	logging.Quest("quest failed: %s (%s)", s.QuestID, reason)
	return &Outcome{
		Kind:    OutcomeQuestFailed,
		Summary: failureSummary(s, reason),
		State:   o.store.Snapshot(),
	}
}

func (o *Orchestrator) completedOutcome(s *narrative.QuestState) *Outcome {
	return &Outcome{
		Kind:    OutcomeQuestCompleted,
		Summary: completionSummary(s),
		State:   o.store.Snapshot(),
	}
}

func (o *Orchestrator) persist(s *narrative.QuestState) {
	if o.saver == nil {
		return
	}
	if err := o.saver.Save(s); err != nil {
		logging.QuestWarn("quest save failed: %v", err)
	}
}

func completionSummary(s *narrative.QuestState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quest complete: %s\n", s.Goal)
	fmt.Fprintf(&b, "Encounters: %d of %d\n", min(s.CurrentEncounter, s.TotalEncounters), s.TotalEncounters)
	if n := len(s.UnresolvedThreads()); n > 0 {
		fmt.Fprintf(&b, "Threads left hanging: %d\n", n)
	}
	if n := len(s.Archived); n > 0 {
		fmt.Fprintf(&b, "Threads that fell by the wayside: %d\n", n)
	}
	fmt.Fprintf(&b, "Story beats on record: %d", len(s.Chain))
	return b.String()
}

func failureSummary(s *narrative.QuestState, reason string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quest failed: %s\n", s.Goal)
	fmt.Fprintf(&b, "Reason: %s\n", reason)
	fmt.Fprintf(&b, "Encounters survived: %d of %d", min(s.CurrentEncounter, s.TotalEncounters), s.TotalEncounters)
	return b.String()
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
