// Package quest drives one player turn end to end: encounter selection with
// variety enforcement, branch setup, context assembly, narration generation,
// validation, and commit. All turn mutations land on a cloned candidate
// state; the store only sees the candidate after validation passes, so a
// failed turn leaves the quest exactly as it was and is safe to retry.
package quest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"questloom/internal/consistency"
	ctxasm "questloom/internal/context"
	"questloom/internal/generator"
	"questloom/internal/logging"
	"questloom/internal/narrative"
	"questloom/internal/translog"
	"questloom/internal/validation"
)

var (
	// ErrBusy means a generation call is outstanding; the orchestrator
	// refuses new input until it returns.
	ErrBusy = errors.New("a turn is already in progress")

	// ErrNoQuest means no quest is active in the store.
	ErrNoQuest = errors.New("no active quest")
)

// Saver persists committed state. *persistence.Store satisfies it.
type Saver interface {
	Save(*narrative.QuestState) error
}

// FailurePredicate reports an externally-decided quest failure, such as a
// time budget expiring. Checked before each turn generates.
type FailurePredicate func(*narrative.QuestState) bool

// Config wires an orchestrator's collaborators. Generator and a positive
// window are required; everything else has a default or is optional.
type Config struct {
	Generator  generator.Generator
	Encounters EncounterSource // defaults to a time-seeded TableSource
	Window     ctxasm.WindowBudget
	Generation generator.Options
	Difficulty Difficulty
	Failure    FailurePredicate
	Log        *translog.Writer // optional
	Saver      Saver            // optional
}

// Orchestrator owns the turn state machine for one quest store.
type Orchestrator struct {
	store      *narrative.Store
	assembler  *ctxasm.Assembler
	validator  *validation.Validator
	gen        generator.Generator
	encounters EncounterSource
	window     ctxasm.WindowBudget
	genOpts    generator.Options
	difficulty Difficulty
	failed     FailurePredicate
	log        *translog.Writer
	saver      Saver

	sem *semaphore.Weighted
}

// New builds an orchestrator around a store.
func New(store *narrative.Store, cfg Config) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("orchestrator needs a narrative store")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("orchestrator needs a generator")
	}
	if cfg.Window.Total <= 0 {
		return nil, fmt.Errorf("orchestrator needs a positive token window")
	}
	if cfg.Encounters == nil {
		cfg.Encounters = NewTableSource(time.Now().UnixNano())
	}
	if cfg.Difficulty == "" {
		cfg.Difficulty = DifficultyNormal
	}
	return &Orchestrator{
		store:      store,
		assembler:  ctxasm.NewAssembler(),
		validator:  validation.NewValidator(consistency.NewAnalyzer(), validation.DefaultLimits()),
		gen:        cfg.Generator,
		encounters: cfg.Encounters,
		window:     cfg.Window,
		genOpts:    cfg.Generation,
		difficulty: cfg.Difficulty,
		failed:     cfg.Failure,
		log:        cfg.Log,
		saver:      cfg.Saver,
		sem:        semaphore.NewWeighted(1),
	}, nil
}

// Store exposes the underlying narrative store for quest setup and
// read-only snapshots.
func (o *Orchestrator) Store() *narrative.Store {
	return o.store
}

// OutcomeKind classifies a turn's result.
type OutcomeKind string

const (
	OutcomeNarration      OutcomeKind = "narration"
	OutcomeQuestCompleted OutcomeKind = "quest_completed"
	OutcomeQuestFailed    OutcomeKind = "quest_failed"
)

// Outcome is what one successful turn hands back to the host.
type Outcome struct {
	Kind             OutcomeKind
	Encounter        EncounterType
	Narration        string
	SuggestedActions []string
	Monster          *Monster
	NPC              string
	Summary          string // set on terminal outcomes
	Validation       *validation.Result
	State            *narrative.QuestState // post-turn snapshot
}

// Turn runs one player turn. Exactly one turn runs at a time; a second call
// while a generation is outstanding gets ErrBusy. On any error the stored
// quest state is unchanged and the same input may be retried.
func (o *Orchestrator) Turn(ctx context.Context, input string) (*Outcome, error) {
	if !o.sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer o.sem.Release(1)

	if !o.store.Active() {
		return nil, ErrNoQuest
	}
	prev := o.store.Snapshot()

	if prev.Completed {
		return o.completedOutcome(prev), nil
	}
	if prev.CurrentEncounter > prev.TotalEncounters {
		return o.resolveExhausted(), nil
	}
	if o.failed != nil && o.failed(prev) {
		return o.failQuest("the quest's budget ran out"), nil
	}

	// Every mutation this turn lands on the candidate; the store is only
	// touched at commit.
	ws := narrative.NewStore()
	if err := ws.Resume(prev.Clone()); err != nil {
		return nil, err
	}
	enc, setup := o.selectEncounter(ws.State(), input)
	logging.Quest("turn start: quest=%s encounter=%s", prev.QuestID, enc)

	assembleStart := time.Now()
	payload, err := o.assembler.Assemble(ws.State(), ctxasm.NarrationSpecialist(o.window.Available()))
	if err != nil {
		return nil, fmt.Errorf("context assembly failed: %w", err)
	}
	assemblyMS := time.Since(assembleStart).Milliseconds()

	if pre := validation.ValidateBeforeCall(ws.State(), payload, o.window); !pre.IsValid() {
		first, _ := pre.FirstError()
		return nil, fmt.Errorf("pre-flight validation failed: %w", first)
	}

	genStart := time.Now()
	turn, err := o.gen.Generate(ctx, &generator.StructuredContext{
		Payload:      payload,
		SceneFraming: setup.framing,
		PlayerAction: input,
	}, o.genOpts)
	if err != nil {
		logging.QuestWarn("generation failed, turn discarded: %v", err)
		return nil, fmt.Errorf("narration generation failed: %w", err)
	}
	generationMS := time.Since(genStart).Milliseconds()

	o.applyTurn(ws, enc, turn)
	next := ws.State()

	valStart := time.Now()
	res := o.validator.ValidateAfterResponse(prev, next, turn.Narration, turn)
	validationMS := time.Since(valStart).Milliseconds()
	if !res.IsValid() {
		first, _ := res.FirstError()
		logging.QuestWarn("turn rejected by post-flight: %v", first)
		return nil, fmt.Errorf("turn rejected: %w", first)
	}

	// Commit.
	if err := o.store.Replace(next); err != nil {
		return nil, err
	}
	o.validator.Analyzer().Remember(turn.Narration)

	if o.log != nil {
		// Every committed turn appends exactly one summary, so the count
		// is the turn number and it survives a save/resume round trip.
		rec := &translog.Record{
			QuestID:     next.QuestID,
			Turn:        len(next.EncounterSummaries),
			Encounter:   string(enc),
			PlayerInput: input,
			Narration:   turn.Narration,
			Previous:    prev,
			Next:        next.Clone(),
			TokensUsed:  payload.UsedTokens,
			Score:       res.Consistency,
			Timings: translog.Timings{
				AssemblyMS:   assemblyMS,
				GenerationMS: generationMS,
				ValidationMS: validationMS,
			},
		}
		for _, tier := range payload.Included {
			rec.TiersIncluded = append(rec.TiersIncluded, string(tier))
		}
		if err := o.log.Append(rec); err != nil {
			logging.QuestWarn("transition log append failed: %v", err)
		}
	}
	if o.saver != nil {
		if err := o.saver.Save(next); err != nil {
			logging.QuestWarn("quest save failed: %v", err)
		}
	}

	out := &Outcome{
		Kind:             OutcomeNarration,
		Encounter:        enc,
		Narration:        turn.Narration,
		SuggestedActions: turn.SuggestedActions,
		Monster:          setup.monster,
		NPC:              next.ActiveNPC,
		Validation:       &res,
		State:            o.store.Snapshot(),
	}
	if next.Completed {
		out.Kind = OutcomeQuestCompleted
		out.Summary = completionSummary(next)
	}
	return out, nil
}
