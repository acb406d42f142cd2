package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	ctxasm "questloom/internal/context"
	"questloom/internal/generator"
	"questloom/internal/narrative"
	"questloom/internal/persistence"
	"questloom/internal/quest"
	"questloom/internal/translog"
)

var (
	playQuestType  string
	playGoal       string
	playLocation   string
	playEncounters int
	playResumeID   string
	playSeed       int64
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Run an interactive quest",
	Long: `Starts (or resumes) a quest and runs the turn loop on stdin.
Each line you type is one player action; type "quit" to stop. Progress is
saved after every committed turn, so a quest can be resumed later with
--resume <quest-id>.`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&playQuestType, "type", "investigation",
		"quest type (combat|retrieval|escort|investigation|rescue|diplomatic)")
	playCmd.Flags().StringVar(&playGoal, "goal", "", "quest objective (required for a new quest)")
	playCmd.Flags().StringVar(&playLocation, "location", "", "starting location")
	playCmd.Flags().IntVar(&playEncounters, "encounters", 0, "encounter budget (default from config)")
	playCmd.Flags().StringVar(&playResumeID, "resume", "", "resume a saved quest by id")
	playCmd.Flags().Int64Var(&playSeed, "seed", 0, "encounter selection seed (0 = time-based)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Generator.APIKey == "" {
		return fmt.Errorf("no API key: set generator.api_key in %s or export QUESTLOOM_API_KEY", configPath)
	}
	gen, err := generator.NewGeminiGenerator(ctx, cfg.Generator.APIKey, cfg.Generator.Model)
	if err != nil {
		return err
	}

	db, err := persistence.Open(cfg.Quest.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	tlog, err := translog.NewWriter(cfg.Quest.TransitionLogPath)
	if err != nil {
		return err
	}
	defer tlog.Close()

	store := narrative.NewStore()
	if playResumeID != "" {
		saved, err := db.Load(playResumeID)
		if err != nil {
			return fmt.Errorf("cannot resume quest %s: %w", playResumeID, err)
		}
		if err := store.Resume(saved); err != nil {
			return err
		}
		logger.Info("quest resumed", zap.String("quest_id", saved.QuestID))
	} else {
		if playGoal == "" {
			return fmt.Errorf("a new quest needs --goal")
		}
		total := playEncounters
		if total <= 0 {
			total = cfg.Quest.DefaultEncounters
		}
		s, err := store.StartQuest(narrative.QuestParams{
			Type:            narrative.QuestType(playQuestType),
			Goal:            playGoal,
			Location:        playLocation,
			TotalEncounters: total,
		})
		if err != nil {
			return err
		}
		logger.Info("quest started",
			zap.String("quest_id", s.QuestID),
			zap.String("type", playQuestType),
			zap.Int("encounters", total))
	}

	seed := playSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	orch, err := quest.New(store, quest.Config{
		Generator:  gen,
		Encounters: quest.NewTableSource(seed),
		Window: ctxasm.WindowBudget{
			Total:           cfg.Window.Total,
			Instruction:     cfg.Window.Instruction,
			History:         cfg.Window.History,
			ResponseReserve: cfg.Window.ResponseReserve,
			SafetyMargin:    cfg.Window.SafetyMargin,
		},
		Generation: generator.Options{
			MaxOutputTokens: cfg.Generator.MaxOutputTokens,
			Temperature:     cfg.Generator.Temperature,
		},
		Difficulty: quest.Difficulty(cfg.Quest.Difficulty),
		Log:        tlog,
		Saver:      db,
	})
	if err != nil {
		return err
	}

	s := store.Snapshot()
	fmt.Printf("Quest %s: %s\n", s.QuestID, s.Goal)
	fmt.Printf("Encounter %d of %d. What do you do?\n\n", s.CurrentEncounter, s.TotalEncounters)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			break
		}
		if ctx.Err() != nil {
			break
		}

		out, err := orch.Turn(ctx, input)
		if err != nil {
			if errors.Is(err, quest.ErrBusy) {
				fmt.Println("(still narrating, hold on)")
				continue
			}
			logger.Warn("turn failed", zap.Error(err))
			fmt.Println("Something went wrong with that turn. Try again.")
			continue
		}
		printOutcome(out)
		if out.Kind != quest.OutcomeNarration {
			break
		}
	}
	return scanner.Err()
}

func printOutcome(out *quest.Outcome) {
	if out.Narration != "" {
		fmt.Println()
		fmt.Println(out.Narration)
	}
	if out.Monster != nil {
		fmt.Printf("\n[%s — %s]\n", out.Monster.Name, out.Monster.Description)
	}
	if len(out.SuggestedActions) > 0 {
		fmt.Println()
		for _, a := range out.SuggestedActions {
			fmt.Printf("  - %s\n", a)
		}
	}
	if out.Summary != "" {
		fmt.Println()
		fmt.Println(out.Summary)
	}
	fmt.Println()
}
