package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"questloom/internal/config"
	"questloom/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "questloom",
	Short: "questloom - narrative state & turn orchestration engine",
	Long: `questloom runs multi-turn LLM quests with a deterministic spine.

Every player turn flows through a fixed pipeline: encounter selection with
variety enforcement, token-budgeted context assembly, narration generation,
seven-dimension consistency scoring, and pre/post-flight validation. State
only mutates when a turn survives the whole gauntlet, so failed turns are
always safe to retry.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return logging.Initialize(cfg.Logging.Dir, logging.Config{
			DebugMode:  cfg.Logging.DebugMode,
			Level:      cfg.Logging.Level,
			Categories: cfg.Logging.Categories,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "questloom.yaml", "path to config file")
	rootCmd.AddCommand(playCmd, reportCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
