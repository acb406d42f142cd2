package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"questloom/internal/translog"
)

var reportQuestID string

var reportCmd = &cobra.Command{
	Use:   "report [translog-file]",
	Short: "Summarize a transition log",
	Long: `Aggregates a JSON Lines transition log into per-quest summaries:
average consistency, issue counts by kind, token and generation-time
averages, unresolved threads at quest end, and final chain length.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportQuestID, "quest", "", "limit the report to one quest id")
}

func runReport(cmd *cobra.Command, args []string) error {
	path := cfg.Quest.TransitionLogPath
	if len(args) == 1 {
		path = args[0]
	}
	records, err := translog.ReadAll(path)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No committed turns recorded.")
		return nil
	}

	ids := translog.QuestIDs(records)
	if reportQuestID != "" {
		ids = []string{reportQuestID}
	}
	for _, id := range ids {
		qr := translog.FilterQuest(records, id)
		if len(qr) == 0 {
			return fmt.Errorf("no records for quest %s in %s", id, path)
		}
		fmt.Println(translog.Summarize(qr).Render())
	}
	return nil
}
