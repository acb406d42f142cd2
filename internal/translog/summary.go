package translog

import (
	"fmt"
	"sort"
	"strings"
)

// Summary aggregates one quest's recorded transitions.
type Summary struct {
	QuestID             string         `json:"quest_id"`
	Turns               int            `json:"turns"`
	AverageConsistency  float64        `json:"average_consistency"`
	IssueCounts         map[string]int `json:"issue_counts,omitempty"`
	AverageTokens       float64        `json:"average_tokens"`
	AverageGenerationMS float64        `json:"average_generation_ms"`
	UnresolvedAtEnd     int            `json:"unresolved_threads_at_end"`
	FinalChainLength    int            `json:"final_chain_length"`
}

// Summarize aggregates records belonging to one quest. With records from
// several quests, pass the output of FilterQuest first.
func Summarize(records []Record) Summary {
	s := Summary{IssueCounts: map[string]int{}}
	if len(records) == 0 {
		return s
	}
	s.QuestID = records[0].QuestID
	s.Turns = len(records)

	var scoreSum float64
	scored := 0
	var tokenSum, genSum int64
	for _, r := range records {
		tokenSum += int64(r.TokensUsed)
		genSum += r.Timings.GenerationMS
		if r.Score == nil {
			continue
		}
		scoreSum += r.Score.Overall
		scored++
		for _, issue := range r.Score.Issues {
			s.IssueCounts[string(issue.Kind)]++
		}
	}
	if scored > 0 {
		s.AverageConsistency = scoreSum / float64(scored)
	}
	s.AverageTokens = float64(tokenSum) / float64(len(records))
	s.AverageGenerationMS = float64(genSum) / float64(len(records))

	last := records[len(records)-1]
	if last.Next != nil {
		s.UnresolvedAtEnd = len(last.Next.UnresolvedThreads())
		s.FinalChainLength = len(last.Next.Chain)
	}
	return s
}

// FilterQuest keeps only records for the given quest ID.
func FilterQuest(records []Record, questID string) []Record {
	var out []Record
	for _, r := range records {
		if r.QuestID == questID {
			out = append(out, r)
		}
	}
	return out
}

// QuestIDs lists the distinct quest IDs present, sorted.
func QuestIDs(records []Record) []string {
	seen := map[string]bool{}
	for _, r := range records {
		seen[r.QuestID] = true
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Render formats a summary for terminal display.
func (s Summary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quest %s: %d turns\n", s.QuestID, s.Turns)
	fmt.Fprintf(&b, "  avg consistency:    %.3f\n", s.AverageConsistency)
	fmt.Fprintf(&b, "  avg tokens/turn:    %.1f\n", s.AverageTokens)
	fmt.Fprintf(&b, "  avg generation:     %.0fms\n", s.AverageGenerationMS)
	fmt.Fprintf(&b, "  unresolved at end:  %d\n", s.UnresolvedAtEnd)
	fmt.Fprintf(&b, "  final chain length: %d\n", s.FinalChainLength)
	if len(s.IssueCounts) > 0 {
		kinds := make([]string, 0, len(s.IssueCounts))
		for k := range s.IssueCounts {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		b.WriteString("  issues:\n")
		for _, k := range kinds {
			fmt.Fprintf(&b, "    %-24s %d\n", k, s.IssueCounts[k])
		}
	}
	return b.String()
}
