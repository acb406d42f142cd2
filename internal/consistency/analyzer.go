// Package consistency scores a candidate narration against the established
// quest state across seven independent dimensions: causal coherence,
// spatial consistency, thread resolution, NPC consistency, tension arc,
// repetition, and quest alignment. Each dimension starts at 1.0 and loses
// fixed penalties per detected issue, floored at zero; the overall score is
// a fixed-weight sum.
package consistency

import (
	"fmt"
	"sort"
	"strings"

	"questloom/internal/logging"
	"questloom/internal/narrative"
)

// Input bundles everything one analysis needs. Previous enables the
// tension-arc delta checks; without it that dimension scores a neutral 1.0.
type Input struct {
	State     *narrative.QuestState
	Previous  *narrative.QuestState
	Narration string
	NewEvent  *narrative.CausalEvent
}

// Analyzer scores narrations. It carries a bounded history of committed
// narrations for the repetition dimension; everything else is stateless.
type Analyzer struct {
	history *HistoryBuffer
}

// NewAnalyzer returns an analyzer with an empty narration history.
func NewAnalyzer() *Analyzer {
	return &Analyzer{history: NewHistoryBuffer(8)}
}

// Remember adds a committed narration to the repetition history. Callers
// must only invoke this after a turn commits, so discarded candidates never
// influence later scoring.
func (a *Analyzer) Remember(narration string) {
	a.history.Add(narration)
}

// Analyze scores one candidate narration. It never mutates its inputs.
func (a *Analyzer) Analyze(in Input) Score {
	s := in.State
	lower := strings.ToLower(in.Narration)

	var issues []Issue
	var b Breakdown
	b.Causal = scoreCausal(s, in.NewEvent, &issues)
	b.Spatial = scoreSpatial(s, lower, &issues)
	b.Thread = scoreThreads(s, &issues)
	b.NPC = scoreNPCs(s, lower, &issues)
	b.Tension = scoreTension(s, in.Previous, &issues)
	b.Repetition = a.scoreRepetition(s, in.Narration, &issues)
	b.Quest = scoreQuestAlignment(s, lower, &issues)

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity > issues[j].Severity
	})

	overall := weightCausal*b.Causal +
		weightSpatial*b.Spatial +
		weightThread*b.Thread +
		weightNPC*b.NPC +
		weightTension*b.Tension +
		weightRepetition*b.Repetition +
		weightQuest*b.Quest

	logging.ConsistencyDebug("score=%.3f issues=%d breakdown=%+v", overall, len(issues), b)
	return Score{Overall: overall, Breakdown: b, Issues: issues}
}

// scoreCausal checks the new event's declared cause against the existing
// chain, and the chain tail for a consequence/cause mismatch.
func scoreCausal(s *narrative.QuestState, ev *narrative.CausalEvent, issues *[]Issue) float64 {
	score := 1.0

	if ev != nil && ev.Cause != "" && !causeKnown(s.Chain, ev.Cause) {
		score -= 0.5
		*issues = append(*issues, Issue{
			Kind:        IssueCausalViolation,
			Severity:    SeverityMajor,
			Description: fmt.Sprintf("event %q claims cause %q, which never happened", ev.Event, ev.Cause),
			Encounter:   s.CurrentEncounter,
			Context:     ev.Cause,
		})
	}

	if n := len(s.Chain); n >= 2 {
		prev, last := s.Chain[n-2], s.Chain[n-1]
		if prev.Consequence != "" && last.Cause != "" && !textMatch(prev.Consequence, last.Cause) {
			score -= 0.2
			*issues = append(*issues, Issue{
				Kind:        IssueLogicalGap,
				Severity:    SeverityModerate,
				Description: fmt.Sprintf("chain gap: consequence %q does not lead to cause %q", prev.Consequence, last.Cause),
				Encounter:   last.Encounter,
			})
		}
	}
	return floor(score)
}

func causeKnown(chain []narrative.CausalEvent, cause string) bool {
	for _, e := range chain {
		if textMatch(e.Event, cause) || textMatch(e.Consequence, cause) {
			return true
		}
	}
	return false
}

func textMatch(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// scoreSpatial flags narration that contradicts an area's recorded status.
func scoreSpatial(s *narrative.QuestState, lower string, issues *[]Issue) float64 {
	score := 1.0
	for area := range s.Locations.Cleared {
		if !strings.Contains(lower, strings.ToLower(area)) {
			continue
		}
		if word, ok := containsAny(lower, DangerWords); ok {
			score -= 0.3
			*issues = append(*issues, Issue{
				Kind:        IssueSpatialViolation,
				Severity:    SeverityModerate,
				Description: fmt.Sprintf("cleared area %q described with danger (%q)", area, word),
				Encounter:   s.CurrentEncounter,
				Context:     word,
			})
		}
	}
	for area := range s.Locations.Locked {
		if !strings.Contains(lower, strings.ToLower(area)) {
			continue
		}
		if word, ok := containsAny(lower, AccessWords); ok {
			score -= 0.5
			*issues = append(*issues, Issue{
				Kind:        IssueSpatialViolation,
				Severity:    SeverityMajor,
				Description: fmt.Sprintf("locked area %q entered without unlocking (%q)", area, word),
				Encounter:   s.CurrentEncounter,
				Context:     word,
			})
		}
	}
	for area := range s.Locations.Destroyed {
		if !strings.Contains(lower, strings.ToLower(area)) {
			continue
		}
		if word, ok := containsAny(lower, IntactWords); ok {
			score -= 0.3
			*issues = append(*issues, Issue{
				Kind:        IssueSpatialViolation,
				Severity:    SeverityModerate,
				Description: fmt.Sprintf("destroyed area %q described as intact (%q)", area, word),
				Encounter:   s.CurrentEncounter,
				Context:     word,
			})
		}
	}
	return floor(score)
}

// scoreThreads penalizes high-priority threads left dangling, promises aged
// past the midpoint, and unresolved-thread pileups.
func scoreThreads(s *narrative.QuestState, issues *[]Issue) float64 {
	score := 1.0
	unresolved := s.UnresolvedThreads()

	for _, t := range unresolved {
		age := s.CurrentEncounter - t.IntroducedAt
		if t.Priority >= 8 && age > 5 {
			score -= 0.15
			*issues = append(*issues, Issue{
				Kind:        IssueUnresolvedThread,
				Severity:    SeverityModerate,
				Description: fmt.Sprintf("priority-%d thread unresolved for %d encounters", t.Priority, age),
				Encounter:   s.CurrentEncounter,
				Context:     t.Text,
			})
		}
		if t.Kind == narrative.ThreadPromise && age > s.TotalEncounters/2 {
			score -= 0.3
			*issues = append(*issues, Issue{
				Kind:        IssueUnresolvedThread,
				Severity:    SeverityMajor,
				Description: fmt.Sprintf("promise unkept past the quest midpoint (%d encounters old)", age),
				Encounter:   s.CurrentEncounter,
				Context:     t.Text,
			})
		}
	}

	// Pruning keeps this from happening in steady state; it can still show
	// up transiently if a batch of threads lands before the prune runs.
	if len(unresolved) > 5 {
		score -= 0.1
		*issues = append(*issues, Issue{
			Kind:        IssueUnresolvedThread,
			Severity:    SeverityMinor,
			Description: fmt.Sprintf("%d unresolved threads open at once", len(unresolved)),
			Encounter:   s.CurrentEncounter,
		})
	}
	return floor(score)
}

// scoreNPCs flags narration that contradicts an NPC's recorded standing.
func scoreNPCs(s *narrative.QuestState, lower string, issues *[]Issue) float64 {
	score := 1.0
	for name, rel := range s.NPCs {
		if !strings.Contains(lower, strings.ToLower(name)) {
			continue
		}
		if rel.Relationship < -5 {
			if word, ok := containsAny(lower, FriendlyWords); ok {
				score -= 0.4
				*issues = append(*issues, Issue{
					Kind:        IssueNPCInconsistency,
					Severity:    SeverityMajor,
					Description: fmt.Sprintf("%s (relationship %d) acts friendly (%q)", name, rel.Relationship, word),
					Encounter:   s.CurrentEncounter,
					Context:     word,
				})
			}
		}
		if rel.Relationship > 5 {
			if word, ok := containsAny(lower, HostileWords); ok {
				score -= 0.4
				*issues = append(*issues, Issue{
					Kind:        IssueNPCInconsistency,
					Severity:    SeverityMajor,
					Description: fmt.Sprintf("%s (relationship %d) acts hostile (%q)", name, rel.Relationship, word),
					Encounter:   s.CurrentEncounter,
					Context:     word,
				})
			}
		}
		if rel.TimesMet == 1 {
			if word, ok := containsAny(lower, ReunionWords); ok {
				score -= 0.2
				*issues = append(*issues, Issue{
					Kind:        IssueNPCInconsistency,
					Severity:    SeverityMinor,
					Description: fmt.Sprintf("%s met once but described as returning (%q)", name, word),
					Encounter:   s.CurrentEncounter,
					Context:     word,
				})
			}
		}
	}
	return floor(score)
}

// scoreTension checks the tension delta against the dramatic arc. Without a
// previous state there is nothing to compare, so the dimension is neutral.
func scoreTension(s, prev *narrative.QuestState, issues *[]Issue) float64 {
	if prev == nil {
		return 1.0
	}
	score := 1.0
	delta := s.Tension - prev.Tension

	if s.Stage == narrative.StageClimax && delta < 0 {
		score -= 0.3
		*issues = append(*issues, Issue{
			Kind:        IssueTensionInversion,
			Severity:    SeverityModerate,
			Description: fmt.Sprintf("tension dropped %d->%d during the climax", prev.Tension, s.Tension),
			Encounter:   s.CurrentEncounter,
		})
	}
	if delta > 3 {
		score -= 0.1
		*issues = append(*issues, Issue{
			Kind:        IssueTensionInversion,
			Severity:    SeverityMinor,
			Description: fmt.Sprintf("tension spiked by %d in one turn", delta),
			Encounter:   s.CurrentEncounter,
		})
	}
	if lo, hi := s.Stage.TensionBand(); s.Tension < lo || s.Tension > hi {
		score -= 0.2
		*issues = append(*issues, Issue{
			Kind:        IssueTensionInversion,
			Severity:    SeverityMinor,
			Description: fmt.Sprintf("tension %d outside the %s band %d-%d", s.Tension, s.Stage, lo, hi),
			Encounter:   s.CurrentEncounter,
		})
	}
	return floor(score)
}

// Repetition thresholds on the maximum Jaccard overlap between the
// candidate's content words and any remembered narration.
const (
	repetitionModerate = 0.7
	repetitionMinor    = 0.5
)

func (a *Analyzer) scoreRepetition(s *narrative.QuestState, narration string, issues *[]Issue) float64 {
	if a.history.Len() == 0 {
		return 1.0
	}
	sim := a.history.MaxSimilarity(narration)
	switch {
	case sim >= repetitionModerate:
		*issues = append(*issues, Issue{
			Kind:        IssueRepetition,
			Severity:    SeverityModerate,
			Description: fmt.Sprintf("narration repeats a recent beat (%.0f%% word overlap)", sim*100),
			Encounter:   s.CurrentEncounter,
		})
		return floor(1.0 - 0.3)
	case sim >= repetitionMinor:
		*issues = append(*issues, Issue{
			Kind:        IssueRepetition,
			Severity:    SeverityMinor,
			Description: fmt.Sprintf("narration closely echoes a recent beat (%.0f%% word overlap)", sim*100),
			Encounter:   s.CurrentEncounter,
		})
		return floor(1.0 - 0.1)
	}
	return 1.0
}

// scoreQuestAlignment requires climax narration to reference the goal.
func scoreQuestAlignment(s *narrative.QuestState, lower string, issues *[]Issue) float64 {
	if s.Stage != narrative.StageClimax {
		return 1.0
	}
	words := contentWords(s.Goal)
	if len(words) == 0 {
		return 1.0
	}
	for _, w := range words {
		if strings.Contains(lower, w) {
			return 1.0
		}
	}
	*issues = append(*issues, Issue{
		Kind:        IssueQuestDrift,
		Severity:    SeverityModerate,
		Description: "climax narration never references the quest goal",
		Encounter:   s.CurrentEncounter,
		Context:     s.Goal,
	})
	return floor(1.0 - 0.3)
}

func floor(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
