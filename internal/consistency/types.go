package consistency

import "encoding/json"

// Severity orders issues from cosmetic to commit-blocking.
type Severity int

const (
	SeverityMinor Severity = iota
	SeverityModerate
	SeverityMajor
	SeverityCritical
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "minor"
	case SeverityModerate:
		return "moderate"
	case SeverityMajor:
		return "major"
	case SeverityCritical:
		return "critical"
	}
	return "unknown"
}

// MarshalJSON encodes the severity as its name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "moderate":
		*s = SeverityModerate
	case "major":
		*s = SeverityMajor
	case "critical":
		*s = SeverityCritical
	default:
		*s = SeverityMinor
	}
	return nil
}

// IssueKind classifies a detected inconsistency.
type IssueKind string

const (
	IssueCausalViolation  IssueKind = "causal_violation"
	IssueSpatialViolation IssueKind = "spatial_violation"
	IssueUnresolvedThread IssueKind = "unresolved_thread"
	IssueNPCInconsistency IssueKind = "npc_inconsistency"
	IssueTensionInversion IssueKind = "tension_inversion"
	IssueRepetition       IssueKind = "repetition"
	IssueQuestDrift       IssueKind = "quest_drift"
	IssueLogicalGap       IssueKind = "logical_gap"
)

// Issue describes one detected inconsistency with supporting context.
type Issue struct {
	Kind        IssueKind `json:"kind"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Encounter   int       `json:"encounter"`
	Context     string    `json:"context,omitempty"`
}

// Breakdown holds the seven per-dimension sub-scores, each in [0,1].
type Breakdown struct {
	Causal     float64 `json:"causal"`
	Spatial    float64 `json:"spatial"`
	Thread     float64 `json:"thread"`
	NPC        float64 `json:"npc"`
	Tension    float64 `json:"tension"`
	Repetition float64 `json:"repetition"`
	Quest      float64 `json:"quest"`
}

// Dimension weights. They sum to 1.0.
const (
	weightCausal     = 0.20
	weightSpatial    = 0.15
	weightThread     = 0.20
	weightNPC        = 0.10
	weightTension    = 0.10
	weightRepetition = 0.10
	weightQuest      = 0.15
)

// Score is the weighted consistency verdict for one narration.
type Score struct {
	Overall   float64   `json:"overall"` // 0..1
	Breakdown Breakdown `json:"breakdown"`
	Issues    []Issue   `json:"issues,omitempty"`
}

// Worst returns the highest severity present, and whether any issue exists.
func (s Score) Worst() (Severity, bool) {
	if len(s.Issues) == 0 {
		return SeverityMinor, false
	}
	// Issues are sorted by descending severity.
	return s.Issues[0].Severity, true
}

// IssuesAt returns the issues of exactly the given severity.
func (s Score) IssuesAt(sev Severity) []Issue {
	var out []Issue
	for _, is := range s.Issues {
		if is.Severity == sev {
			out = append(out, is)
		}
	}
	return out
}
