package validate

import "strings"

// Per-issue score penalties by severity.
const (
	penaltyCritical = 30.0
	penaltyError    = 15.0
	penaltyWarning  = 5.0
	penaltyInfo     = 1.0
)

// Axis weights for the overall score.
const (
	weightCompleteness = 0.4
	weightConsistency  = 0.3
	weightValidity     = 0.3
)

// scoreIssues derives the three quality axes from a set of issues. Each axis
// starts at 100 and loses the severity penalty of every issue routed to it,
// flooring at 0. Routing goes by rule name: null and completeness rules hit
// the completeness axis, duplicate and consistency rules hit the consistency
// axis, everything else hits validity.
func scoreIssues(issues []Issue) Scores {
	scores := Scores{Completeness: 100, Consistency: 100, Validity: 100}
	for _, issue := range issues {
		penalty := severityPenalty(issue.Severity)
		switch axisFor(issue.Rule) {
		case "completeness":
			scores.Completeness -= penalty
		case "consistency":
			scores.Consistency -= penalty
		default:
			scores.Validity -= penalty
		}
	}
	scores.Completeness = floor(scores.Completeness)
	scores.Consistency = floor(scores.Consistency)
	scores.Validity = floor(scores.Validity)
	scores.Overall = weightCompleteness*scores.Completeness +
		weightConsistency*scores.Consistency +
		weightValidity*scores.Validity
	return scores
}

func axisFor(rule string) string {
	switch {
	case strings.Contains(rule, "null"), strings.Contains(rule, "completeness"):
		return "completeness"
	case strings.Contains(rule, "duplicate"), strings.Contains(rule, "consistency"):
		return "consistency"
	default:
		return "validity"
	}
}

func severityPenalty(s Severity) float64 {
	switch s {
	case SeverityCritical:
		return penaltyCritical
	case SeverityError:
		return penaltyError
	case SeverityWarning:
		return penaltyWarning
	default:
		return penaltyInfo
	}
}

func floor(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
