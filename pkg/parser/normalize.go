package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/helmcode/repoguardian/pkg/model"
)

const (
	fallbackSeverityLabel = "ANALYSIS"
	fallbackCategoryLabel = "ISSUE"
)

var riskLevelPattern = regexp.MustCompile(`(?i)Risk Level:?\s*(HIGH|MEDIUM|LOW)`)

// Serialize renders the whole item as text. It is the last fallback of every
// chain below and the input of the severity scans, so it is never empty.
func Serialize(item model.AnalysisItem) string {
	if len(item.Raw) > 0 {
		return string(item.Raw)
	}
	out, err := json.Marshal(item)
	if err != nil || len(out) == 0 {
		return "{}"
	}
	return string(out)
}

// SeverityLabel returns risk_level, else the token of a "Risk Level: X"
// phrase anywhere in the item, else "ANALYSIS".
func SeverityLabel(item model.AnalysisItem) string {
	if v := present(item.RiskLevel); v != "" {
		return v
	}
	if m := riskLevelPattern.FindStringSubmatch(Serialize(item)); m != nil {
		return strings.ToUpper(m[1])
	}
	return fallbackSeverityLabel
}

func Tier(item model.AnalysisItem) model.Tier {
	return ScanSeverityTier(Serialize(item))
}

// PRBody returns problems, else the serialized item.
func PRBody(item model.AnalysisItem) string {
	if v := present(item.Problems); v != "" {
		return v
	}
	return Serialize(item)
}

// IssueCategory returns the item kind, else "ISSUE".
func IssueCategory(item model.AnalysisItem) string {
	if v := present(item.Kind); v != "" {
		return v
	}
	return fallbackCategoryLabel
}

// IssueDescription returns short_summary, else summary, else the serialized item.
func IssueDescription(item model.AnalysisItem) string {
	if v := present(item.ShortSummary); v != "" {
		return v
	}
	if v := present(item.Summary); v != "" {
		return v
	}
	return Serialize(item)
}

func NormalizePullRequest(item model.AnalysisItem) model.PullRequestFinding {
	serialized := Serialize(item)
	return model.PullRequestFinding{
		SeverityLabel: SeverityLabel(item),
		Tier:          ScanSeverityTier(serialized),
		Body:          PRBody(item),
		Suggestions:   present(item.Suggestions),
		Action:        RecommendAction(serialized),
		Item:          item,
	}
}

func NormalizeIssue(item model.AnalysisItem) model.IssueFinding {
	return model.IssueFinding{
		Category:    IssueCategory(item),
		Description: IssueDescription(item),
		Tier:        Tier(item),
		Item:        item,
	}
}

// present treats blank strings the same as missing fields.
func present(v *string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return ""
	}
	return *v
}
