package parser

import (
	"strings"

	"github.com/helmcode/repoguardian/pkg/model"
)

// ScanSeverityTier is a permissive heuristic, not a parser: it looks for the
// literal substrings HIGH and MEDIUM anywhere in text, including unrelated
// words, and HIGH wins when both appear. Existing service payloads rely on
// this exact behaviour.
func ScanSeverityTier(text string) model.Tier {
	switch {
	case strings.Contains(text, "HIGH"):
		return model.TierHigh
	case strings.Contains(text, "MEDIUM"):
		return model.TierMedium
	default:
		return model.TierLow
	}
}

// RecommendAction maps a pull request analysis to a follow-up. Unlike the
// tier scan it ignores case.
func RecommendAction(text string) model.Action {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "HIGH"):
		return model.ActionAutoFix
	case strings.Contains(upper, "MEDIUM"):
		return model.ActionRaiseIssue
	default:
		return model.ActionNone
	}
}
