package model

import (
	"bytes"
	"encoding/json"
)

// AnalysisItem is one finding reported by the analysis service. Every field
// is optional; Raw keeps the item exactly as it arrived so unknown keys and
// non-object items still have a textual form.
type AnalysisItem struct {
	Kind         *string `json:"type,omitempty" yaml:"type,omitempty"`
	Title        *string `json:"title,omitempty" yaml:"title,omitempty"`
	Summary      *string `json:"summary,omitempty" yaml:"summary,omitempty"`
	ShortSummary *string `json:"short_summary,omitempty" yaml:"short_summary,omitempty"`
	RiskLevel    *string `json:"risk_level,omitempty" yaml:"risk_level,omitempty"`
	Problems     *string `json:"problems,omitempty" yaml:"problems,omitempty"`
	Suggestions  *string `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`

	Raw json.RawMessage `json:"-" yaml:"-"`
}

// Field aliases accepted on the wire, in lookup order.
var (
	kindKeys         = []string{"type", "kind"}
	titleKeys        = []string{"title"}
	summaryKeys      = []string{"summary"}
	shortSummaryKeys = []string{"short_summary", "shortSummary"}
	riskLevelKeys    = []string{"risk_level", "riskLevel"}
	problemsKeys     = []string{"problems"}
	suggestionsKeys  = []string{"suggestions"}
)

// UnmarshalJSON accepts any JSON value. Objects populate the known fields;
// a key holding something other than a string is left absent.
func (a *AnalysisItem) UnmarshalJSON(data []byte) error {
	*a = AnalysisItem{}

	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return err
	}
	a.Raw = json.RawMessage(compact.Bytes())

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		// Not an object: strings, numbers, arrays and null are still items.
		return nil
	}

	a.Kind = lookup(fields, kindKeys)
	a.Title = lookup(fields, titleKeys)
	a.Summary = lookup(fields, summaryKeys)
	a.ShortSummary = lookup(fields, shortSummaryKeys)
	a.RiskLevel = lookup(fields, riskLevelKeys)
	a.Problems = lookup(fields, problemsKeys)
	a.Suggestions = lookup(fields, suggestionsKeys)
	return nil
}

// MarshalJSON re-emits the item as received when it came off the wire.
func (a AnalysisItem) MarshalJSON() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	type plain AnalysisItem
	return json.Marshal(plain(a))
}

func lookup(fields map[string]json.RawMessage, keys []string) *string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		return &s
	}
	return nil
}

// Response is the body returned by the analysis service.
type Response struct {
	Repo    string          `json:"repo"`
	Summary json.RawMessage `json:"summary"`
	Issues  json.RawMessage `json:"issues"`
	PRs     json.RawMessage `json:"prs"`
}

// Tier is the coarse severity class used for emphasis.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Action is the follow-up suggested for a pull request finding.
type Action string

const (
	ActionAutoFix    Action = "AUTO_FIX"
	ActionRaiseIssue Action = "RAISE_ISSUE"
	ActionNone       Action = "NO_ACTION"
)

type PullRequestFinding struct {
	SeverityLabel string       `json:"severity_label" yaml:"severity_label"`
	Tier          Tier         `json:"tier" yaml:"tier"`
	Body          string       `json:"body" yaml:"body"`
	Suggestions   string       `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	Action        Action       `json:"action" yaml:"action"`
	Item          AnalysisItem `json:"item" yaml:"-"`
}

type IssueFinding struct {
	Category    string       `json:"category" yaml:"category"`
	Description string       `json:"description" yaml:"description"`
	Tier        Tier         `json:"tier" yaml:"tier"`
	Item        AnalysisItem `json:"item" yaml:"-"`
}

// Aggregate is one completed analysis run. It is built once and never
// modified; the next successful run replaces it.
type Aggregate struct {
	RepositoryID     string               `json:"repo" yaml:"repo"`
	NarrativeSummary string               `json:"summary" yaml:"summary"`
	Issues           []IssueFinding       `json:"issues" yaml:"issues"`
	PullRequests     []PullRequestFinding `json:"prs" yaml:"prs"`
}
