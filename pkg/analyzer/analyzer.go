package analyzer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/helmcode/repoguardian/pkg/model"
	"github.com/helmcode/repoguardian/pkg/parser"
	"github.com/helmcode/repoguardian/pkg/service"
)

// Build turns a raw service response into an Aggregate for repositoryID.
// Missing collections are empty; a body that is not a JSON object, or a
// collection that is not an array, is a malformed response.
func Build(repositoryID string, body []byte) (*model.Aggregate, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, service.Malformed(fmt.Errorf("response body is not a JSON object"))
	}

	var resp model.Response
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, service.Malformed(fmt.Errorf("decode response: %w", err))
	}

	issues, err := decodeItems("issues", resp.Issues)
	if err != nil {
		return nil, err
	}
	prs, err := decodeItems("prs", resp.PRs)
	if err != nil {
		return nil, err
	}

	agg := &model.Aggregate{
		RepositoryID:     repositoryID,
		NarrativeSummary: summaryText(resp.Summary),
		Issues:           make([]model.IssueFinding, 0, len(issues)),
		PullRequests:     make([]model.PullRequestFinding, 0, len(prs)),
	}
	for _, item := range issues {
		agg.Issues = append(agg.Issues, parser.NormalizeIssue(item))
	}
	for _, item := range prs {
		agg.PullRequests = append(agg.PullRequests, parser.NormalizePullRequest(item))
	}
	return agg, nil
}

func decodeItems(key string, raw json.RawMessage) ([]model.AnalysisItem, error) {
	if isNull(raw) {
		return nil, nil
	}
	var items []model.AnalysisItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, service.Malformed(fmt.Errorf("decode %s: %w", key, err))
	}
	return items, nil
}

// summaryText keeps the summary verbatim. Strings are unquoted; any other
// JSON value is shown as written.
func summaryText(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
