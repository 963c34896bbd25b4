package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/helmcode/repoguardian/pkg/model"
)

// DisplayResults formats and displays the analysis results
func DisplayResults(w io.Writer, agg *model.Aggregate, format string) error {
	switch format {
	case "json":
		return displayJSON(w, agg)
	case "yaml":
		return displayYAML(w, agg)
	case "human":
		fallthrough
	default:
		displayHuman(w, agg)
	}
	return nil
}

// DisplayFailure prints the user-facing failure message. Machine formats get
// a small document so scripts can detect the failure.
func DisplayFailure(w io.Writer, repo, message, format string) error {
	doc := map[string]string{"repo": repo, "error": message}
	switch format {
	case "json":
		return writeJSON(w, doc)
	case "yaml":
		return writeYAML(w, doc)
	default:
		red := color.New(color.FgRed)
		red.Fprintf(w, "✗ %s\n", message)
		return nil
	}
}

func displayJSON(w io.Writer, agg *model.Aggregate) error {
	return writeJSON(w, agg)
}

func displayYAML(w io.Writer, agg *model.Aggregate) error {
	return writeYAML(w, agg)
}

func writeJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(output))
	return nil
}

func writeYAML(w io.Writer, v any) error {
	output, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprint(w, string(output))
	return nil
}

func displayHuman(w io.Writer, agg *model.Aggregate) {
	yellow := color.New(color.FgYellow, color.Bold)
	magenta := color.New(color.FgMagenta, color.Bold)
	blue := color.New(color.FgBlue, color.Bold)

	fmt.Fprintln(w)

	yellow.Fprintf(w, "⚡ EXECUTIVE SUMMARY: %s\n", agg.RepositoryID)
	if agg.NarrativeSummary != "" {
		fmt.Fprintln(w, wrapText(agg.NarrativeSummary, 80, "   "))
	}
	fmt.Fprintln(w)

	magenta.Fprintf(w, "🔀 PULL REQUESTS (%d):\n", len(agg.PullRequests))
	if len(agg.PullRequests) == 0 {
		fmt.Fprintf(w, "   %s\n\n", color.HiBlackString("No open PRs found."))
	}
	for i, pr := range agg.PullRequests {
		label := tierColor(pr.Tier).Sprintf("[%s]", pr.SeverityLabel)
		fmt.Fprintf(w, "   %d. %s %s PR Analysis\n", i+1, tierIcon(pr.Tier), label)
		fmt.Fprintln(w, wrapText(pr.Body, 80, "      "))
		if pr.Suggestions != "" {
			fmt.Fprintf(w, "      Suggestions: %s\n", color.CyanString(pr.Suggestions))
		}
		fmt.Fprintf(w, "      Recommended action: %s\n", actionLabel(pr.Action))
		fmt.Fprintln(w)
	}

	blue.Fprintf(w, "🐞 RECENT ISSUES (%d):\n", len(agg.Issues))
	if len(agg.Issues) == 0 {
		fmt.Fprintf(w, "   %s\n\n", color.HiBlackString("No open issues found."))
	}
	for i, issue := range agg.Issues {
		fmt.Fprintf(w, "   %d. %s\n", i+1, color.BlueString("[%s]", issue.Category))
		fmt.Fprintln(w, wrapText(issue.Description, 80, "      "))
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("─", 80))
	fmt.Fprintf(w, "💡 %s\n", color.HiBlackString("Run with -o json or -o yaml for machine-readable output"))
}

func tierColor(tier model.Tier) *color.Color {
	switch tier {
	case model.TierHigh:
		return color.New(color.FgRed, color.Bold)
	case model.TierMedium:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgGreen, color.Bold)
	}
}

func tierIcon(tier model.Tier) string {
	switch tier {
	case model.TierHigh:
		return "🔴"
	case model.TierMedium:
		return "🟡"
	default:
		return "🟢"
	}
}

func actionLabel(a model.Action) string {
	switch a {
	case model.ActionAutoFix:
		return color.RedString(string(a))
	case model.ActionRaiseIssue:
		return color.YellowString(string(a))
	default:
		return color.GreenString(string(a))
	}
}

func wrapText(text string, width int, indent string) string {
	var result strings.Builder
	lines := strings.Split(text, "\n")

	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			result.WriteString("\n")
			continue
		}

		currentLine := indent
		for _, word := range words {
			if currentLine != indent && len(currentLine)+len(word)+1 > width {
				result.WriteString(currentLine + "\n")
				currentLine = indent + word
			} else if currentLine == indent {
				currentLine += word
			} else {
				currentLine += " " + word
			}
		}

		if currentLine != indent {
			result.WriteString(currentLine + "\n")
		}
	}

	return strings.TrimSuffix(result.String(), "\n")
}
