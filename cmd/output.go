package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/helmcode/repoguardian/pkg/config"
)

// Progress lines go to stderr so stdout stays clean for -o json|yaml.

func printHeader(w io.Writer, title string, cfg config.Config, repo string) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(w)
	cyan.Fprintln(w, title)
	if repo != "" {
		fmt.Fprintf(w, "📦 Repository: %s\n", repo)
	}
	if cfg.DiscoveryEnabled() {
		fmt.Fprintf(w, "☸️  Service: %s (kubernetes)\n", cfg.Kubernetes.Service)
	} else {
		fmt.Fprintf(w, "🌐 Service: %s\n", cfg.Service.URL)
	}
	fmt.Fprintln(w)
}

func printSuccess(w io.Writer, msg string) {
	green := color.New(color.FgGreen)
	green.Fprintf(w, "✓ %s\n", msg)
}

func printError(w io.Writer, msg string) {
	red := color.New(color.FgRed)
	red.Fprintf(w, "✗ %s\n", msg)
}
