package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/helmcode/repoguardian/pkg/controller"
	"github.com/helmcode/repoguardian/pkg/formatter"
	"github.com/helmcode/repoguardian/pkg/metrics"
)

const prompt = "repo> "

func NewInteractiveCmd() *cobra.Command {
	opts := &sessionOptions{}
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Analyze repositories one after another from a prompt",
		Long: `Read repository identifiers (owner/name) from standard input, one per line.
Entering a new identifier while an analysis is still running cancels it and
starts the new one; only the latest result is shown.

Type "quit" or "exit", or close the input, to leave.

Examples:
  # Start a session against a local service
  repoguardian interactive

  # Expose session metrics for scraping
  repoguardian interactive --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, opts, metricsAddr)
		},
	}

	addSessionFlags(cmd, opts)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

func runInteractive(cmd *cobra.Command, opts *sessionOptions, metricsAddr string) error {
	ctx := cmd.Context()
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	sess, err := openSession(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	if metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, metricsAddr); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	printHeader(stderr, "🛡️  RepoGuardian interactive session", sess.cfg, "")

	r := &stateRenderer{out: stdout, status: stderr, format: sess.cfg.Output}
	ctrl := controller.New(sess.client,
		controller.WithContext(ctx),
		controller.WithObserver(r.render),
	)
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := readLines(ctx, cmd.InOrStdin())
	fmt.Fprint(stderr, prompt)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(stderr)
			return nil
		case line, ok := <-lines:
			if !ok {
				// Input closed: let the last submission finish before leaving.
				if _, err := ctrl.Await(ctx); err != nil {
					slog.Debug("await interrupted", "error", err)
				}
				return nil
			}
			switch strings.ToLower(line) {
			case "quit", "exit":
				return nil
			case "":
				fmt.Fprint(stderr, prompt)
				continue
			}
			ctrl.Submit(line)
		}
	}
}

// readLines stops sending once ctx is done, so the reader goroutine never
// outlives the session.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// stateRenderer prints each controller transition.
type stateRenderer struct {
	out    io.Writer
	status io.Writer
	format string
}

func (r *stateRenderer) render(s controller.State) {
	switch s.Phase {
	case controller.InFlight:
		fmt.Fprintf(r.status, "%s Running agents on %s...\n", color.CyanString("⏳"), s.RepositoryID)
	case controller.Succeeded:
		if err := formatter.DisplayResults(r.out, s.Aggregate, r.format); err != nil {
			printError(r.status, fmt.Sprintf("Failed to render results: %v", err))
		}
		fmt.Fprint(r.status, prompt)
	case controller.Failed:
		if err := formatter.DisplayFailure(r.out, s.RepositoryID, s.Message, r.format); err != nil {
			printError(r.status, s.Message)
		}
		fmt.Fprint(r.status, prompt)
	}
}
