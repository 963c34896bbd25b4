package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/helmcode/repoguardian/pkg/controller"
	"github.com/helmcode/repoguardian/pkg/formatter"
)

func NewAnalyzeCmd() *cobra.Command {
	opts := &sessionOptions{}

	cmd := &cobra.Command{
		Use:   "analyze OWNER/NAME",
		Short: "Analyze a repository's open pull requests and issues",
		Long: `Submit a public GitHub repository to the analysis service and show the
risk summary of its open pull requests and the triage of its open issues.

Examples:
  # Analyze a repository with a local service
  repoguardian analyze octocat/hello-world

  # Point at a remote service and emit JSON
  repoguardian analyze octocat/hello-world --url https://guardian.example.com -o json

  # Find the service in a Kubernetes cluster
  repoguardian analyze octocat/hello-world --k8s-service tools/repoguardian`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, args[0])
		},
	}

	addSessionFlags(cmd, opts)
	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *sessionOptions, repo string) error {
	repo = strings.TrimSpace(repo)
	if repo == "" {
		return fmt.Errorf("repository identifier is required (owner/name)")
	}

	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()
	stdout := cmd.OutOrStdout()

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(stderr))
	s.Suffix = " Connecting to analysis service..."
	s.Start()

	sess, err := openSession(ctx, cmd, opts)
	s.Stop()
	if err != nil {
		return err
	}
	defer sess.Close()

	if sess.cfg.Output == "human" {
		printHeader(stderr, "🛡️  RepoGuardian", sess.cfg, repo)
	}
	printSuccess(stderr, fmt.Sprintf("Using %s", sess.client.Endpoint()))

	ctrl := controller.New(sess.client, controller.WithContext(ctx))
	defer ctrl.Close()

	s.Suffix = fmt.Sprintf(" Running agents on %s...", repo)
	s.Start()

	ctrl.Submit(repo)
	state, err := ctrl.Await(ctx)
	s.Stop()
	if err != nil {
		return fmt.Errorf("analysis interrupted: %w", err)
	}

	switch state.Phase {
	case controller.Succeeded:
		printSuccess(stderr, "Analysis complete")
		return formatter.DisplayResults(stdout, state.Aggregate, sess.cfg.Output)
	default:
		if err := formatter.DisplayFailure(stdout, repo, state.Message, sess.cfg.Output); err != nil {
			return err
		}
		return ErrAnalysisFailed
	}
}
