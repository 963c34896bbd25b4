package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/helmcode/repoguardian/pkg/config"
	"github.com/helmcode/repoguardian/pkg/logger"
	"github.com/helmcode/repoguardian/pkg/service"
	"github.com/helmcode/repoguardian/pkg/telemetry"
)

// ErrAnalysisFailed is returned after the failure message has already been
// shown; main exits non-zero without printing it again.
var ErrAnalysisFailed = errors.New("analysis failed")

// sessionOptions are the flags shared by every command that talks to the
// analysis service.
type sessionOptions struct {
	configPath   string
	url          string
	path         string
	timeout      time.Duration
	k8sService   string
	kubeconfig   string
	kubeContext  string
	localPort    int
	outputFormat string
	verbose      bool
	logFile      string
}

func addSessionFlags(cmd *cobra.Command, o *sessionOptions) {
	cmd.Flags().StringVar(&o.configPath, "config", "", "Path to config file (default $XDG_CONFIG_HOME/repoguardian/config.yaml)")
	cmd.Flags().StringVar(&o.url, "url", "", "Analysis service base URL (default http://localhost:5000)")
	cmd.Flags().StringVar(&o.path, "path", "", "Analysis endpoint path (default /analyze)")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "Timeout for one analysis request (default 5m)")
	cmd.Flags().StringVar(&o.k8sService, "k8s-service", "", "Locate the service in Kubernetes: namespace/name, name, or \"auto\"")
	cmd.Flags().StringVar(&o.kubeconfig, "kubeconfig", "", "Path to kubeconfig file")
	cmd.Flags().StringVar(&o.kubeContext, "context", "", "Kubeconfig context (overrides current-context)")
	cmd.Flags().IntVar(&o.localPort, "local-port", 0, "Local port for kubectl port-forward (default 15000)")
	cmd.Flags().StringVarP(&o.outputFormat, "output", "o", "", "Output format (human, json, yaml)")
	cmd.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "Verbose output")
	cmd.Flags().StringVar(&o.logFile, "log-file", "", "Write diagnostic logs to this file instead of stderr")
}

// loadConfig layers flags that were explicitly set over config.Load.
func (o *sessionOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Service.URL = o.url
	}
	if flags.Changed("path") {
		cfg.Service.Path = o.path
	}
	if flags.Changed("timeout") {
		cfg.Service.Timeout = o.timeout
	}
	if flags.Changed("k8s-service") {
		cfg.Kubernetes.Service = o.k8sService
	}
	if flags.Changed("kubeconfig") {
		cfg.Kubernetes.Kubeconfig = o.kubeconfig
	}
	if flags.Changed("context") {
		cfg.Kubernetes.Context = o.kubeContext
	}
	if flags.Changed("local-port") {
		cfg.Kubernetes.LocalPort = o.localPort
	}
	if flags.Changed("output") {
		cfg.Output = o.outputFormat
	}
	if flags.Changed("log-file") {
		cfg.Log.File = o.logFile
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// session holds what a command needs to reach the analysis service.
type session struct {
	cfg    config.Config
	client *service.Client

	closers []io.Closer
	tel     *telemetry.Telemetry
}

func openSession(ctx context.Context, cmd *cobra.Command, o *sessionOptions) (*session, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logCloser, err := logger.Setup(cfg.Log, o.verbose)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, closers: []io.Closer{logCloser}}

	s.tel, err = telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	client, endpointCloser, err := service.NewFactory().Create(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.client = client
	s.closers = append(s.closers, endpointCloser)

	slog.DebugContext(ctx, "session ready", "endpoint", client.Endpoint(), "timeout", cfg.Service.Timeout)
	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tel.Shutdown(ctx); err != nil {
		slog.Warn("telemetry shutdown failed", "error", err)
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i].Close()
	}
}
