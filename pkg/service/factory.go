package service

import (
	"context"
	"fmt"
	"io"

	"github.com/helmcode/repoguardian/pkg/config"
	"github.com/helmcode/repoguardian/pkg/k8s"
)

// Resolver locates the service inside a cluster.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (*k8s.Endpoint, error)
}

// Factory creates clients from configuration.
type Factory struct {
	// NewResolver builds the cluster resolver; nil uses kubeconfig/in-cluster.
	NewResolver func(cfg config.KubernetesConfig) (Resolver, error)
}

// NewFactory creates a new client factory
func NewFactory() *Factory {
	return &Factory{NewResolver: defaultResolver}
}

// Create returns a client for cfg. The closer releases anything discovery
// set up (a port-forward) and must be called when the session ends.
func (f *Factory) Create(ctx context.Context, cfg config.Config) (*Client, io.Closer, error) {
	if !cfg.DiscoveryEnabled() {
		return NewClient(cfg.Service.URL, cfg.Service.Path, cfg.Service.Timeout), nopCloser{}, nil
	}

	newResolver := f.NewResolver
	if newResolver == nil {
		newResolver = defaultResolver
	}
	resolver, err := newResolver(cfg.Kubernetes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	ep, err := resolver.Resolve(ctx, cfg.Kubernetes.Service)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to locate analysis service: %w", err)
	}
	return NewClient(ep.URL, cfg.Service.Path, cfg.Service.Timeout), ep, nil
}

func defaultResolver(cfg config.KubernetesConfig) (Resolver, error) {
	client, err := k8s.NewClient(cfg.Kubeconfig, cfg.Context)
	if err != nil {
		return nil, err
	}
	return &k8s.Resolver{
		Client:     client,
		Kubeconfig: cfg.Kubeconfig,
		Context:    cfg.Context,
		LocalPort:  cfg.LocalPort,
	}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
