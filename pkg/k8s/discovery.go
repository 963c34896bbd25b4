package k8s

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const serviceAccountToken = "/var/run/secrets/kubernetes.io/serviceaccount/token"

// AutoDetect as a service reference searches the well-known names below.
const AutoDetect = "auto"

var (
	servicePatterns = []string{
		"repoguardian",
		"repo-guardian",
		"repoguardian-api",
		"analysis-service",
	}
	serviceNamespaces = []string{
		"repoguardian",
		"repo-guardian",
		"tools",
		"default",
	}
)

// ServiceRef identifies the analysis service inside the cluster.
type ServiceRef struct {
	Namespace string
	Name      string
	Port      int
}

func (r ServiceRef) String() string {
	return fmt.Sprintf("%s/%s:%d", r.Namespace, r.Name, r.Port)
}

// ClusterURL is the in-cluster DNS address of the service.
func (r ServiceRef) ClusterURL() string {
	return fmt.Sprintf("http://%s.%s.svc.cluster.local:%d", r.Name, r.Namespace, r.Port)
}

// FindService resolves ref ("namespace/name", "name" or AutoDetect).
func (c *Client) FindService(ctx context.Context, ref string) (ServiceRef, error) {
	namespaces := serviceNamespaces
	names := servicePatterns

	if ref != "" && ref != AutoDetect {
		if ns, name, ok := strings.Cut(ref, "/"); ok {
			namespaces = []string{ns}
			names = []string{name}
		} else {
			names = []string{ref}
		}
	}

	for _, ns := range namespaces {
		for _, name := range names {
			svc, err := c.clientset.CoreV1().Services(ns).Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				if apierrors.IsNotFound(err) {
					continue
				}
				return ServiceRef{}, fmt.Errorf("failed to get service %s/%s: %w", ns, name, err)
			}
			return ServiceRef{Namespace: ns, Name: svc.Name, Port: servicePort(svc)}, nil
		}
	}

	return ServiceRef{}, fmt.Errorf("could not find analysis service %v in any of the following namespaces: %v", names, namespaces)
}

// servicePort prefers a port named "http", then the first declared port.
func servicePort(svc *corev1.Service) int {
	for _, p := range svc.Spec.Ports {
		if p.Name == "http" {
			return int(p.Port)
		}
	}
	if len(svc.Spec.Ports) > 0 {
		return int(svc.Spec.Ports[0].Port)
	}
	return 80
}

// Endpoint is a reachable base URL for the analysis service. Close stops any
// port-forward started to provide it.
type Endpoint struct {
	URL     string
	Service ServiceRef

	portForward *exec.Cmd
}

func (e *Endpoint) Close() error {
	if e == nil || e.portForward == nil || e.portForward.Process == nil {
		return nil
	}
	return e.portForward.Process.Kill()
}

func (e *Endpoint) PortForwarded() bool {
	return e != nil && e.portForward != nil
}

// Resolver turns a service reference into an Endpoint.
type Resolver struct {
	Client     *Client
	Kubeconfig string
	Context    string
	LocalPort  int

	// Overridable for tests.
	InCluster   func() bool
	PortForward func(ref ServiceRef, localPort int, kubeconfig, kubeContext string) (*exec.Cmd, error)
	Settle      time.Duration
}

// Resolve finds the service and returns its cluster DNS URL when running
// in-cluster, or a localhost URL backed by kubectl port-forward otherwise.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Endpoint, error) {
	svc, err := r.Client.FindService(ctx, ref)
	if err != nil {
		return nil, err
	}

	inCluster := r.InCluster
	if inCluster == nil {
		inCluster = isRunningInCluster
	}
	if inCluster() {
		slog.DebugContext(ctx, "using in-cluster service address", "service", svc.String())
		return &Endpoint{URL: svc.ClusterURL(), Service: svc}, nil
	}

	forward := r.PortForward
	if forward == nil {
		forward = setupPortForward
	}
	cmd, err := forward(svc, r.LocalPort, r.Kubeconfig, r.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to setup port-forward: %w", err)
	}

	// kubectl needs a moment before the local port accepts connections.
	settle := r.Settle
	if settle == 0 {
		settle = 2 * time.Second
	}
	select {
	case <-time.After(settle):
	case <-ctx.Done():
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return nil, ctx.Err()
	}

	slog.DebugContext(ctx, "port-forward active", "service", svc.String(), "local_port", r.LocalPort)
	return &Endpoint{
		URL:         fmt.Sprintf("http://localhost:%d", r.LocalPort),
		Service:     svc,
		portForward: cmd,
	}, nil
}

func isRunningInCluster() bool {
	_, err := os.Stat(serviceAccountToken)
	return err == nil
}

func setupPortForward(ref ServiceRef, localPort int, kubeconfig, kubeContext string) (*exec.Cmd, error) {
	args := []string{
		"port-forward",
		fmt.Sprintf("service/%s", ref.Name),
		fmt.Sprintf("%d:%d", localPort, ref.Port),
		"-n", ref.Namespace,
	}
	if kubeconfig != "" {
		args = append(args, "--kubeconfig", expandHome(kubeconfig))
	}
	if kubeContext != "" {
		args = append(args, "--context", kubeContext)
	}

	cmd := exec.Command("kubectl", args...)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start port-forward: %w", err)
	}
	return cmd, nil
}
