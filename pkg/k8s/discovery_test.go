package k8s

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func service(ns, name string, ports ...corev1.ServicePort) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: name},
		Spec:       corev1.ServiceSpec{Ports: ports},
	}
}

func TestFindService(t *testing.T) {
	cs := fake.NewSimpleClientset(
		service("tools", "repo-guardian", corev1.ServicePort{Name: "metrics", Port: 9090}, corev1.ServicePort{Name: "http", Port: 5000}),
		service("apps", "analyzer", corev1.ServicePort{Port: 8080}),
		service("apps", "bare"),
	)
	c := NewClientFromClientset(cs)
	ctx := context.Background()

	got, err := c.FindService(ctx, AutoDetect)
	require.NoError(t, err)
	assert.Equal(t, ServiceRef{Namespace: "tools", Name: "repo-guardian", Port: 5000}, got)

	got, err = c.FindService(ctx, "apps/analyzer")
	require.NoError(t, err)
	assert.Equal(t, 8080, got.Port)

	got, err = c.FindService(ctx, "apps/bare")
	require.NoError(t, err)
	assert.Equal(t, 80, got.Port)

	_, err = c.FindService(ctx, "apps/missing")
	assert.Error(t, err)
}

func TestResolve_InCluster(t *testing.T) {
	r := &Resolver{
		Client:    NewClientFromClientset(fake.NewSimpleClientset(service("default", "repoguardian", corev1.ServicePort{Port: 5000}))),
		InCluster: func() bool { return true },
		PortForward: func(ServiceRef, int, string, string) (*exec.Cmd, error) {
			t.Fatal("port-forward must not start in-cluster")
			return nil, nil
		},
	}

	ep, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "http://repoguardian.default.svc.cluster.local:5000", ep.URL)
	assert.False(t, ep.PortForwarded())
	assert.NoError(t, ep.Close())
}

func TestResolve_PortForward(t *testing.T) {
	var gotRef ServiceRef
	var gotPort int
	r := &Resolver{
		Client:    NewClientFromClientset(fake.NewSimpleClientset(service("tools", "repoguardian", corev1.ServicePort{Port: 5000}))),
		LocalPort: 15000,
		Settle:    time.Millisecond,
		InCluster: func() bool { return false },
		PortForward: func(ref ServiceRef, localPort int, _, _ string) (*exec.Cmd, error) {
			gotRef, gotPort = ref, localPort
			return nil, nil
		},
	}

	ep, err := r.Resolve(context.Background(), "tools/repoguardian")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:15000", ep.URL)
	assert.Equal(t, "tools/repoguardian:5000", gotRef.String())
	assert.Equal(t, 15000, gotPort)
}

func TestResolve_PortForwardFails(t *testing.T) {
	r := &Resolver{
		Client:    NewClientFromClientset(fake.NewSimpleClientset(service("tools", "repoguardian", corev1.ServicePort{Port: 5000}))),
		InCluster: func() bool { return false },
		PortForward: func(ServiceRef, int, string, string) (*exec.Cmd, error) {
			return nil, errors.New("kubectl not found")
		},
	}

	_, err := r.Resolve(context.Background(), "tools/repoguardian")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kubectl not found")
}
