package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmcode/repoguardian/pkg/metrics"
	"github.com/helmcode/repoguardian/pkg/service"
)

type backendFunc func(ctx context.Context, r service.Request) ([]byte, error)

func (f backendFunc) Analyze(ctx context.Context, r service.Request) ([]byte, error) {
	return f(ctx, r)
}

func staticBackend(body string, err error) Backend {
	return backendFunc(func(context.Context, service.Request) ([]byte, error) {
		if err != nil {
			return nil, err
		}
		return []byte(body), nil
	})
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("req-%d", n)
	}
}

func await(t *testing.T, c *Controller) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := c.Await(ctx)
	require.NoError(t, err)
	return s
}

func TestController_StartsIdle(t *testing.T) {
	c := New(staticBackend(`{}`, nil))
	assert.Equal(t, Idle, c.State().Phase)
	assert.Equal(t, Idle, await(t, c).Phase)
}

func TestController_Success(t *testing.T) {
	c := New(staticBackend(`{"summary":"ok","issues":[],"prs":[{"problems":"leak"}]}`, nil), WithRequestIDs(sequentialIDs()))

	require.True(t, c.Submit("  octocat/hello  "))
	s := await(t, c)

	assert.Equal(t, Succeeded, s.Phase)
	assert.Equal(t, "octocat/hello", s.RepositoryID)
	assert.Equal(t, "req-1", s.RequestID)
	assert.Empty(t, s.Message)
	require.NotNil(t, s.Aggregate)
	assert.Equal(t, "ok", s.Aggregate.NarrativeSummary)
	require.Len(t, s.Aggregate.PullRequests, 1)
	assert.Equal(t, "leak", s.Aggregate.PullRequests[0].Body)
	assert.NoError(t, c.LastError())
}

func TestController_BlankSubmissionIsNoop(t *testing.T) {
	c := New(staticBackend(`{"summary":"ok"}`, nil))

	assert.False(t, c.Submit(""))
	assert.Equal(t, State{Phase: Idle}, c.State())

	require.True(t, c.Submit("octocat/hello"))
	before := await(t, c)

	assert.False(t, c.Submit(" \t\n"))
	assert.Equal(t, before, c.State())
}

func TestController_TransportFailureClearsPriorResult(t *testing.T) {
	fail := false
	var mu sync.Mutex
	c := New(backendFunc(func(context.Context, service.Request) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return nil, service.Transport(errors.New("dial tcp: connection refused"))
		}
		return []byte(`{"summary":"ok"}`), nil
	}))

	require.True(t, c.Submit("octocat/hello"))
	require.Equal(t, Succeeded, await(t, c).Phase)

	mu.Lock()
	fail = true
	mu.Unlock()

	require.True(t, c.Submit("octocat/hello"))
	s := await(t, c)

	assert.Equal(t, Failed, s.Phase)
	assert.Equal(t, GenericFailureMessage, s.Message)
	assert.Nil(t, s.Aggregate)
	assert.Equal(t, service.KindTransport, service.KindOf(c.LastError()))
	assert.NotContains(t, s.Message, "connection refused")
}

func TestController_FailureKinds(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantKind service.Kind
	}{
		{"status", "", &service.Error{Kind: service.KindStatus, StatusCode: 502}, service.KindStatus},
		{"unparseable body", "<html>oops</html>", nil, service.KindMalformed},
		{"bad collection", `{"prs":"none"}`, nil, service.KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(staticBackend(tt.body, tt.err))
			require.True(t, c.Submit("a/b"))
			s := await(t, c)

			assert.Equal(t, Failed, s.Phase)
			assert.Equal(t, GenericFailureMessage, s.Message)
			assert.Equal(t, tt.wantKind, service.KindOf(c.LastError()))
		})
	}
}

func TestController_InFlightClearsPreviousState(t *testing.T) {
	var states []State
	release := make(chan struct{})
	calls := 0
	c := New(backendFunc(func(ctx context.Context, r service.Request) ([]byte, error) {
		calls++
		if calls == 2 {
			<-release
		}
		return []byte(`{"summary":"` + r.Repo + `"}`), nil
	}), WithObserver(func(s State) { states = append(states, s) }))

	require.True(t, c.Submit("a/one"))
	require.Equal(t, Succeeded, await(t, c).Phase)

	require.True(t, c.Submit("a/two"))
	inFlight := c.State()
	assert.Equal(t, InFlight, inFlight.Phase)
	assert.Nil(t, inFlight.Aggregate)
	assert.Empty(t, inFlight.Message)

	close(release)
	s := await(t, c)
	assert.Equal(t, "a/two", s.Aggregate.NarrativeSummary)

	phases := make([]Phase, 0, len(states))
	for _, st := range states {
		phases = append(phases, st.Phase)
	}
	assert.Equal(t, []Phase{InFlight, Succeeded, InFlight, Succeeded}, phases)
}

func TestController_SlowObserverDoesNotBlockController(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var seen []string

	c := New(backendFunc(func(ctx context.Context, r service.Request) ([]byte, error) {
		<-release
		return []byte(`{"summary":"` + r.Repo + `"}`), nil
	}), WithObserver(func(s State) {
		seen = append(seen, s.RepositoryID+" "+s.Phase.String())
		if s.RepositoryID == "a/one" && s.Phase == Succeeded {
			close(entered)
			<-unblock
		}
	}))

	require.True(t, c.Submit("a/one"))
	close(release)
	<-entered

	assert.Equal(t, Succeeded, c.State().Phase)
	require.True(t, c.Submit("a/two"))
	assert.Equal(t, InFlight, c.State().Phase)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(unblock)
	s := await(t, c)
	assert.Equal(t, "a/two", s.Aggregate.NarrativeSummary)
	assert.Equal(t, []string{
		"a/one in-flight",
		"a/one succeeded",
		"a/two in-flight",
		"a/two succeeded",
	}, seen)
}

func TestController_CancelAndReplace(t *testing.T) {
	firstCtx := make(chan context.Context, 1)
	c := New(backendFunc(func(ctx context.Context, r service.Request) ([]byte, error) {
		if r.Repo == "a/slow" {
			firstCtx <- ctx
			<-ctx.Done()
			return nil, service.Transport(ctx.Err())
		}
		return []byte(`{"summary":"fast"}`), nil
	}))

	require.True(t, c.Submit("a/slow"))
	ctx := <-firstCtx

	require.True(t, c.Submit("a/fast"))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	s := await(t, c)
	assert.Equal(t, Succeeded, s.Phase)
	assert.Equal(t, "a/fast", s.RepositoryID)
	assert.Equal(t, uint64(2), s.Generation)
}

func TestController_StaleResponseIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	c := New(backendFunc(func(ctx context.Context, r service.Request) ([]byte, error) {
		if r.Repo == "a/old" {
			close(started)
			// Ignores cancellation, like a transport that does not honour it.
			<-release
			return []byte(`{"summary":"old"}`), nil
		}
		return nil, service.Transport(errors.New("timeout"))
	}))

	stale := metrics.Outcomes().WithLabelValues(metrics.OutcomeStale)
	staleBefore := testutil.ToFloat64(stale)

	require.True(t, c.Submit("a/old"))
	<-started
	require.True(t, c.Submit("a/new"))
	newer := await(t, c)
	require.Equal(t, Failed, newer.Phase)

	close(release)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(stale) >= staleBefore+1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, newer, c.State())
	assert.Equal(t, "a/new", c.State().RepositoryID)
}

func TestController_Close(t *testing.T) {
	called := make(chan context.Context, 1)
	c := New(backendFunc(func(ctx context.Context, r service.Request) ([]byte, error) {
		called <- ctx
		<-ctx.Done()
		return nil, service.Transport(ctx.Err())
	}))

	require.True(t, c.Submit("a/b"))
	ctx := <-called

	c.Close()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, c.Submit("a/c"))

	_, err := c.Await(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	c.Close()
}

func TestController_SessionContextCancels(t *testing.T) {
	session, cancel := context.WithCancel(context.Background())
	c := New(backendFunc(func(ctx context.Context, r service.Request) ([]byte, error) {
		<-ctx.Done()
		return nil, service.Transport(ctx.Err())
	}), WithContext(session))

	require.True(t, c.Submit("a/b"))
	cancel()

	s := await(t, c)
	assert.Equal(t, Failed, s.Phase)
	assert.ErrorIs(t, c.LastError(), context.Canceled)
}

func TestPhase(t *testing.T) {
	assert.Equal(t, "in-flight", InFlight.String())
	assert.True(t, Succeeded.Settled())
	assert.True(t, Failed.Settled())
	assert.False(t, InFlight.Settled())
	assert.False(t, Idle.Settled())
}
