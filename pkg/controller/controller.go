package controller

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/helmcode/repoguardian/pkg/analyzer"
	"github.com/helmcode/repoguardian/pkg/logger"
	"github.com/helmcode/repoguardian/pkg/metrics"
	"github.com/helmcode/repoguardian/pkg/model"
	"github.com/helmcode/repoguardian/pkg/service"
)

var ErrClosed = errors.New("controller closed")

// Backend performs the outbound analysis call and returns the raw body.
type Backend interface {
	Analyze(ctx context.Context, r service.Request) ([]byte, error)
}

type Option func(*Controller)

// WithObserver registers fn for every state transition. Observers are called
// outside the Controller's lock, one at a time and in transition order; Await
// returns only after they have seen the settled state.
func WithObserver(fn func(State)) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, fn)
	}
}

// WithContext sets the session context; cancelling it cancels any call.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) {
		c.base = ctx
	}
}

func WithRequestIDs(fn func() string) Option {
	return func(c *Controller) {
		c.newRequestID = fn
	}
}

// Controller owns the request state for one session. At most one analysis
// is outstanding: a new submission cancels the previous call, and a result
// from any submission but the latest is discarded.
type Controller struct {
	backend      Backend
	base         context.Context
	newRequestID func() string
	observers    []func(State)

	mu      sync.Mutex
	state   State
	gen     uint64
	cancel  context.CancelFunc
	pending bool
	done    chan struct{}
	lastErr error
	closed  bool

	// Transitions waiting for observers. seq counts queued transitions and
	// delivered those handed to every observer.
	queue       []State
	seq         uint64
	delivered   uint64
	delivering  bool
	deliveredCh chan struct{}
}

func New(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:      backend,
		base:         context.Background(),
		newRequestID: uuid.NewString,
		state:        State{Phase: Idle},
		done:         make(chan struct{}),
		deliveredCh:  make(chan struct{}),
	}
	close(c.done)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the technical cause of the latest failure, for
// diagnostics only.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Submit starts an analysis of repositoryID. A blank identifier is rejected
// without any transition and Submit returns false.
func (c *Controller) Submit(repositoryID string) bool {
	id := strings.TrimSpace(repositoryID)
	if id == "" {
		metrics.RecordRejected()
		slog.Debug("submission rejected: empty repository identifier")
		return false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		slog.Debug("submission rejected: controller closed", "repository", id)
		return false
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.finishPending()

	c.gen++
	gen := c.gen
	requestID := c.newRequestID()

	ctx, cancel := context.WithCancel(c.base)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RequestID:  requestID,
		Repository: id,
		Component:  "repoguardian.controller",
	})
	c.cancel = cancel
	c.pending = true
	c.done = make(chan struct{})
	c.lastErr = nil
	c.transition(State{
		Phase:        InFlight,
		RepositoryID: id,
		RequestID:    requestID,
		Generation:   gen,
	})
	c.mu.Unlock()
	c.notify()

	metrics.RecordSubmission()
	slog.DebugContext(ctx, "analysis submitted", "generation", gen)

	go c.run(ctx, cancel, gen, service.Request{Repo: id, RequestID: requestID})
	return true
}

// Await blocks until the latest submission settles and observers have been
// notified, then returns the state. With nothing in flight it returns
// immediately.
func (c *Controller) Await(ctx context.Context) (State, error) {
	for {
		c.mu.Lock()
		if c.closed {
			s := c.state
			c.mu.Unlock()
			return s, ErrClosed
		}
		var wait <-chan struct{}
		switch {
		case c.pending:
			wait = c.done
		case c.delivered != c.seq:
			wait = c.deliveredCh
		default:
			s := c.state
			c.mu.Unlock()
			return s, nil
		}
		c.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return c.State(), ctx.Err()
		}
	}
}

// Close cancels any outstanding call. Its result is discarded and later
// submissions are rejected.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.finishPending()
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, gen uint64, req service.Request) {
	defer cancel()
	agg, err := c.analyze(ctx, req)
	c.settle(ctx, gen, agg, err)
}

func (c *Controller) analyze(ctx context.Context, req service.Request) (*model.Aggregate, error) {
	body, err := c.backend.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	return analyzer.Build(req.Repo, body)
}

func (c *Controller) settle(ctx context.Context, gen uint64, agg *model.Aggregate, err error) {
	c.mu.Lock()
	if gen != c.gen {
		latest := c.gen
		c.mu.Unlock()
		metrics.RecordOutcome(metrics.OutcomeStale)
		slog.DebugContext(ctx, "discarding stale analysis response", "generation", gen, "latest", latest, "error", err)
		return
	}

	next := State{
		RepositoryID: c.state.RepositoryID,
		RequestID:    c.state.RequestID,
		Generation:   gen,
	}
	if err != nil {
		next.Phase = Failed
		next.Message = GenericFailureMessage
		c.lastErr = err
		metrics.RecordOutcome(metrics.OutcomeFailed)
		slog.WarnContext(ctx, "analysis failed", "kind", service.KindOf(err).String(), "error", err)
	} else {
		next.Phase = Succeeded
		next.Aggregate = agg
		metrics.RecordOutcome(metrics.OutcomeSucceeded)
		slog.InfoContext(ctx, "analysis complete", "issues", len(agg.Issues), "prs", len(agg.PullRequests))
	}

	c.cancel = nil
	c.finishPending()
	c.transition(next)
	c.mu.Unlock()
	c.notify()
}

// finishPending releases Await callers of the current generation. Caller
// holds c.mu.
func (c *Controller) finishPending() {
	if c.pending {
		c.pending = false
		close(c.done)
	}
}

// transition replaces the state and queues it for observers. Caller holds
// c.mu and calls notify after releasing it.
func (c *Controller) transition(next State) {
	c.state = next
	if len(c.observers) == 0 {
		return
	}
	c.queue = append(c.queue, next)
	c.seq++
}

// notify delivers queued transitions. Only one goroutine delivers at a time;
// others return at once and leave their entries to it, which keeps order.
func (c *Controller) notify() {
	c.mu.Lock()
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true
	for len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		for _, fn := range c.observers {
			fn(next)
		}

		c.mu.Lock()
		c.delivered++
	}
	c.delivering = false
	close(c.deliveredCh)
	c.deliveredCh = make(chan struct{})
	c.mu.Unlock()
}
