package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/helmcode/repoguardian/pkg/metrics"
)

const (
	DefaultBaseURL = "http://localhost:5000"
	DefaultPath    = "/analyze"
	DefaultTimeout = 5 * time.Minute

	maxBodyBytes    = 10 << 20
	maxErrorSnippet = 512
	tracerName      = "github.com/helmcode/repoguardian/pkg/service"
)

// Request is one analysis submission.
type Request struct {
	Repo      string
	RequestID string
}

type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient creates a client posting to baseURL+path.
func NewClient(baseURL, path string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if path == "" {
		path = DefaultPath
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: joinURL(baseURL, path),
		client:   &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP is used when the caller owns the transport.
func NewClientWithHTTP(endpoint string, httpClient *http.Client) *Client {
	return &Client{endpoint: endpoint, client: httpClient}
}

// Analyze posts the repository to the service and returns the raw response
// body. Failures are always *Error.
func (c *Client) Analyze(ctx context.Context, r Request) ([]byte, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "analysis.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("repository", r.Repo),
			attribute.String("request_id", r.RequestID),
		),
	)
	defer span.End()

	start := time.Now()
	body, err := c.do(ctx, r)
	metrics.ObserveRequest(outcomeLabel(err), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, r Request) ([]byte, error) {
	jsonBody, err := json.Marshal(map[string]string{"repo": r.Repo})
	if err != nil {
		return nil, Transport(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, Transport(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.RequestID != "" {
		req.Header.Set("X-Request-Id", r.RequestID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	slog.DebugContext(ctx, "posting analysis request", "endpoint", c.endpoint)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, Transport(err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, Transport(err)
		}
		return nil, Malformed(fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Body:       snippet(respBytes),
		}
	}
	if len(respBytes) > maxBodyBytes {
		return nil, Malformed(fmt.Errorf("response body exceeds %d bytes", maxBodyBytes))
	}

	slog.DebugContext(ctx, "analysis response received", "status", resp.StatusCode, "bytes", len(respBytes))
	return respBytes, nil
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func joinURL(baseURL, path string) string {
	if !strings.HasPrefix(baseURL, "http") {
		baseURL = "http://" + baseURL
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorSnippet {
		return s[:maxErrorSnippet] + "..."
	}
	return s
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}
