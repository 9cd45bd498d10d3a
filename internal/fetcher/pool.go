package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/anastasiyaperk/Ycrawler/internal/monitoring"
)

// maxBodyBytes caps how much of a response body is kept.
const maxBodyBytes = 10 * 1024 * 1024

// Result is the outcome of a single page download. Failures travel in Err
// rather than as a return value, so one bad link never aborts its siblings.
type Result struct {
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

// OK reports whether the download produced a usable body.
func (r Result) OK() bool { return r.Err == nil }

// Pool downloads pages with a hard cap on concurrent requests. Callers past
// the cap suspend in Fetch until a slot frees up; there is no queue and no
// retry.
type Pool struct {
	client    *http.Client
	sem       *semaphore.Weighted
	timeout   time.Duration
	userAgent string
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

func NewPool(client *http.Client, limit int, timeout time.Duration, userAgent string, m *monitoring.Metrics, l *zap.Logger) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{
		client:    client,
		sem:       semaphore.NewWeighted(int64(limit)),
		timeout:   timeout,
		userAgent: userAgent,
		metrics:   m,
		logger:    l,
	}
}

// Fetch downloads rawURL through the pool. ctx gates admission only: once a
// request is in flight it runs to its own per-request timeout, so shutdown
// latency is bounded by that timeout rather than by abandoned transfers.
func (p *Pool) Fetch(ctx context.Context, rawURL string) Result {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return Result{URL: rawURL, Err: fmt.Errorf("acquire fetch slot: %w", err)}
	}
	defer p.sem.Release(1)

	p.metrics.FetchesInflight.Inc()
	defer p.metrics.FetchesInflight.Dec()

	start := time.Now()
	res := p.download(ctx, rawURL)
	p.metrics.ObserveFetch(time.Since(start), res.OK())

	if res.Err != nil {
		p.logger.Warn("page fetch failed", zap.String("url", rawURL), zap.Error(res.Err))
	} else {
		p.logger.Debug("page fetched",
			zap.String("url", rawURL),
			zap.Int("status", res.StatusCode),
			zap.Int("bytes", len(res.Body)))
	}
	return res
}

func (p *Pool) download(ctx context.Context, rawURL string) Result {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{URL: rawURL, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{URL: rawURL, Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Result{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return Result{URL: rawURL, StatusCode: resp.StatusCode, Body: body}
}
