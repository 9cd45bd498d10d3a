package crawler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anastasiyaperk/Ycrawler/internal/domain"
	"github.com/anastasiyaperk/Ycrawler/internal/monitoring"
)

// API is the slice of the news API the scheduler needs.
type API interface {
	TopStories(ctx context.Context, limit int) ([]int, error)
	Story(ctx context.Context, id int) (*domain.Story, error)
}

// StoryProcessor handles one dispatched story end to end.
type StoryProcessor interface {
	Process(ctx context.Context, story *domain.Story)
}

// Stats is a point-in-time snapshot of crawl progress.
type Stats struct {
	StartedAt        time.Time `json:"started_at"`
	CyclesRun        int       `json:"cycles_run"`
	StoriesProcessed int       `json:"stories_processed"`
	SeenStories      int       `json:"seen_stories"`
	LastCycleAt      time.Time `json:"last_cycle_at"`
}

// Crawler drives the poll loop: every period it asks the API for the top
// stories and dispatches the ones the seen registry has not recorded yet.
// Membership in the top list is all that matters, rank changes are not
// re-processed.
type Crawler struct {
	api     API
	proc    StoryProcessor
	seen    *SeenRegistry
	period  time.Duration
	limit   int
	metrics *monitoring.Metrics
	logger  *zap.Logger

	wg sync.WaitGroup

	mu    sync.Mutex
	stats Stats
}

func New(api API, proc StoryProcessor, seen *SeenRegistry, period time.Duration, limit int, m *monitoring.Metrics, l *zap.Logger) *Crawler {
	return &Crawler{
		api:     api,
		proc:    proc,
		seen:    seen,
		period:  period,
		limit:   limit,
		metrics: m,
		logger:  l,
	}
}

// Run polls until ctx is cancelled, then waits for in-flight stories to
// drain before returning. The first cycle starts immediately; each later
// cycle is anchored to the previous cycle's start, so a cycle that runs
// longer than the period begins the next one right away instead of
// compounding the delay.
func (c *Crawler) Run(ctx context.Context) error {
	c.mu.Lock()
	c.stats.StartedAt = time.Now()
	c.mu.Unlock()

	c.logger.Info("crawler started",
		zap.Duration("period", c.period),
		zap.Int("limit", c.limit))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("crawler stopping, draining in-flight stories")
			c.wg.Wait()
			c.logger.Info("crawler stopped")
			return ctx.Err()
		case <-timer.C:
		}

		started := time.Now()
		c.runCycle(ctx)

		sleep := c.period - time.Since(started)
		if sleep < 0 {
			sleep = 0
		}
		timer.Reset(sleep)
	}
}

// runCycle fetches the current top list and dispatches unseen stories. A
// failed top-list call costs only this cycle.
func (c *Crawler) runCycle(ctx context.Context) {
	started := time.Now()
	c.metrics.IncCycle()
	c.mu.Lock()
	c.stats.CyclesRun++
	c.stats.LastCycleAt = started
	c.mu.Unlock()

	ids, err := c.api.TopStories(ctx, c.limit)
	if err != nil {
		c.logger.Error("top stories fetch failed, skipping cycle", zap.Error(err))
		return
	}

	fresh := 0
	for _, id := range ids {
		if !c.seen.Add(id) {
			continue
		}
		fresh++
		c.wg.Add(1)
		go c.dispatch(ctx, id)
	}

	c.metrics.SetSeenStories(c.seen.Len())
	c.metrics.ObserveCycle(time.Since(started))
	c.logger.Info("cycle dispatched", zap.Int("top", len(ids)), zap.Int("new", fresh))
}

// dispatch fetches one story's detail and hands it to the processor. A
// failed detail call costs only this story; its id stays seen until the
// process restarts.
func (c *Crawler) dispatch(ctx context.Context, id int) {
	defer c.wg.Done()

	story, err := c.api.Story(ctx, id)
	if err != nil {
		c.logger.Warn("story detail fetch failed", zap.Int("story_id", id), zap.Error(err))
		c.metrics.IncStory("detail_failed")
		return
	}

	c.proc.Process(ctx, story)

	c.mu.Lock()
	c.stats.StoriesProcessed++
	c.mu.Unlock()
}

// Stats returns a snapshot for the ops endpoints.
func (c *Crawler) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.SeenStories = c.seen.Len()
	return s
}
