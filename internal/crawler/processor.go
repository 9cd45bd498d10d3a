package crawler

import (
	"context"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/anastasiyaperk/Ycrawler/internal/domain"
	"github.com/anastasiyaperk/Ycrawler/internal/fetcher"
	"github.com/anastasiyaperk/Ycrawler/internal/monitoring"
)

// StoryAPI is the slice of the news API the processor needs.
type StoryAPI interface {
	Comment(ctx context.Context, id int) (*domain.Comment, error)
	ItemPageURL(id int) string
}

// PageFetcher downloads one page through the shared bounded pool.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) fetcher.Result
}

// PageStore persists story directories, page files and report rows.
type PageStore interface {
	CreateStoryDir(id int) (string, error)
	SavePage(dir, pageURL string, body []byte) (string, error)
	AppendReport(row domain.ReportRow) error
}

// Processor handles one story end to end: the story's own page, the pages
// linked from its first-level comments, and the report row. Link depth is
// exactly one; pages linked from comments are saved but never followed,
// and comments of comments are never visited.
type Processor struct {
	api     StoryAPI
	pool    PageFetcher
	store   PageStore
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func NewProcessor(api StoryAPI, pool PageFetcher, store PageStore, m *monitoring.Metrics, l *zap.Logger) *Processor {
	return &Processor{
		api:     api,
		pool:    pool,
		store:   store,
		metrics: m,
		logger:  l,
	}
}

// Process downloads everything belonging to story and appends its report
// row. Fetch failures are logged and skipped; the row is appended once the
// surviving fetches have finished. Only a missing story directory aborts.
func (p *Processor) Process(ctx context.Context, story *domain.Story) {
	logger := p.logger.With(zap.Int("story_id", story.ID))

	dir, err := p.store.CreateStoryDir(story.ID)
	if err != nil {
		logger.Error("story directory could not be created", zap.Error(err))
		p.metrics.IncStory("dir_failed")
		return
	}

	primary := story.URL
	if primary == "" {
		// Text posts have no outbound url, the discussion page stands in.
		primary = p.api.ItemPageURL(story.ID)
	}
	base, _ := url.Parse(p.api.ItemPageURL(story.ID))

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.fetchAndSave(ctx, logger, dir, primary)
	}()

	for _, commentID := range story.CommentIDs {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.processComment(ctx, logger, dir, base, id)
		}(commentID)
	}

	wg.Wait()

	if err := p.store.AppendReport(domain.ReportRow{ID: story.ID, Title: story.Title}); err != nil {
		logger.Error("report append failed", zap.Error(err))
	} else {
		p.metrics.IncReportRow()
	}
	p.metrics.IncStory("processed")
	logger.Info("story processed",
		zap.String("title", story.Title),
		zap.Int("comments", len(story.CommentIDs)))
}

// processComment fetches one comment's detail and downloads every page it
// links to. Comment failures cost only that comment's links.
func (p *Processor) processComment(ctx context.Context, logger *zap.Logger, dir string, base *url.URL, commentID int) {
	comment, err := p.api.Comment(ctx, commentID)
	if err != nil {
		logger.Warn("comment detail fetch failed", zap.Int("comment_id", commentID), zap.Error(err))
		return
	}

	links := ExtractLinks(comment.BodyHTML, base)
	if len(links) == 0 {
		return
	}
	logger.Debug("comment links found", zap.Int("comment_id", commentID), zap.Int("links", len(links)))

	var wg sync.WaitGroup
	for _, link := range links {
		wg.Add(1)
		go func(link string) {
			defer wg.Done()
			p.fetchAndSave(ctx, logger, dir, link)
		}(link)
	}
	wg.Wait()
}

func (p *Processor) fetchAndSave(ctx context.Context, logger *zap.Logger, dir, pageURL string) {
	res := p.pool.Fetch(ctx, pageURL)
	if !res.OK() {
		// Already logged at the pool boundary.
		return
	}
	if _, err := p.store.SavePage(dir, pageURL, res.Body); err != nil {
		logger.Error("page save failed", zap.String("url", pageURL), zap.Error(err))
	}
}
