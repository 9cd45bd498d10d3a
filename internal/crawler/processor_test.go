package crawler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anastasiyaperk/Ycrawler/internal/crawler"
	"github.com/anastasiyaperk/Ycrawler/internal/domain"
	"github.com/anastasiyaperk/Ycrawler/internal/fetcher"
	"github.com/anastasiyaperk/Ycrawler/internal/hn"
	"github.com/anastasiyaperk/Ycrawler/internal/monitoring"
	"github.com/anastasiyaperk/Ycrawler/internal/storage"
)

// pageServer serves canned pages and records every URI it was asked for.
type pageServer struct {
	*httptest.Server
	pages   map[string]string
	failing map[string]int

	mu   sync.Mutex
	hits []string
}

func newPageServer(t *testing.T, pages map[string]string, failing map[string]int) *pageServer {
	t.Helper()
	ps := &pageServer{pages: pages, failing: failing}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uri := r.URL.RequestURI()
		ps.mu.Lock()
		ps.hits = append(ps.hits, uri)
		ps.mu.Unlock()

		if code, ok := ps.failing[uri]; ok {
			w.WriteHeader(code)
			return
		}
		body, ok := ps.pages[uri]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ps.Close)
	return ps
}

func (ps *pageServer) requested(uri string) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, h := range ps.hits {
		if h == uri {
			return true
		}
	}
	return false
}

func (ps *pageServer) hitCount() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.hits)
}

// stubStoryAPI serves comment details from memory; the discussion pages it
// names live on the test page server.
type stubStoryAPI struct {
	webBase  string
	comments map[int]*domain.Comment
	errs     map[int]error
}

func (a *stubStoryAPI) Comment(ctx context.Context, id int) (*domain.Comment, error) {
	if err, ok := a.errs[id]; ok {
		return nil, err
	}
	c, ok := a.comments[id]
	if !ok {
		return nil, hn.ErrNotFound
	}
	return c, nil
}

func (a *stubStoryAPI) ItemPageURL(id int) string {
	return fmt.Sprintf("%s/item?id=%d", a.webBase, id)
}

func newTestProcessor(t *testing.T, api crawler.StoryAPI) (*crawler.Processor, *storage.Store) {
	t.Helper()
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	logger := zap.NewNop()
	pool := fetcher.NewPool(http.DefaultClient, 3, 2*time.Second, "ycrawler-test", m, logger)
	store, err := storage.NewStore(t.TempDir(), logger)
	require.NoError(t, err)
	return crawler.NewProcessor(api, pool, store, m, logger), store
}

func storyFiles(t *testing.T, store *storage.Store, id int) []string {
	t.Helper()
	entries, err := os.ReadDir(store.StoryDir(id))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestProcessSavesPrimaryAndCommentLinks(t *testing.T) {
	t.Parallel()

	ps := newPageServer(t, map[string]string{
		"/article": "<html>the article</html>",
		"/linked1": "first linked page",
		"/linked2": "second linked page",
	}, nil)

	api := &stubStoryAPI{
		webBase: ps.URL,
		comments: map[int]*domain.Comment{
			1: {ID: 1, BodyHTML: fmt.Sprintf(`try <a href="%s/linked1">this</a>`, ps.URL)},
			2: {ID: 2, BodyHTML: fmt.Sprintf(`or <a href="%s/linked2">that</a>`, ps.URL)},
		},
	}
	proc, store := newTestProcessor(t, api)

	proc.Process(context.Background(), &domain.Story{
		ID:         101,
		Title:      "A story",
		URL:        ps.URL + "/article",
		CommentIDs: []int{1, 2},
	})

	require.Len(t, storyFiles(t, store, 101), 3, "primary page plus two comment links")

	ids, err := store.ProcessedIDs()
	require.NoError(t, err)
	require.Equal(t, []int{101}, ids, "exactly one report row")
}

func TestProcessTextPostFallsBackToDiscussionPage(t *testing.T) {
	t.Parallel()

	ps := newPageServer(t, map[string]string{
		"/item?id=104": "<html>the discussion</html>",
	}, nil)

	api := &stubStoryAPI{webBase: ps.URL}
	proc, store := newTestProcessor(t, api)

	proc.Process(context.Background(), &domain.Story{ID: 104, Title: "Ask HN: something"})

	require.True(t, ps.requested("/item?id=104"), "discussion page stands in for the missing url")
	require.Len(t, storyFiles(t, store, 104), 1)

	ids, err := store.ProcessedIDs()
	require.NoError(t, err)
	require.Equal(t, []int{104}, ids)
}

func TestProcessPrimaryFailureStillReports(t *testing.T) {
	t.Parallel()

	ps := newPageServer(t, map[string]string{
		"/linked1": "still fine",
	}, map[string]int{
		"/article": http.StatusInternalServerError,
	})

	api := &stubStoryAPI{
		webBase: ps.URL,
		comments: map[int]*domain.Comment{
			1: {ID: 1, BodyHTML: fmt.Sprintf(`<a href="%s/linked1">x</a>`, ps.URL)},
		},
	}
	proc, store := newTestProcessor(t, api)

	proc.Process(context.Background(), &domain.Story{
		ID:         101,
		Title:      "resilient",
		URL:        ps.URL + "/article",
		CommentIDs: []int{1},
	})

	require.True(t, ps.requested("/article"), "the primary page is attempted")
	require.Len(t, storyFiles(t, store, 101), 1, "only the comment link made it to disk")

	ids, err := store.ProcessedIDs()
	require.NoError(t, err)
	require.Equal(t, []int{101}, ids, "the report row is written regardless")
}

func TestProcessCommentLinkFailureLeavesFileAbsent(t *testing.T) {
	t.Parallel()

	ps := newPageServer(t, map[string]string{
		"/article": "primary",
	}, map[string]int{
		"/broken": http.StatusInternalServerError,
	})

	api := &stubStoryAPI{
		webBase: ps.URL,
		comments: map[int]*domain.Comment{
			1: {ID: 1, BodyHTML: fmt.Sprintf(`<a href="%s/broken">bad</a>`, ps.URL)},
		},
	}
	proc, store := newTestProcessor(t, api)

	proc.Process(context.Background(), &domain.Story{
		ID:         104,
		Title:      "partly broken",
		URL:        ps.URL + "/article",
		CommentIDs: []int{1},
	})

	require.True(t, ps.requested("/broken"), "the failing link is attempted")
	require.Len(t, storyFiles(t, store, 104), 1, "only the primary page made it to disk")

	ids, err := store.ProcessedIDs()
	require.NoError(t, err)
	require.Equal(t, []int{104}, ids, "the report row is written regardless")
}

func TestProcessNeverFollowsLinksInFetchedPages(t *testing.T) {
	t.Parallel()

	ps := newPageServer(t, map[string]string{
		"/article": `<html><a href="/never1">deeper</a></html>`,
		"/linked1": `<html><a href="/never2">deeper still</a></html>`,
	}, nil)

	api := &stubStoryAPI{
		webBase: ps.URL,
		comments: map[int]*domain.Comment{
			1: {ID: 1, BodyHTML: fmt.Sprintf(`<a href="%s/linked1">x</a>`, ps.URL)},
		},
	}
	proc, _ := newTestProcessor(t, api)

	proc.Process(context.Background(), &domain.Story{
		ID:         7,
		Title:      "depth one",
		URL:        ps.URL + "/article",
		CommentIDs: []int{1},
	})

	require.False(t, ps.requested("/never1"))
	require.False(t, ps.requested("/never2"))
	require.Equal(t, 2, ps.hitCount(), "exactly the primary page and the comment link")
}

func TestProcessCommentDetailFailureSkipsOnlyThatComment(t *testing.T) {
	t.Parallel()

	ps := newPageServer(t, map[string]string{
		"/article": "primary",
		"/linked2": "from the healthy comment",
	}, nil)

	api := &stubStoryAPI{
		webBase: ps.URL,
		comments: map[int]*domain.Comment{
			2: {ID: 2, BodyHTML: fmt.Sprintf(`<a href="%s/linked2">x</a>`, ps.URL)},
		},
		errs: map[int]error{
			1: hn.ErrTransport,
		},
	}
	proc, store := newTestProcessor(t, api)

	proc.Process(context.Background(), &domain.Story{
		ID:         9,
		Title:      "one bad comment",
		URL:        ps.URL + "/article",
		CommentIDs: []int{1, 2},
	})

	require.Len(t, storyFiles(t, store, 9), 2)

	ids, err := store.ProcessedIDs()
	require.NoError(t, err)
	require.Equal(t, []int{9}, ids)
}

func TestProcessResolvesRelativeCommentLinks(t *testing.T) {
	t.Parallel()

	ps := newPageServer(t, map[string]string{
		"/item?id=3": "discussion",
		"/relative":  "resolved against the discussion host",
	}, nil)

	api := &stubStoryAPI{
		webBase: ps.URL,
		comments: map[int]*domain.Comment{
			1: {ID: 1, BodyHTML: `<a href="/relative">here</a>`},
		},
	}
	proc, store := newTestProcessor(t, api)

	proc.Process(context.Background(), &domain.Story{ID: 3, Title: "relative", CommentIDs: []int{1}})

	require.True(t, ps.requested("/relative"))
	require.Len(t, storyFiles(t, store, 3), 2)
}

// dirFailStore refuses to create story directories.
type dirFailStore struct {
	reports atomic.Int64
}

func (s *dirFailStore) CreateStoryDir(id int) (string, error) {
	return "", errors.New("disk full")
}

func (s *dirFailStore) SavePage(dir, pageURL string, body []byte) (string, error) {
	return "", errors.New("disk full")
}

func (s *dirFailStore) AppendReport(row domain.ReportRow) error {
	s.reports.Add(1)
	return nil
}

func TestProcessAbortsWhenDirectoryFails(t *testing.T) {
	t.Parallel()

	ps := newPageServer(t, map[string]string{"/article": "never saved"}, nil)
	api := &stubStoryAPI{webBase: ps.URL}

	m := monitoring.NewMetrics(prometheus.NewRegistry())
	logger := zap.NewNop()
	pool := fetcher.NewPool(http.DefaultClient, 3, time.Second, "ycrawler-test", m, logger)
	store := &dirFailStore{}
	proc := crawler.NewProcessor(api, pool, store, m, logger)

	proc.Process(context.Background(), &domain.Story{ID: 5, Title: "no dir", URL: ps.URL + "/article"})

	require.Zero(t, ps.hitCount(), "nothing is fetched without a directory")
	require.Zero(t, store.reports.Load(), "no report row without a directory")
}
