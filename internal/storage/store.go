package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	reportFileName  = "report.csv"
	maxFileNameLen  = 64
	maxNameAttempts = 1000
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Store writes crawl output under a single root directory: one directory
// per story id holding its downloaded pages, plus report.csv at the root
// with one row per processed story.
type Store struct {
	root   string
	logger *zap.Logger

	reportMu   sync.Mutex
	reportPath string
}

func NewStore(root string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{
		root:       root,
		logger:     logger,
		reportPath: filepath.Join(root, reportFileName),
	}, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string { return s.root }

// StoryDir returns the directory path for a story id without creating it.
func (s *Store) StoryDir(id int) string {
	return filepath.Join(s.root, strconv.Itoa(id))
}

// CreateStoryDir makes the directory for a story id and returns its path.
// The directory exists even when every subsequent page download fails.
func (s *Store) CreateStoryDir(id int) (string, error) {
	dir := s.StoryDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create story dir %d: %w", id, err)
	}
	return dir, nil
}

// SavePage writes body into dir under a name derived from pageURL and
// returns the name used. Name collisions inside the directory get an
// ordinal suffix.
func (s *Store) SavePage(dir, pageURL string, body []byte) (string, error) {
	base := fileNameForURL(pageURL)
	name := base
	for i := 2; i <= maxNameAttempts; i++ {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			name = fmt.Sprintf("%s-%d", base, i)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create page file: %w", err)
		}

		_, werr := f.Write(body)
		cerr := f.Close()
		if werr != nil {
			return "", fmt.Errorf("write page file %s: %w", name, werr)
		}
		if cerr != nil {
			return "", fmt.Errorf("close page file %s: %w", name, cerr)
		}

		s.logger.Debug("page saved",
			zap.String("file", name),
			zap.String("url", pageURL),
			zap.Int("bytes", len(body)))
		return name, nil
	}
	return "", fmt.Errorf("no free file name for %q after %d attempts", base, maxNameAttempts)
}

// fileNameForURL strips the scheme, drops characters unsafe in file names
// and truncates the rest. The result is never empty.
func fileNameForURL(rawURL string) string {
	name := strings.TrimPrefix(rawURL, "http://")
	name = strings.TrimPrefix(name, "https://")
	name = unsafeNameChars.ReplaceAllString(name, "")
	if len(name) > maxFileNameLen {
		name = name[:maxFileNameLen]
	}
	if name == "" {
		name = "page"
	}
	return name
}
