package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/anastasiyaperk/Ycrawler/internal/crawler"
)

// StatsSource exposes the crawl progress snapshot served on /status.
type StatsSource interface {
	Stats() crawler.Stats
}

// Server is the ops HTTP surface: liveness, a status snapshot and the
// metrics exposition. It never influences crawling.
type Server struct {
	addr       string
	router     http.Handler
	httpServer *http.Server
	stats      StatsSource
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
}

func NewServer(addr string, stats StatsSource, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	s := &Server{
		addr:     addr,
		stats:    stats,
		gatherer: gatherer,
		logger:   logger,
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.logger.Info("ops server listening", zap.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
