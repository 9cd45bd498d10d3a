package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/anastasiyaperk/Ycrawler/internal/api"
	"github.com/anastasiyaperk/Ycrawler/internal/config"
	"github.com/anastasiyaperk/Ycrawler/internal/crawler"
	"github.com/anastasiyaperk/Ycrawler/internal/fetcher"
	"github.com/anastasiyaperk/Ycrawler/internal/hn"
	"github.com/anastasiyaperk/Ycrawler/internal/logging"
	"github.com/anastasiyaperk/Ycrawler/internal/monitoring"
	"github.com/anastasiyaperk/Ycrawler/internal/storage"
)

const version = "1.0.0"

const opsShutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ycrawler",
		Short:        "Hacker News top-stories crawler daemon",
		Long:         "Polls the Hacker News API, downloads each new top story's page and the pages linked from its first-level comments, and keeps a report of everything processed.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is fine, plain environment variables still apply.
			_ = godotenv.Load()

			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ycrawler version %s\n", version)
		},
	})

	flags := cmd.Flags()
	flags.Int("period", 30, "poll cycle interval in seconds")
	flags.Int("limit", 30, "how many top stories each cycle considers")
	flags.Bool("verbose", false, "debug-level logging")
	flags.String("path", "./data", "storage root directory")
	flags.Int("connections_limit", 3, "maximum concurrent page downloads")
	flags.String("log", "crawler.log", "log file in addition to stdout, empty disables")
	flags.Int("fetch_timeout", 10, "per-download timeout in seconds")
	flags.Float64("api_rps", 10, "news API request rate cap, 0 disables")
	flags.String("ops_addr", "", "ops HTTP listen address, e.g. :9090, empty disables")
	flags.Bool("resume", false, "seed the seen registry from an existing report")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Verbose, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	store, err := storage.NewStore(cfg.Path, logger.Named("storage"))
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	seen := crawler.NewSeenRegistry()
	if cfg.Resume {
		ids, err := store.ProcessedIDs()
		if err != nil {
			logger.Warn("report could not be read, starting with an empty registry", zap.Error(err))
		} else {
			seen.Seed(ids)
			logger.Info("seen registry seeded from report", zap.Int("stories", len(ids)))
		}
	}

	userAgent := "ycrawler/" + version

	var limiter *rate.Limiter
	if cfg.APIRPS > 0 {
		burst := int(cfg.APIRPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.APIRPS), burst)
	}
	apiClient := hn.NewClient(
		&http.Client{Timeout: cfg.RequestTimeout()},
		"", "", limiter, userAgent)

	pool := fetcher.NewPool(
		&http.Client{}, cfg.ConnectionsLimit, cfg.RequestTimeout(), userAgent,
		metrics, logger.Named("fetcher"))

	proc := crawler.NewProcessor(apiClient, pool, store, metrics, logger.Named("processor"))
	core := crawler.New(apiClient, proc, seen,
		cfg.PollPeriod(), cfg.Limit, metrics, logger.Named("crawler"))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := core.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if cfg.OpsAddr != "" {
		opsServer := api.NewServer(cfg.OpsAddr, core, registry, logger.Named("ops"))
		g.Go(func() error {
			if err := opsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), opsShutdownTimeout)
			defer cancel()
			return opsServer.Shutdown(shutdownCtx)
		})
	}

	logger.Info("ycrawler started",
		zap.String("version", version),
		zap.String("path", cfg.Path),
		zap.Int("limit", cfg.Limit),
		zap.Int("connections_limit", cfg.ConnectionsLimit))

	if err := g.Wait(); err != nil {
		logger.Error("shutdown with error", zap.Error(err))
		return err
	}
	logger.Info("ycrawler exiting")
	return nil
}
