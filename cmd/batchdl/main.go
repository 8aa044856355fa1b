package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/italolelis/batchdl/internal/checksum"
	"github.com/italolelis/batchdl/internal/config"
	"github.com/italolelis/batchdl/internal/downloader"
	"github.com/italolelis/batchdl/internal/http/rest"
	"github.com/italolelis/batchdl/internal/logctx"
	"github.com/italolelis/batchdl/internal/manifest"
	"github.com/italolelis/batchdl/internal/notifier"
	"github.com/italolelis/batchdl/internal/presenter"
	"github.com/italolelis/batchdl/internal/source"
	"github.com/italolelis/batchdl/internal/source/putio"
	"github.com/italolelis/batchdl/internal/storage/sqlite"
	"github.com/italolelis/batchdl/internal/telemetry"
)

// version is set at build time.
var version = "dev"

const notifyTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(logctx.NewContextHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("batch downloader starting...", "log_level", cfg.LogLevel, "version", version)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInterval:   cfg.Telemetry.OTLPInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Database
	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		logger.Error("DB error", "err", err)

		return err
	}
	defer database.Close()

	ledger := sqlite.NewInstrumentedTransferRepository(database, tel)

	// =========================================================================
	// Start Sources
	resolver, err := buildResolver(ctx, cfg, tel)
	if err != nil {
		return err
	}

	m, err := manifest.Load(cfg.ManifestPath, cfg.TargetDir)
	if err != nil {
		return err
	}

	specs, err := m.Specs(ctx, resolver)
	if err != nil {
		return err
	}

	expectations, err := m.Expectations()
	if err != nil {
		return err
	}

	batchID := uuid.NewString()
	ctx = logctx.WithBatchID(ctx, batchID)

	// =========================================================================
	// Start Presenters
	status := presenter.NewStatus()
	p := presenter.Multi{
		presenter.NewLog(ctx, logger, cfg.LogInterval),
		status,
		presenter.NewLedger(ctx, ledger),
	}

	// =========================================================================
	// Start API Service
	if cfg.Web.Enabled {
		server := setupServer(ctx, cfg, status, ledger, tel)

		go func() {
			logger.Info("Initializing API support", "host", cfg.Web.BindAddress)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server error", "err", err)
			}
		}()

		defer shutdownServer(ctx, server, cfg.Web.ShutdownTimeout)
	}

	// =========================================================================
	// Start Batch
	coordinator := downloader.NewCoordinator(
		source.NewHTTPClient(cfg.HeaderTimeout, cfg.SourceToken, source.HTTPHosts(specs)),
		downloader.WithResolver(resolver),
		downloader.WithPresenter(p),
		downloader.WithTelemetry(tel),
		downloader.WithSampleInterval(cfg.SampleInterval),
	)

	logger.Info("starting downloads...",
		"files", len(specs),
		"target_dir", cfg.TargetDir,
		"max_parallel", cfg.MaxParallel,
		"header_timeout", cfg.HeaderTimeout.String(),
	)

	start := time.Now()

	err = coordinator.Run(ctx, specs, cfg.MaxParallel)
	if err == nil && cfg.VerifyChecksums {
		err = verifyChecksums(ctx, expectations)
	}

	var done int64
	if view, ok := status.View(); ok {
		done = view.Done
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	notifier.NotifyBatch(notifyCtx, buildNotifier(cfg), notifier.BatchResult{
		BatchID:  batchID,
		Files:    len(specs),
		Bytes:    done,
		Duration: time.Since(start),
		Err:      err,
	})

	return err
}

func buildResolver(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry) (*source.Resolver, error) {
	if cfg.PutioToken == "" {
		return source.NewResolver(nil, tel), nil
	}

	pc := putio.NewClient(cfg.PutioToken)

	err := tel.InstrumentClientOperation(ctx, "putio", "authenticate", func(ctx context.Context) error {
		return pc.Authenticate(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("authentication error: %w", err)
	}

	return source.NewResolver(pc, tel), nil
}

func buildNotifier(cfg *config.Config) notifier.Notifier {
	if cfg.DiscordWebhookURL == "" {
		return nil
	}

	return &notifier.DiscordNotifier{WebhookURL: cfg.DiscordWebhookURL}
}

func verifyChecksums(ctx context.Context, expectations map[string]manifest.Expectation) error {
	logger := logctx.LoggerFromContext(ctx)

	var errs []error

	for path, exp := range expectations {
		if err := checksum.Verify(path, exp.Algorithm, exp.Digest); err != nil {
			logger.ErrorContext(ctx, "checksum verification failed", "path", path, "algorithm", exp.Algorithm, "err", err)
			errs = append(errs, err)

			continue
		}

		logger.DebugContext(ctx, "checksum verified", "path", path, "algorithm", exp.Algorithm)
	}

	if len(errs) > 0 {
		return fmt.Errorf("checksum verification failed: %w", errors.Join(errs...))
	}

	return nil
}

// setupServer prepares the handlers and services to create the http rest server.
func setupServer(ctx context.Context, cfg *config.Config, status rest.StatusSource, ledger *sqlite.InstrumentedTransferRepository, tel *telemetry.Telemetry) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(tel.HTTPLogging)

	r.Mount("/", rest.NewStatusHandler(status, ledger, cfg.Web.Username, cfg.Web.Password).
		WithMetrics(tel.Handler()).
		Routes())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

func shutdownServer(ctx context.Context, server *http.Server, timeout time.Duration) {
	logger := logctx.LoggerFromContext(ctx)

	// Give outstanding requests a deadline for completion.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("failed to gracefully shutdown the server", "err", err)

		if err := server.Close(); err != nil {
			logger.Error("could not stop server", "err", err)
		}
	}
}
