package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/innerscore/internal/adapters/hosting"
	"github.com/okian/innerscore/internal/adapters/http/api"
	"github.com/okian/innerscore/internal/adapters/manifest"
	"github.com/okian/innerscore/internal/adapters/output"
	"github.com/okian/innerscore/internal/adapters/repository"
	service "github.com/okian/innerscore/internal/app"
	"github.com/okian/innerscore/internal/config"
	"github.com/okian/innerscore/internal/domain/model"
	"github.com/okian/innerscore/internal/verify"
	"github.com/okian/innerscore/pkg/logger"
	"github.com/okian/innerscore/pkg/metrics"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:  "innerscore",
		Usage: "Harvest InnerSource repositories and publish them with engagement scores",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				EnvVars: []string{"INNERSCORE_CONFIG"},
				Usage:   "YAML config file",
			},
		},
		Commands: []*cli.Command{
			harvestCmd(),
			serveCmd(),
			verifyCmd(),
		},
	}
	// Errors are returned to main instead of exiting inside the library.
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// harvestCmd runs one pass and exits.
func harvestCmd() *cli.Command {
	return &cli.Command{
		Name:  "harvest",
		Usage: "Run one harvest pass and write the collection",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (overrides output_path)"},
			&cli.StringFlag{Name: "endpoint", Aliases: []string{"e"}, Usage: "Hosting service base URL (overrides hosting_endpoint)"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := setup(ctx, c)
			if err != nil {
				return err
			}
			defer d.close()

			rep, err := d.harvester.Run(ctx)
			if encErr := writeJSON(c, rep); encErr != nil && err == nil {
				err = encErr
			}
			return err
		},
	}
}

// serveCmd runs the HTTP API with periodic passes.
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the collection over HTTP and harvest periodically",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (overrides addr)"},
			&cli.StringFlag{Name: "endpoint", Aliases: []string{"e"}, Usage: "Hosting service base URL (overrides hosting_endpoint)"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := setup(ctx, c)
			if err != nil {
				return err
			}
			defer d.close()
			return serve(ctx, c, d)
		},
	}
}

// verifyCmd checks a running server.
func verifyCmd() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Check that a running server's leaderboard agrees with its collection",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Value: "http://localhost:9080", Usage: "Base URL of the server"},
			&cli.IntFlag{Name: "top", Aliases: []string{"n"}, Value: 10, Usage: "Number of leaderboard entries to check"},
			&cli.DurationFlag{Name: "timeout", Value: 10 * time.Second, Usage: "HTTP request timeout"},
		},
		Action: func(c *cli.Context) error {
			if err := logger.InitWith(c.App.ErrWriter, "text"); err != nil {
				return fmt.Errorf("initializing logging: %w", err)
			}
			rep, err := verify.Run(c.Context, verify.Config{
				BaseURL: c.String("url"),
				TopN:    c.Int("top"),
				Timeout: c.Duration("timeout"),
			}, logger.Get().Named("verify"))
			if encErr := writeJSON(c, rep); encErr != nil && err == nil {
				err = encErr
			}
			return err
		},
	}
}

// deps is what both commands build from the config.
type deps struct {
	cfg       *config.Config
	log       logger.Logger
	client    *hosting.HTTPClient
	store     *repository.SnapshotStore
	harvester *service.Harvester
}

func (d *deps) close() {
	_ = d.client.Close()
	_ = logger.Sync()
}

func setup(ctx context.Context, c *cli.Context) (*deps, error) {
	if path := c.String("config"); path != "" {
		if err := os.Setenv("INNERSCORE_CONFIG", path); err != nil {
			return nil, fmt.Errorf("setting config path: %w", err)
		}
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	applyFlags(c, cfg)

	if err := logger.InitWith(c.App.ErrWriter, cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	metrics.Configure(metricsOptions(cfg)...)

	client, err := hosting.NewHTTPClient(cfg.HostingEndpoint,
		hosting.WithToken(cfg.HostingToken),
		hosting.WithTimeout(cfg.HostingTimeout()),
		hosting.WithMaxRetries(cfg.MaxRetries),
		hosting.WithLogger(log.Named("hosting")),
	)
	if err != nil {
		return nil, err
	}

	reader, err := manifest.NewReader(client,
		manifest.WithPath(cfg.ManifestPath),
		manifest.WithCacheSize(cfg.ManifestCacheSize),
		manifest.WithLogger(log.Named("manifest")),
	)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	sink, err := buildSinks(cfg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	store := repository.NewSnapshotStore()
	harvester := service.NewHarvester(client, reader, sink, store,
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithFilter(filterFrom(cfg)),
		service.WithLogger(log.Named("harvest")),
	)

	return &deps{cfg: cfg, log: log, client: client, store: store, harvester: harvester}, nil
}

// applyFlags lets command flags override the loaded config.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("output") {
		cfg.OutputPath = c.String("output")
	}
	if c.IsSet("endpoint") {
		cfg.HostingEndpoint = c.String("endpoint")
	}
	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
}

func buildSinks(cfg *config.Config) (*output.MultiSink, error) {
	var sinks []output.Sink
	if cfg.OutputPath != "" {
		fs, err := output.NewFileSink(cfg.OutputPath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
	}
	if cfg.S3Enabled() {
		s3, err := output.NewS3Sink(output.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Key:       cfg.S3Key,
			UseSSL:    cfg.S3UseSSL,
			Archive:   cfg.S3Archive,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3)
	}
	return output.NewMultiSink(sinks...), nil
}

func metricsOptions(cfg *config.Config) []metrics.Option {
	return []metrics.Option{
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithMetricPrefix(cfg.MetricsPrefix),
		metrics.WithCustomLabels(cfg.MetricsLabels),
	}
}

func filterFrom(cfg *config.Config) service.Filter {
	return service.Filter{
		TagKey:   cfg.TagKey,
		TagValue: cfg.TagValue,
		Owner:    model.Owner{Login: cfg.OwnerLogin, AvatarURL: cfg.OwnerAvatarURL},
	}
}

func writeJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serve(ctx context.Context, c *cli.Context, d *deps) error {
	log := d.log

	svc := service.New(d.harvester, d.store,
		service.WithInterval(d.cfg.HarvestInterval()),
		service.WithServiceLogger(log.Named("service")),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	if path := c.String("config"); path != "" {
		go func() {
			err := config.Watch(ctx, path, log.Named("config"), func(next *config.Config) {
				d.harvester.SetFilter(filterFrom(next))
				if err := logger.SetLevelString(next.LogLevel); err != nil {
					log.Warn(ctx, "ignoring invalid log_level", logger.String("log_level", next.LogLevel))
				}
			})
			if err != nil {
				log.Error(ctx, "config watch stopped", logger.Error(err))
			}
		}()
	}

	mux := http.NewServeMux()
	api.NewServer(d.store, svc, svc, d.cfg.MaxLeaderboardLimit).Register(mux)

	srv := &http.Server{
		Addr:              d.cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", d.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}
