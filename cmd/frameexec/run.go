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

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	frameexecutor "github.com/Swind/go-frame-executor"
	"github.com/Swind/go-frame-executor/config"
	"github.com/Swind/go-frame-executor/core"
	obs "github.com/Swind/go-frame-executor/observability/prometheus"
	"github.com/Swind/go-frame-executor/observability/zaplog"
	"github.com/Swind/go-frame-executor/pipeline"
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Mux a synthetic sample stream on the worker",

		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "samples",
				Aliases: []string{"n"},
				Value:   300,
				Usage:   "Number of samples to generate",
			},
			&cli.DurationFlag{
				Name:  "frame-duration",
				Value: 33333 * time.Microsecond,
				Usage: "Presentation time between samples",
			},
			&cli.IntFlag{
				Name:  "fail-at",
				Value: -1,
				Usage: "Inject a source failure at this sample index",
			},
			&cli.DurationFlag{
				Name:  "probe-interval",
				Value: 10 * time.Millisecond,
				Usage: "Period of high-priority progress probes, 0 disables them",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (enables metrics)",
			},
		},

		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	// 1. Get flags and config
	samples := c.Int("samples")
	if samples < 0 {
		return cli.Exit("samples must not be negative", 1)
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	if addr := c.String("metrics-addr"); addr != "" {
		cfg.Metrics.Enable = true
		cfg.Metrics.Addr = addr
	}

	zl, err := zaplog.Setup(cfg.Log)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	defer func() { _ = zl.Sync() }()
	logger := zaplog.New(zl)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Build the executor
	execCfg := cfg.Executor.ToCore()
	execCfg.Logger = logger

	var (
		reg    *prom.Registry
		poller *obs.SnapshotPoller
	)
	if cfg.Metrics.Enable {
		reg = prom.NewRegistry()
		exporter, err := obs.NewMetricsExporter(cfg.Metrics.Namespace, reg, obs.ExporterOptions{})
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
		execCfg.Metrics = exporter
		if poller, err = obs.NewSnapshotPoller(reg, cfg.Metrics.PollInterval); err != nil {
			return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
	}

	failures := make(chan *core.ProcessingError, 1)
	listener := core.ErrorListenerFunc(func(err *core.ProcessingError) {
		select {
		case failures <- err:
		default:
		}
	})

	var exec *core.TaskExecutor
	var engineStats obs.EngineSnapshotProvider
	if cfg.Executor.SharedWorker {
		frameexecutor.InitGlobalWorkerWithConfig(&core.EngineConfig{Logger: logger})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Executor.ReleaseTimeout)
			defer cancel()
			if err := frameexecutor.ShutdownGlobalWorker(shutdownCtx); err != nil {
				zl.Warn("global worker did not stop", zap.Error(err))
			}
		}()
		exec = frameexecutor.CreateExecutor(listener, execCfg)
		engineStats = frameexecutor.GetGlobalWorker()
	} else {
		exec = frameexecutor.NewExecutor(listener, execCfg)
	}
	if poller != nil {
		poller.AddExecutor(exec.Name(), exec)
		if engineStats != nil {
			poller.AddEngine("global-worker", engineStats)
		}
	}

	// 3. Drive the stream
	source := newSyntheticSource(samples, c.Duration("frame-duration"), c.Int("fail-at"))
	muxer := pipeline.NewMemoryMuxer()
	loop := pipeline.NewLoop(exec, source, pipeline.NewEncodedSamplePipeline(0), muxer)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.Metrics.Enable {
		server := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsHandler(reg)}
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		poller.Start(gctx)
		defer poller.Stop()
		zl.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
	}

	g.Go(func() error {
		defer cancel()
		start := time.Now()
		loop.Start()
		select {
		case <-loop.Done():
			zl.Info("stream muxed",
				zap.Int("samples", loop.Written()),
				zap.Duration("elapsed", time.Since(start)))
			return nil
		case perr := <-failures:
			return perr
		case <-gctx.Done():
			return nil
		}
	})

	if interval := c.Duration("probe-interval"); interval > 0 {
		g.Go(func() error {
			return probeProgress(gctx, exec, loop, interval, logger)
		})
	}

	runErr := g.Wait()

	// 4. Release the worker
	releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 2*cfg.Executor.ReleaseTimeout)
	defer releaseCancel()
	if err := exec.Release(releaseCtx, func(ctx context.Context) error {
		zl.Info("releasing muxer", zap.Int("track_samples", len(muxer.Samples())), zap.Bool("track_ended", muxer.Ended(0)))
		return nil
	}); err != nil {
		zl.Warn("release failed", zap.Error(err))
	}

	stats := exec.Stats()
	fmt.Printf("executor=%s state=%s submitted=%d rejected=%d failures=%d suppressed=%d\n",
		stats.Name, stats.State, stats.Submitted, stats.Rejected, stats.Failures, stats.Suppressed)

	if runErr != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", runErr), 1)
	}
	return nil
}

// probeProgress periodically reads the loop's progress on the worker. The
// probe runs in the high-priority lane, ahead of queued stream steps.
func probeProgress(ctx context.Context, exec *core.TaskExecutor, loop *pipeline.Loop, interval time.Duration, logger core.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-loop.Done():
			return nil
		case <-ticker.C:
			exec.SubmitWithHighPriority(func(ctx context.Context) error {
				logger.Debug("stream progress", core.F("written", loop.Written()))
				return nil
			})
		}
	}
}

func metricsHandler(reg *prom.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}
