package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"mbp-reconstructor/internal/config"
	"mbp-reconstructor/internal/feed"
	"mbp-reconstructor/internal/mbp"
	"mbp-reconstructor/internal/reconstruct"
	"mbp-reconstructor/internal/server"
)

func main() {
	_ = godotenv.Load() // best-effort: .env is optional

	configPath := flag.String("config", "", "path to a YAML config file")
	output := flag.String("output", "", "output CSV path (overrides output_path)")
	source := flag.String("source", "", "action source: csv or kafka (overrides source)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <mbo_input.csv>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if flag.NArg() > 0 {
		cfg.InputPath = flag.Arg(0)
	}
	if *output != "" {
		cfg.OutputPath = *output
	}
	if *source != "" {
		cfg.Source = *source
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Source == config.SourceCSV && cfg.InputPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("reconstruction failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	logger.Info("mbp-reconstructor starting",
		zap.String("source", cfg.Source),
		zap.String("input", cfg.InputPath),
		zap.String("output", cfg.OutputPath),
		zap.Int("depth", cfg.Depth),
	)

	// Context & signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := feed.Open(cfg, logger)
	if err != nil {
		return err
	}

	rec := reconstruct.New(cfg.Depth, logger)

	// Optional: live rows over HTTP + WS
	if cfg.Server.Enabled {
		srv := server.NewHTTPServer(rec, cfg.Server.Backlog, logger)
		rec.OnCapture(func(bid, ask reconstruct.Snapshot) {
			srv.BroadcastRow(mbp.RowFromCapture(bid, ask))
		})
		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		done := make(chan struct{})
		go func() {
			logger.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", zap.Error(err))
			}
			close(done)
		}()
		defer func() {
			shCtx, shCancel := context.WithTimeout(context.Background(), 8*time.Second)
			defer shCancel()
			srv.Close()
			_ = httpSrv.Shutdown(shCtx)
			<-done
		}()
	}

	// Optional: publish rows to Kafka as they are captured
	if cfg.Kafka.SnapshotsTopic != "" {
		pub := mbp.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.SnapshotsTopic, logger)
		rec.OnCapture(func(bid, ask reconstruct.Snapshot) {
			if err := pub.Publish(ctx, mbp.RowFromCapture(bid, ask)); err != nil {
				logger.Warn("publish row", zap.Error(err))
			}
		})
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Warn("close publisher", zap.Error(err))
			}
			if n := pub.Failed(); n > 0 {
				logger.Warn("rows not published", zap.Int("count", n))
			}
		}()
	}

	res, err := rec.Run(ctx, src)
	if err != nil {
		return err
	}
	if skipped := src.Skipped(); skipped > 0 {
		logger.Warn("malformed input records skipped", zap.Int("count", skipped))
	}

	rows := mbp.Merge(res.Bids, res.Asks, res.Depth)
	if err := mbp.WriteCSVFile(cfg.OutputPath, rows, res.Depth); err != nil {
		return err
	}

	logger.Info("mbp output written",
		zap.String("run_id", res.RunID),
		zap.String("output", cfg.OutputPath),
		zap.Duration("processing_time", res.Elapsed),
		zap.Int("snapshots", len(res.Bids)),
		zap.Int("rows", len(rows)),
	)
	return nil
}
