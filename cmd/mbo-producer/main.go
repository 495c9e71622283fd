package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"mbp-reconstructor/internal/config"
	"mbp-reconstructor/internal/feed"
)

// mbo-producer replays an MBO CSV file onto the actions topic read by the kafka source.
func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to a YAML config file")
	brokers := flag.String("brokers", "", "comma-separated Kafka brokers (overrides kafka.brokers)")
	topic := flag.String("topic", "", "actions topic (overrides kafka.actions_topic)")
	batch := flag.Int("batch", 500, "messages per write")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <mbo_input.csv>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *brokers != "" {
		cfg.Kafka.Brokers = strings.Split(*brokers, ",")
	}
	if *topic != "" {
		cfg.Kafka.ActionsTopic = *topic
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := produce(ctx, cfg.Kafka, flag.Arg(0), *batch, logger)
	if err != nil {
		logger.Error("produce failed", zap.Error(err), zap.Int("sent", n))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("actions published", zap.Int("sent", n), zap.String("topic", cfg.Kafka.ActionsTopic))
}

func produce(ctx context.Context, kc config.KafkaConfig, path string, batch int, logger *zap.Logger) (int, error) {
	if batch < 1 {
		batch = 1
	}
	// one partition key keeps arrival order on the consumer side
	w := &kafka.Writer{
		Addr:         kafka.TCP(kc.Brokers...),
		Topic:        kc.ActionsTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchSize:    batch,
	}
	defer w.Close()

	src := feed.NewCSVFeed(path, logger)
	errc := make(chan error, 1)
	go func() { errc <- src.Run(ctx) }()

	key := []byte(kc.ActionsTopic)
	pending := make([]kafka.Message, 0, batch)
	sent := 0
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := w.WriteMessages(ctx, pending...); err != nil {
			return err
		}
		sent += len(pending)
		pending = pending[:0]
		return nil
	}

	var writeErr error
	for a := range src.Actions() {
		if writeErr != nil {
			continue // drain so the feed can finish
		}
		b, err := json.Marshal(a)
		if err != nil {
			writeErr = err
			continue
		}
		pending = append(pending, kafka.Message{
			Key:     key,
			Value:   b,
			Headers: []kafka.Header{{Key: "ts", Value: strconv.AppendUint(nil, a.Timestamp, 10)}},
		})
		if len(pending) == batch {
			writeErr = flush()
		}
	}
	if err := <-errc; err != nil {
		return sent, err
	}
	if writeErr != nil {
		return sent, writeErr
	}
	if err := flush(); err != nil {
		return sent, err
	}
	if s := src.Skipped(); s > 0 {
		logger.Warn("malformed input records skipped", zap.Int("count", s))
	}
	return sent, nil
}
