package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const envPrefix = "MBP_"

type Config struct {
	InputPath  string       `yaml:"input_path" env:"INPUT_PATH"`
	OutputPath string       `yaml:"output_path" env:"OUTPUT_PATH"`
	Depth      int          `yaml:"depth" env:"DEPTH"`
	LogLevel   string       `yaml:"log_level" env:"LOG_LEVEL"`
	Source     string       `yaml:"source" env:"SOURCE"`
	Kafka      KafkaConfig  `yaml:"kafka" envPrefix:"KAFKA_"`
	Server     ServerConfig `yaml:"server" envPrefix:"SERVER_"`
}

type KafkaConfig struct {
	Brokers        []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	ActionsTopic   string   `yaml:"actions_topic" env:"ACTIONS_TOPIC"`
	GroupID        string   `yaml:"group_id" env:"GROUP_ID"`
	SnapshotsTopic string   `yaml:"snapshots_topic" env:"SNAPSHOTS_TOPIC"`
}

type ServerConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	Port    int  `yaml:"port" env:"PORT"`
	Backlog int  `yaml:"backlog" env:"BACKLOG"`
}

const (
	SourceCSV   = "csv"
	SourceKafka = "kafka"
)

func defaults() Config {
	return Config{
		OutputPath: "mbp_output.csv",
		Depth:      10,
		LogLevel:   "info",
		Source:     SourceCSV,
		Kafka: KafkaConfig{
			Brokers:      []string{"localhost:9092"},
			ActionsTopic: "mbo-actions",
			GroupID:      "mbp-reconstructor",
		},
		Server: ServerConfig{
			Port:    8086,
			Backlog: 256,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies MBP_* environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks c and normalizes Source. Call it again after overriding fields.
func (c *Config) Validate() error {
	if c.Depth < 1 {
		return errors.New("depth must be >=1")
	}
	if c.OutputPath == "" {
		return errors.New("output_path must be set")
	}
	switch strings.ToLower(c.Source) {
	case SourceCSV:
		c.Source = SourceCSV
	case SourceKafka:
		c.Source = SourceKafka
		if len(c.Kafka.Brokers) == 0 || c.Kafka.ActionsTopic == "" {
			return errors.New("kafka source needs kafka.brokers and kafka.actions_topic")
		}
	default:
		return fmt.Errorf("source must be %q or %q", SourceCSV, SourceKafka)
	}
	if c.Kafka.SnapshotsTopic != "" && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.snapshots_topic needs kafka.brokers")
	}
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return errors.New("invalid server.port")
		}
		if c.Server.Backlog < 0 {
			return errors.New("server.backlog must be >=0")
		}
	}
	return nil
}

// NewLogger builds a JSON production logger. Unknown levels fall back to info.
func NewLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
