package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "TRACE_RECONSTRUCTOR_"

const (
	TimestampStartTime = "start_time"
	TimestampEndTime   = "end_time"
)

type Config struct {
	Kafka         KafkaConfig         `yaml:"kafka"`
	Window        WindowConfig        `yaml:"window"`
	State         StateConfig         `yaml:"state"`
	Timestamp     TimestampConfig     `yaml:"timestamp"`
	Partitions    PartitionsConfig    `yaml:"partitions"`
	Batching      BatchingConfig      `yaml:"batching"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	OTLP          OTLPConfig          `yaml:"otlp"`
	HTTP          HTTPConfig          `yaml:"http"`
	Observability ObservabilityConfig `yaml:"observability"`
	Log           LogConfig           `yaml:"log"`
}

type KafkaConfig struct {
	Brokers        []string      `yaml:"brokers"`
	GroupID        string        `yaml:"group_id"`
	InputTopic     string        `yaml:"input_topic"`
	OutputTopic    string        `yaml:"output_topic"`
	BatchTopic     string        `yaml:"batch_topic"`
	PollTimeout    time.Duration `yaml:"poll_timeout"`
	CommitInterval time.Duration `yaml:"commit_interval"`
	ProduceRetries uint64        `yaml:"produce_retries"`
}

type WindowConfig struct {
	Length time.Duration `yaml:"length"`
	Grace  time.Duration `yaml:"grace"`
}

type StateConfig struct {
	Directory   string        `yaml:"directory"`
	CacheBytes  int64         `yaml:"cache_bytes"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

type TimestampConfig struct {
	Field string `yaml:"field"`
}

type PartitionsConfig struct {
	Aggregator int `yaml:"aggregator"`
	Reducer    int `yaml:"reducer"`
}

type BatchingConfig struct {
	IdleThreshold time.Duration `yaml:"idle_threshold"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type ElasticsearchConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addresses []string `yaml:"addresses"`
	Index     string   `yaml:"index"`
}

type OTLPConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

type HTTPConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

type ObservabilityConfig struct {
	MetricsEnabled bool          `yaml:"metrics_enabled"`
	Endpoint       string        `yaml:"endpoint"`
	Insecure       bool          `yaml:"insecure"`
	ExportInterval time.Duration `yaml:"export_interval"`
	ExportTimeout  time.Duration `yaml:"export_timeout"`
}

type LogConfig struct {
	Development bool `yaml:"development"`
}

func Default() Config {
	return Config{
		Kafka: KafkaConfig{
			Brokers:        []string{"localhost:9092"},
			GroupID:        "trace-reconstructor",
			InputTopic:     "spans",
			OutputTopic:    "traces",
			BatchTopic:     "span-batches",
			PollTimeout:    100 * time.Millisecond,
			CommitInterval: time.Second,
			ProduceRetries: 5,
		},
		Window: WindowConfig{
			Length: 4 * time.Second,
			Grace:  2 * time.Second,
		},
		State: StateConfig{
			Directory:   "./state",
			CacheBytes:  64 << 20,
			OpenTimeout: 5 * time.Second,
		},
		Timestamp: TimestampConfig{Field: TimestampStartTime},
		Partitions: PartitionsConfig{
			Aggregator: 4,
			Reducer:    4,
		},
		Batching: BatchingConfig{
			IdleThreshold: 10 * time.Second,
			SweepInterval: time.Second,
			BatchSize:     64,
			FlushInterval: 5 * time.Second,
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses: []string{"http://localhost:9200"},
			Index:     "reconstructed_traces",
		},
		OTLP: OTLPConfig{ListenAddress: ":4317"},
		HTTP: HTTPConfig{ListenAddress: ":8081"},
		Observability: ObservabilityConfig{
			Endpoint:       "localhost:4318",
			ExportInterval: 10 * time.Second,
			ExportTimeout:  3 * time.Second,
		},
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path
// yields the defaults. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decode(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(raw []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := lookupEnv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := lookupEnv("KAFKA_GROUP_ID"); v != "" {
		cfg.Kafka.GroupID = v
	}
	if v := lookupEnv("KAFKA_INPUT_TOPIC"); v != "" {
		cfg.Kafka.InputTopic = v
	}
	if v := lookupEnv("KAFKA_OUTPUT_TOPIC"); v != "" {
		cfg.Kafka.OutputTopic = v
	}
	if v := lookupEnv("STATE_DIRECTORY"); v != "" {
		cfg.State.Directory = v
	}
	if v := lookupEnv("ELASTICSEARCH_ADDRESSES"); v != "" {
		cfg.Elasticsearch.Addresses = splitList(v)
	}
	if v := lookupEnv("ELASTICSEARCH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sELASTICSEARCH_ENABLED %q: %w", envPrefix, v, err)
		}
		cfg.Elasticsearch.Enabled = enabled
	}
	for name, target := range map[string]*time.Duration{
		"WINDOW_LENGTH": &cfg.Window.Length,
		"WINDOW_GRACE":  &cfg.Window.Grace,
	} {
		v := lookupEnv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s %q: %w", envPrefix, name, v, err)
		}
		*target = d
	}
	return nil
}

func lookupEnv(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (cfg Config) Validate() error {
	var errs []error
	if cfg.Window.Length <= 0 {
		errs = append(errs, errors.New("window.length must be positive"))
	}
	if cfg.Window.Grace < 0 {
		errs = append(errs, errors.New("window.grace must not be negative"))
	}
	if len(cfg.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers must not be empty"))
	}
	if cfg.Kafka.InputTopic == "" || cfg.Kafka.OutputTopic == "" {
		errs = append(errs, errors.New("kafka.input_topic and kafka.output_topic are required"))
	}
	if cfg.Kafka.PollTimeout <= 0 {
		errs = append(errs, errors.New("kafka.poll_timeout must be positive"))
	}
	switch cfg.Timestamp.Field {
	case TimestampStartTime, TimestampEndTime:
	default:
		errs = append(errs, fmt.Errorf("timestamp.field must be %q or %q, got %q", TimestampStartTime, TimestampEndTime, cfg.Timestamp.Field))
	}
	if cfg.Partitions.Aggregator <= 0 || cfg.Partitions.Reducer <= 0 {
		errs = append(errs, errors.New("partitions.aggregator and partitions.reducer must be positive"))
	}
	if cfg.Batching.BatchSize <= 0 {
		errs = append(errs, errors.New("batching.batch_size must be positive"))
	}
	if cfg.Batching.IdleThreshold <= 0 || cfg.Batching.SweepInterval <= 0 || cfg.Batching.FlushInterval <= 0 {
		errs = append(errs, errors.New("batching intervals must be positive"))
	}
	if cfg.Elasticsearch.Enabled && len(cfg.Elasticsearch.Addresses) == 0 {
		errs = append(errs, errors.New("elasticsearch.addresses must not be empty when elasticsearch is enabled"))
	}
	return errors.Join(errs...)
}
