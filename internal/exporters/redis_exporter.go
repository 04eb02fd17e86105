package exporters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/llamabridge/llamabridge/internal/metrics"
)

// RedisConfig mirrors config.RedisExporterConfig without importing the
// config package, the same independence discipline backend.TLSOptions
// follows.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// RedisExporter appends one entry per request to a Redis stream via XADD,
// capped with MAXLEN ~ so the stream self-trims instead of growing
// unbounded — the pack's one time-series-shaped sink.
type RedisExporter struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisExporter(cfg RedisConfig) *RedisExporter {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	stream := cfg.Stream
	if stream == "" {
		stream = "llamabridge:metrics"
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisExporter{client: client, stream: stream, maxLen: maxLen}
}

func (e *RedisExporter) Name() string { return "redis" }

func (e *RedisExporter) Export(ctx context.Context, m *metrics.RequestMetrics) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	return e.client.XAdd(ctx, &redis.XAddArgs{
		Stream: e.stream,
		MaxLen: e.maxLen,
		Approx: true,
		Values: map[string]any{"metrics": string(payload)},
	}).Err()
}

func (e *RedisExporter) Close() error {
	return e.client.Close()
}
