package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	goredis "github.com/redis/go-redis/v9"

	apperrors "github.com/lorrc/repair-desk/internal/core/errors"
	"github.com/lorrc/repair-desk/internal/core/ports"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repairdesk_kv_operations_total",
		Help: "Redis key-value operations by type and result",
	}, []string{"operation", "result"})

	operationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "repairdesk_kv_operation_duration_seconds",
		Help:    "Redis key-value operation latency",
		Buckets: prometheus.DefBuckets,
	})
)

// Config holds the connection settings.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Store is a ports.KeyValueStore backed by Redis.
type Store struct {
	client    goredis.UniversalClient
	keyPrefix string
}

var _ ports.KeyValueStore = (*Store)(nil)

// Connect opens a client and verifies the server answers.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewStore(client, cfg.KeyPrefix), nil
}

// NewStore wraps an existing client.
func NewStore(client goredis.UniversalClient, keyPrefix string) *Store {
	return &Store{client: client, keyPrefix: keyPrefix}
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	timer := prometheus.NewTimer(operationDuration)
	defer timer.ObserveDuration()

	val, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			operationsTotal.WithLabelValues("get", "miss").Inc()
			return nil, apperrors.ErrKeyNotFound
		}
		operationsTotal.WithLabelValues("get", "error").Inc()
		return nil, err
	}

	operationsTotal.WithLabelValues("get", "hit").Inc()
	return val, nil
}

// Set stores value. A zero ttl keeps the key until overwritten.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	timer := prometheus.NewTimer(operationDuration)
	defer timer.ObserveDuration()

	if err := s.client.Set(ctx, s.keyPrefix+key, value, ttl).Err(); err != nil {
		operationsTotal.WithLabelValues("set", "error").Inc()
		return err
	}

	operationsTotal.WithLabelValues("set", "ok").Inc()
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
