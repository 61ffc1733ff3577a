package configstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spherical/image-analyzer/internal/domain"
	"github.com/spherical/image-analyzer/internal/observability"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Prefix   string
}

// RedisStore keeps each document under a key and announces writes on a
// per-document channel.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *observability.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig, logger *observability.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, domain.StoreError("redis ping failed", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ia:"
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}, nil
}

func (s *RedisStore) key(path string) string     { return s.prefix + "doc:" + path }
func (s *RedisStore) channel(path string) string { return s.prefix + "updates:" + path }

func (s *RedisStore) Load(ctx context.Context, path string) (domain.AppConfiguration, bool, error) {
	data, err := s.client.Get(ctx, s.key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AppConfiguration{}, false, nil
	}
	if err != nil {
		return domain.AppConfiguration{}, false, domain.StoreError("redis get", err)
	}
	cfg, err := decodeDocument(data)
	if err != nil {
		return domain.AppConfiguration{}, false, err
	}
	return cfg, true, nil
}

// Save writes the document and publishes it to subscribers.
func (s *RedisStore) Save(ctx context.Context, path string, cfg domain.AppConfiguration) error {
	data, err := encodeDocument(cfg)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(path), data, 0)
	pipe.Publish(ctx, s.channel(path), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.StoreError("redis save", err)
	}
	return nil
}

// Subscribe listens on the document channel before reading the current
// value so no write between the two is missed.
func (s *RedisStore) Subscribe(ctx context.Context, path string) (<-chan Snapshot, func(), error) {
	sub := s.client.Subscribe(ctx, s.channel(path))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, domain.StoreError(fmt.Sprintf("redis subscribe %s", path), err)
	}

	cfg, exists, err := s.Load(ctx, path)
	if err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	ch := make(chan Snapshot, 1)
	ch <- Snapshot{Config: cfg.Normalize(), Exists: exists}

	done := make(chan struct{})
	stopped := make(chan struct{})
	msgs := sub.Channel()

	go func() {
		defer close(stopped)
		defer close(ch)
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				cfg, err := decodeDocument([]byte(msg.Payload))
				if err != nil {
					s.logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable configuration update")
					continue
				}
				offer(ch, Snapshot{Config: cfg, Exists: true})
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
			<-stopped
		})
	}

	return ch, unsubscribe, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
