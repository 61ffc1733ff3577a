package configstore

import (
	"context"
	"fmt"

	"github.com/spherical/image-analyzer/internal/config"
	"github.com/spherical/image-analyzer/internal/domain"
	"github.com/spherical/image-analyzer/internal/observability"
)

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, logger *observability.Logger) (Store, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	logger = logger.WithField("store", cfg.Driver)

	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemoryStore(), nil

	case config.DriverRedis:
		return NewRedisStore(RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Prefix:   cfg.Redis.Prefix,
		}, logger)

	case config.DriverSQLite, config.DriverPostgres, config.DriverMySQL:
		return OpenSQLStore(ctx, Dialect(cfg.Driver), cfg.SQL.DSN, cfg.SQL.MaxOpenConns, cfg.PollInterval, logger)

	case config.DriverDynamoDB:
		client, err := NewDynamoClient(ctx, cfg.DynamoDB.Region, cfg.DynamoDB.Endpoint)
		if err != nil {
			return nil, err
		}
		return NewDynamoStore(client, cfg.DynamoDB.Table, cfg.PollInterval, logger), nil

	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown store driver %q", cfg.Driver), nil)
	}
}
