package config

import (
	"context"
	"fmt"

	"github.com/ukydev/garage/internal/db"
)

// OpenStore connects the backend selected by c.Store.
func OpenStore(ctx context.Context, c *Config) (db.KeyValueStore, error) {
	switch c.Store {
	case StoreMemory:
		return db.NewMemoryStore(), nil
	case StoreFile:
		return db.NewFileStore(c.DataDir), nil
	case StoreMongo:
		client, err := db.ConnectMongo(ctx, c.Mongo.URI)
		if err != nil {
			return nil, err
		}
		return &db.MongoStore{Collection: client.Database(c.Mongo.Database).Collection(c.Mongo.Collection)}, nil
	case StoreRedis:
		client, err := db.ConnectRedis(ctx, c.Redis.Addr)
		if err != nil {
			return nil, err
		}
		return &db.RedisStore{Client: client, Prefix: c.Redis.Prefix}, nil
	default:
		return nil, fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
}
