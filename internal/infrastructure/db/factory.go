// Package db selects the token store driver the portal persists sessions in.
package db

import (
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	gomongo "go.mongodb.org/mongo-driver/mongo"

	"github.com/medclinic/booking-portal/internal/core/ports"
	"github.com/medclinic/booking-portal/internal/infrastructure/db/memory"
	mongostore "github.com/medclinic/booking-portal/internal/infrastructure/db/mongo"
	redisstore "github.com/medclinic/booking-portal/internal/infrastructure/db/redis"
)

// Driver identifiers accepted by TOKEN_STORE_DRIVER.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
)

// Options selects and tunes a driver.
type Options struct {
	Driver string
	// Prefix namespaces redis keys.
	Prefix string
	// TTL expires redis entries; zero keeps them until cleared.
	TTL time.Duration
}

// Dependencies carries the connections drivers need.
type Dependencies struct {
	Redis *goredis.Client
	Mongo *gomongo.Database
}

// NewTokenStoreFactory returns a factory producing per-browser stores for the
// configured driver.
func NewTokenStoreFactory(opts Options, deps Dependencies) (ports.TokenStoreFactory, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return memory.New().Scope, nil
	case DriverRedis:
		if deps.Redis == nil {
			return nil, fmt.Errorf("redis driver requires a redis client")
		}
		return redisstore.NewBackend(deps.Redis, opts.Prefix, opts.TTL).Scope, nil
	case DriverMongo:
		if deps.Mongo == nil {
			return nil, fmt.Errorf("mongo driver requires a database handle")
		}
		return mongostore.NewBackend(deps.Mongo).Scope, nil
	default:
		return nil, fmt.Errorf("unsupported token store driver: %s", driver)
	}
}
