// Package app assembles the portal from configuration: token store driver,
// per-browser sessions, bootstrap workers and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	gomongo "go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/medclinic/booking-portal/internal/api"
	"github.com/medclinic/booking-portal/internal/api/handler"
	"github.com/medclinic/booking-portal/internal/api/metrics"
	"github.com/medclinic/booking-portal/internal/core/ports"
	"github.com/medclinic/booking-portal/internal/core/service"
	"github.com/medclinic/booking-portal/internal/infrastructure/apiclient"
	"github.com/medclinic/booking-portal/internal/infrastructure/config"
	"github.com/medclinic/booking-portal/internal/infrastructure/db"
	mongostore "github.com/medclinic/booking-portal/internal/infrastructure/db/mongo"
	redisstore "github.com/medclinic/booking-portal/internal/infrastructure/db/redis"
	"github.com/medclinic/booking-portal/internal/infrastructure/queue"
)

const shutdownTimeout = 10 * time.Second

// SessionDeps are the inputs shared by every browser session.
type SessionDeps struct {
	Stores           ports.TokenStoreFactory
	Backend          apiclient.Config
	BootstrapTimeout time.Duration
	HTTPClient       *http.Client
	Log              zerolog.Logger
}

// NewSessionBuilder returns the builder the registry uses for a browser seen
// for the first time. The gateway client and the auth context share one
// store; a 401 on any call expires the in-memory session as well.
func NewSessionBuilder(deps SessionDeps) service.SessionBuilder {
	return func(browserID string) *service.Session {
		log := deps.Log.With().Str("browser_id", browserID).Logger()
		store := deps.Stores(browserID)

		var opts []apiclient.Option
		if deps.HTTPClient != nil {
			opts = append(opts, apiclient.WithHTTPClient(deps.HTTPClient))
		}
		client := apiclient.New(deps.Backend, store, log, opts...)

		auth := service.NewAuthContext(store, client, log,
			service.WithBootstrapTimeout(deps.BootstrapTimeout),
			service.WithOutcome(metrics.Observer{}.Bootstrap),
		)
		client.OnUnauthorized(auth.Expire)

		return &service.Session{ID: browserID, Auth: auth, Backend: client}
	}
}

// Portal is the assembled server.
type Portal struct {
	Echo       *echo.Echo
	Registry   *service.SessionRegistry
	Dispatcher *queue.Dispatcher

	port    string
	log     zerolog.Logger
	closers []func(context.Context) error
}

// New connects the configured token store driver and wires the portal.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Portal, error) {
	p := &Portal{port: cfg.Port, log: log}

	checks := map[string]handler.Check{
		"backend": backendCheck(cfg.Backend.URL),
	}

	var deps db.Dependencies
	switch cfg.TokenStore.Driver {
	case db.DriverRedis:
		rdb, err := redisstore.Connect(ctx, redisstore.Config{
			URL:      cfg.Redis.URL,
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		deps.Redis = rdb
		checks["redis"] = redisCheck(rdb)
		p.closers = append(p.closers, func(context.Context) error { return rdb.Close() })
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")

	case db.DriverMongo:
		client, database, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		})
		if err != nil {
			return nil, err
		}
		if err := mongostore.NewBackend(database).EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		deps.Mongo = database
		checks["mongodb"] = mongoCheck(client)
		p.closers = append(p.closers, client.Disconnect)
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")
	}

	stores, err := db.NewTokenStoreFactory(db.Options{
		Driver: cfg.TokenStore.Driver,
		Prefix: cfg.TokenStore.Prefix,
		TTL:    cfg.TokenStore.TTL,
	}, deps)
	if err != nil {
		p.close(ctx)
		return nil, err
	}

	p.Dispatcher = queue.NewDispatcher(cfg.Session.BootstrapWorkers, log)
	p.Registry = service.NewSessionRegistry(
		NewSessionBuilder(SessionDeps{
			Stores: stores,
			Backend: apiclient.Config{
				BaseURL: cfg.Backend.URL,
				MePath:  cfg.Backend.MePath,
				Timeout: cfg.Backend.Timeout,
			},
			BootstrapTimeout: cfg.Session.BootstrapTimeout,
			Log:              log,
		}),
		p.Dispatcher,
		log,
		service.WithIdleTTL(cfg.Session.IdleTTL),
		service.WithObserver(metrics.Observer{}),
	)

	p.Echo = api.NewRouter(api.RouterDeps{
		Sessions:     p.Registry,
		CookieSecure: cfg.Session.CookieSecure,
		Checks:       checks,
		Log:          log,
	})
	p.Echo.HidePort = true

	return p, nil
}

// Run serves until ctx is cancelled, then shuts the server down and releases
// store connections.
func (p *Portal) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	p.Dispatcher.Start(gCtx)
	g.Go(func() error {
		p.Registry.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		addr := ":" + p.port
		p.log.Info().Str("addr", addr).Msg("portal listening")
		if err := p.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		p.log.Info().Msg("shutting down portal...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := p.Echo.Shutdown(shutdownCtx)
		p.close(shutdownCtx)
		return err
	})

	return g.Wait()
}

func (p *Portal) close(ctx context.Context) {
	for _, c := range p.closers {
		if err := c(ctx); err != nil {
			p.log.Warn().Err(err).Msg("failed to close store connection")
		}
	}
	p.closers = nil
}

func redisCheck(rdb *goredis.Client) handler.Check {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

func mongoCheck(client *gomongo.Client) handler.Check {
	return func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	}
}

// backendCheck treats any answer below 500 from the backend's health path as
// reachable.
func backendCheck(baseURL string) handler.Check {
	target := strings.TrimRight(baseURL, "/") + "/health"
	hc := &http.Client{}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		resp, err := hc.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("backend health returned %d", resp.StatusCode)
		}
		return nil
	}
}
