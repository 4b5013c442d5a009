package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/medclinic/booking-portal/internal/api/middleware"
	"github.com/medclinic/booking-portal/internal/devbackend"
	"github.com/medclinic/booking-portal/internal/infrastructure/config"
	"github.com/medclinic/booking-portal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	bootLog := logger.New(logger.Options{Service: "clinic-devbackend"})
	cfg := config.LoadDevBackend(bootLog)

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true, Service: "clinic-devbackend"})

	dir := devbackend.NewDirectory(0)
	if err := dir.Seed(ctx, devbackend.DefaultSeeds); err != nil {
		log.Fatal().Err(err).Msg("failed to seed accounts")
	}
	for _, s := range devbackend.DefaultSeeds {
		log.Info().Str("email", s.Email).Str("role", string(s.Role)).Msg("seeded account")
	}

	srv := devbackend.NewServer(dir, devbackend.NewIssuer(cfg.JWTSecret, cfg.TokenTTL))
	e := srv.Router(middleware.RequestLogger(log))
	e.HidePort = true

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Msg("dev backend listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("dev backend stopped with error")
		os.Exit(1)
	}
}
