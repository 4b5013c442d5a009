package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medclinic/booking-portal/internal/app"
	"github.com/medclinic/booking-portal/internal/infrastructure/config"
	"github.com/medclinic/booking-portal/pkg/logger"
)

func main() {
	// Docker healthcheck for distroless images.
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		if err := runHealthcheck(); err != nil {
			fmt.Fprintf(os.Stderr, "healthcheck failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	bootLog := logger.New(logger.Options{Service: "booking-portal"})
	cfg := config.Load(bootLog)

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "booking-portal",
	})
	log.Info().
		Str("backend_url", cfg.Backend.URL).
		Str("token_store", cfg.TokenStore.Driver).
		Dur("bootstrap_timeout", cfg.Session.BootstrapTimeout).
		Msg("configuration loaded")

	portal, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to assemble portal")
	}

	if err := portal.Run(ctx); err != nil {
		log.Error().Err(err).Msg("portal stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("portal exited properly")
}

func runHealthcheck() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%s/health", port))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status: %d", resp.StatusCode)
	}
	return nil
}
