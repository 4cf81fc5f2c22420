package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/testgen-workbench/internal/config"
	"github.com/noah-isme/testgen-workbench/internal/events"
	"github.com/noah-isme/testgen-workbench/internal/extraction"
	"github.com/noah-isme/testgen-workbench/internal/handler"
	"github.com/noah-isme/testgen-workbench/internal/middleware"
	"github.com/noah-isme/testgen-workbench/internal/router"
	"github.com/noah-isme/testgen-workbench/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).Level(cfg.ZerologLevel()).With().Timestamp().Str("service", cfg.AppName).Logger()

	client, err := extraction.NewClient(cfg.ExtractionBaseURL, logger)
	if err != nil {
		log.Fatalf("failed to create extraction client: %v", err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.Connect(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := service.NewSessionRegistry(client, publisher, cfg.SessionTTL, logger)
	registry.Start(ctx)

	workbenchHandler := handler.NewWorkbenchHandler(registry, cfg.UploadAccept, cfg.UploadMaxBytes(), logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    cfg.UploadMaxBytes() + 64*1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:    &logger,
		AccessLog: cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		WorkbenchHandler:   workbenchHandler,
		SubmitLimiter:      middleware.RateLimit("submit", cfg.SubmitRateLimit, time.Minute),
		ExtractionEndpoint: client.Endpoint(),
	})

	logger.Info().
		Str("address", cfg.HTTPAddress()).
		Str("extraction_endpoint", client.Endpoint()).
		Msg("workbench starting")

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
