package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"booknow/internal/api"
	"booknow/internal/cache"
	"booknow/internal/config"
	"booknow/internal/consumers"
	"booknow/internal/external"
	"booknow/internal/flow"
	"booknow/internal/logger"
	"booknow/internal/messaging"
	"booknow/internal/metrics"
	"booknow/internal/session"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	slog.Info("Starting booking gateway...", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	m := metrics.New()
	bookingClient := external.NewBookingClient(cfg.BookingAPI)

	store, err := cache.NewStore(cfg.Cache)
	if err != nil {
		logger.Fatal("Failed to connect to Valkey", "error", err, "addr", cfg.Cache.Addr)
	}
	defer store.Close()

	deps := flow.Deps{
		API:      bookingClient,
		Clock:    clock,
		Recorder: m,
	}

	var natsClient *messaging.NATSClient
	if cfg.NATS.Enabled {
		natsClient, err = messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", "error", err, "url", cfg.NATS.URL)
		}
		defer natsClient.Close()
		deps.Publisher = natsClient
	} else {
		slog.Warn("NATS disabled, seat updates from other users will not be pushed")
	}

	sessions := session.NewManager(ctx, cfg.Sessions, cfg.Flow, deps, m)
	defer sessions.CloseAll()

	var consumerService *consumers.ConsumerService
	if natsClient != nil {
		consumerService = consumers.NewConsumerService(natsClient, sessions)
		if err := consumerService.Start(); err != nil {
			logger.Fatal("Failed to start consumers", "error", err)
		}
	}

	server := api.NewServer(cfg, api.Deps{
		Sessions: sessions,
		Catalog:  cache.NewEventsCache(store, bookingClient, clock, cfg.Cache.EventsTTL),
		Bookings: bookingClient,
		Drafts:   cache.NewDrafts(store, clock, cfg.Cache.DraftTTL),
		Metrics:  m,
		Cache:    store,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Run)

	g.Go(func() error {
		sessions.Run(gctx)
		return nil
	})

	// Запускаем pprof сервер если включен
	if cfg.PprofEnabled {
		pprofServer := &http.Server{
			Addr:              ":" + cfg.PprofPort,
			Handler:           http.DefaultServeMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.Info("Starting pprof server", "port", cfg.PprofPort)
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return pprofServer.Close()
		})
	}

	// Graceful shutdown по сигналу или падению одной из горутин
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gateway...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if consumerService != nil {
			if err := consumerService.Shutdown(shutdownCtx); err != nil {
				slog.Error("Error during consumers shutdown", "error", err)
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Gateway stopped with error", "error", err)
		return
	}
	slog.Info("Gateway stopped")
}
