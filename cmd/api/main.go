package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/CopperGroup/bytecraft/internal/config"
	"github.com/CopperGroup/bytecraft/internal/database"
	"github.com/CopperGroup/bytecraft/internal/events"
	"github.com/CopperGroup/bytecraft/internal/logger"
	"github.com/CopperGroup/bytecraft/internal/mail"
	"github.com/CopperGroup/bytecraft/internal/metrics"
	"github.com/CopperGroup/bytecraft/internal/novaposhta"
	"github.com/CopperGroup/bytecraft/internal/orders"
	"github.com/CopperGroup/bytecraft/internal/promo"
	"github.com/CopperGroup/bytecraft/internal/shipping"
	"github.com/CopperGroup/bytecraft/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logg := logger.New(logger.Options{
		Service: "bytecraft-api",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logg.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logg.Info("connected to database")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "bytecraft"),
	)
	serverMetrics := metrics.NewServerMetrics(reg)

	carrier := novaposhta.New(cfg.Carrier.APIKey, cfg.Carrier.BaseURL,
		novaposhta.WithHTTPClient(&http.Client{Timeout: cfg.Carrier.Timeout}),
		novaposhta.WithLogger(logg.With("component", "novaposhta")),
		novaposhta.WithObserver(metrics.NewCarrierMetrics(reg)),
	)

	sender, err := mail.NewSMTPSender(cfg.Mail)
	if err != nil {
		logg.Error("create mail sender", "error", err)
		os.Exit(1)
	}
	mailer, err := mail.New(sender, cfg.Mail)
	if err != nil {
		logg.Error("load mail templates", "error", err)
		os.Exit(1)
	}

	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if c, ok := publisher.(io.Closer); ok {
		defer c.Close()
	}

	orderRepo := store.OrderRepo{DB: db}

	srv := &server{
		log:      logg,
		carrier:  carrier,
		orders:   orders.NewService(orderRepo, mailer, publisher, logg.With("component", "orders")),
		invoices: shipping.NewService(carrier, orderRepo, publisher, logg.With("component", "shipping"), cfg.Carrier),
		promos:   promo.NewEngine(store.PromoRepo{DB: db}, mailer, logg.With("component", "promo")),
		catalog:  store.CatalogRepo{DB: db},
		ping:     db.PingContext,
	}

	mux := srv.routes(serverMetrics.Wrap)
	mux.Handle("GET /metrics", metrics.Handler(reg))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info("server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logg.Info("server shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logg.Error("server error", "error", err)
		os.Exit(1)
	}
}
