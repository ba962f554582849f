package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/videomaster/checkout-service/internal/catalog"
	"github.com/videomaster/checkout-service/internal/checkout"
	"github.com/videomaster/checkout-service/internal/config"
	"github.com/videomaster/checkout-service/internal/courseapi"
	"github.com/videomaster/checkout-service/internal/httpx"
	kafkax "github.com/videomaster/checkout-service/internal/kafka"
	"github.com/videomaster/checkout-service/internal/postgres"
	"github.com/videomaster/checkout-service/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", cfg.ServiceName)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// catalog DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// session store
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// funnel events
	prod := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicCheckoutFunnel, 1024, log)
	prod.Start(ctx)

	products := &catalog.Repo{DB: db}
	machine := checkout.NewMachine(checkout.MachineConfig{
		Store:    &redisx.SessionStore{R: rdb},
		Backend:  courseapi.New(cfg.CourseAPIURL),
		Products: products,
		Events:   prod,
		Logger:   log,
		Service:  cfg.ServiceName,
	})

	router := httpx.NewRouter(cfg.AllowedOrigins)
	ch := &httpx.CheckoutHandler{Machine: machine, Log: log}
	ch.Register(router)
	cat := &httpx.CatalogHandler{Repo: products, Log: log}
	cat.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()
	cancel()
	prod.WaitClosed()
}
