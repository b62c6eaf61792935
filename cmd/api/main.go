package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/ordersys/go-payment-flow/internal/bus"
	"github.com/ordersys/go-payment-flow/internal/config"
	"github.com/ordersys/go-payment-flow/internal/gateway"
	"github.com/ordersys/go-payment-flow/internal/httpx"
	"github.com/ordersys/go-payment-flow/internal/inventory"
	"github.com/ordersys/go-payment-flow/internal/logx"
	"github.com/ordersys/go-payment-flow/internal/notifier"
	"github.com/ordersys/go-payment-flow/internal/orders"
	"github.com/ordersys/go-payment-flow/internal/postgres"
	"github.com/ordersys/go-payment-flow/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logx.Setup(cfg.ServiceName+"-api", cfg.LogLevel, cfg.LogPretty)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	kbus := bus.NewKafka(cfg.KafkaBrokers)

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Store:   &orders.Repo{DB: db},
		Ledger:  &inventory.PGLedger{DB: db},
		Gateway: gateway.NewStub(cfg.GatewayProvider, cfg.GatewayBaseURL),
		Redis:   rdb,
		Service: cfg.ServiceName + "-api",
	}
	oh.Register(router)

	// pointer consumer: re-queries our own status endpoint for each pointer
	nt := &notifier.Notifier{BaseURL: cfg.StatusBaseURL}
	if err := kbus.Subscribe(orders.TopicStatusUpdated, cfg.NotifierGroup, 2, nt.HandleStatusUpdated); err != nil {
		log.Fatal().Err(err).Msg("notifier subscribe")
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()
	_ = kbus.Close()
}
