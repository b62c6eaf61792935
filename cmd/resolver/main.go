package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/ordersys/go-payment-flow/internal/bus"
	"github.com/ordersys/go-payment-flow/internal/config"
	"github.com/ordersys/go-payment-flow/internal/gateway"
	"github.com/ordersys/go-payment-flow/internal/inventory"
	"github.com/ordersys/go-payment-flow/internal/logx"
	"github.com/ordersys/go-payment-flow/internal/orders"
	"github.com/ordersys/go-payment-flow/internal/postgres"
	"github.com/ordersys/go-payment-flow/internal/redisx"
	"github.com/ordersys/go-payment-flow/internal/resolver"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	service := cfg.ServiceName + "-resolver"
	logx.Setup(service, cfg.LogLevel, cfg.LogPretty)

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

	svc := &resolver.Service{
		Store:   &orders.Repo{DB: db},
		Ledger:  &inventory.PGLedger{DB: db},
		Gateway: gateway.NewStub(cfg.GatewayProvider, cfg.GatewayBaseURL),
		Bus:     kbus,
		Dead:    &resolver.BusDeadLetter{Bus: kbus, Consumer: service},
		Dedup:   &redisx.Deduper{R: rdb, Service: service},
		Service: service,
	}

	if err := kbus.Subscribe(orders.TopicPaymentCallback, cfg.ResolverGroup, cfg.ResolverWorkers, svc.HandleCallback); err != nil {
		log.Fatal().Err(err).Msg("resolver subscribe")
	}
	log.Info().Str("group", cfg.ResolverGroup).Int("workers", cfg.ResolverWorkers).
		Str("topic", orders.TopicPaymentCallback).Msg("resolver consuming")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down resolver...")
	cancel()
	_ = kbus.Close()
}
