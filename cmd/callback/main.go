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
	"github.com/ordersys/go-payment-flow/internal/httpx"
	"github.com/ordersys/go-payment-flow/internal/ingress"
	"github.com/ordersys/go-payment-flow/internal/logx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logx.Setup(cfg.ServiceName+"-callback", cfg.LogLevel, cfg.LogPretty)

	kbus := bus.NewKafka(cfg.KafkaBrokers)

	router := httpx.NewRouter()
	ih := &ingress.Handler{
		Bus:     kbus,
		Service: cfg.ServiceName + "-callback",
	}
	ih.Register(router)

	srv := &http.Server{Addr: cfg.CallbackAddr, Handler: router}
	go func() {
		log.Info().Str("addr", cfg.CallbackAddr).Msg("callback ingress listening")
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
	_ = kbus.Close() // flush pending callback publishes
}
