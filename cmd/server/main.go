package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"matchbook/api/grpcserver"
	"matchbook/domain/ledger"
	"matchbook/domain/market"
	"matchbook/infra/kafka"
	"matchbook/infra/outbox"
	"matchbook/infra/tradelog"
	"matchbook/jobs/broadcaster"
	"matchbook/jobs/feed"
	"matchbook/service"
)

func main() {
	cfg := loadConfig()

	log := newLogger(cfg.LogLevel)
	defer log.Sync()

	// ---------------- Markets ----------------

	reg := market.NewRegistry()
	if err := seedMarkets(reg); err != nil {
		log.Fatal("market seeding failed", zap.Error(err))
	}

	// ---------------- Stores ----------------

	trades, err := tradelog.Open(filepath.Join(cfg.DataDir, "tradelog"))
	if err != nil {
		log.Fatal("trade log init failed", zap.Error(err))
	}
	defer trades.Close()

	ob, err := outbox.Open(filepath.Join(cfg.DataDir, "outbox"))
	if err != nil {
		log.Fatal("outbox init failed", zap.Error(err))
	}
	defer ob.Close()

	// ---------------- Service ----------------

	x := service.New(reg, ledger.New(), trades, ob, log)
	x.Start()
	defer x.Close()

	// ---------------- Background jobs ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bc, err := broadcaster.New(ob, cfg.KafkaBrokers, cfg.EventsTopic, log)
	if err != nil {
		log.Fatal("broadcaster init failed", zap.Error(err))
	}
	defer bc.Close()
	bc.Start(ctx)

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.FeedTopic)
	defer producer.Close()
	feed.New(x, producer, cfg.FeedInterval, log).Start(ctx)

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatal("listen failed", zap.Error(err))
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		cancel()
	}()

	if err := grpcserver.NewServer(x, log).Run(ctx, lis); err != nil {
		log.Fatal("grpc server failed", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	log, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return log
}

// seedMarkets registers the instruments this deployment trades.
func seedMarkets(reg *market.Registry) error {
	dec := decimal.RequireFromString

	assets := []*market.Asset{
		{Symbol: "SOL", Unit: dec("0.001")},
		{Symbol: "ETH", Unit: dec("0.0001")},
		{Symbol: "USDC", Unit: dec("0.00001")},
	}
	for _, a := range assets {
		if err := reg.AddAsset(a); err != nil {
			return err
		}
	}

	markets := []*market.Market{
		{
			Symbol:      "SOL-USDC",
			BaseAsset:   "SOL",
			QuoteAsset:  "USDC",
			TickSize:    dec("0.01"),
			LotSize:     dec("0.001"),
			MinOrderQty: 1,
			MakerFeeBps: 10,
			TakerFeeBps: 20,
		},
		{
			Symbol:      "ETH-USDC",
			BaseAsset:   "ETH",
			QuoteAsset:  "USDC",
			TickSize:    dec("0.1"),
			LotSize:     dec("0.0001"),
			MinOrderQty: 1,
			MakerFeeBps: 10,
			TakerFeeBps: 20,
		},
	}
	for _, m := range markets {
		if err := reg.Add(m); err != nil {
			return err
		}
	}
	return nil
}
