// Package feed publishes periodic order book snapshots for market data
// consumers. Snapshots are best effort: a missed tick is recovered by
// the next one, so nothing here touches the outbox.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"matchbook/domain/orderbook"
	"matchbook/infra/kafka"
)

const snapshotDepth = 20

// Snapshotter is the query surface the feed reads from.
type Snapshotter interface {
	Markets() []string
	OrderBook(ctx context.Context, market string, depth int) (bids, asks []orderbook.Level, err error)
}

type snapshot struct {
	Market string            `json:"market"`
	Time   time.Time         `json:"time"`
	Bids   []orderbook.Level `json:"bids"`
	Asks   []orderbook.Level `json:"asks"`
}

type Feed struct {
	src      Snapshotter
	producer *kafka.Producer
	interval time.Duration
	log      *zap.Logger
}

func New(src Snapshotter, producer *kafka.Producer, interval time.Duration, log *zap.Logger) *Feed {
	return &Feed{
		src:      src,
		producer: producer,
		interval: interval,
		log:      log.Named("feed"),
	}
}

func (f *Feed) Start(ctx context.Context) {
	f.log.Info("started", zap.Duration("interval", f.interval))

	go func() {
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.publishOnce(ctx)
			}
		}
	}()
}

func (f *Feed) publishOnce(ctx context.Context) {
	for _, market := range f.src.Markets() {
		bids, asks, err := f.src.OrderBook(ctx, market, snapshotDepth)
		if err != nil {
			f.log.Warn("snapshot failed", zap.String("market", market), zap.Error(err))
			continue
		}

		payload, err := json.Marshal(snapshot{
			Market: market,
			Time:   time.Now().UTC(),
			Bids:   bids,
			Asks:   asks,
		})
		if err != nil {
			f.log.Warn("snapshot encode failed", zap.String("market", market), zap.Error(err))
			continue
		}

		if err := f.producer.Send(ctx, []byte(market), payload); err != nil {
			f.log.Warn("snapshot publish failed", zap.String("market", market), zap.Error(err))
		}
	}
}
