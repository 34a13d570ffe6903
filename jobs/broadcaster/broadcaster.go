// Package broadcaster drains the durable event outbox to Kafka. It is
// the only writer of outbox state transitions past NEW, so a crash in
// the middle of a publish leaves at worst a SENT entry that gets
// re-driven on the next tick (at-least-once delivery).
package broadcaster

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"matchbook/infra/outbox"
)

const drainInterval = 250 * time.Millisecond

// sentStaleAfter is how long a SENT entry may sit before we assume the
// previous process died mid-publish and send it again.
const sentStaleAfter = 5 * time.Second

// maxPublishRetries is the attempt budget per entry; past it the entry
// is parked as FAILED for operator inspection instead of retrying.
const maxPublishRetries = 10

type Broadcaster struct {
	ob       *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
}

func New(ob *outbox.Outbox, brokers []string, topic string, log *zap.Logger) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		ob:       ob,
		producer: producer,
		topic:    topic,
		log:      log.Named("broadcaster"),
	}, nil
}

func (b *Broadcaster) Start(ctx context.Context) {
	b.log.Info("started", zap.String("topic", b.topic))

	go func() {
		ticker := time.NewTicker(drainInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.drainOnce()
			}
		}
	}()
}

func (b *Broadcaster) drainOnce() {
	if err := b.ob.ScanByState(outbox.StateNew, b.publish); err != nil {
		b.log.Warn("outbox scan failed", zap.Error(err))
	}

	// re-drive entries a previous run marked SENT but never acked
	cutoff := time.Now().Add(-sentStaleAfter).UnixNano()
	err := b.ob.ScanByState(outbox.StateSent, func(rec outbox.Record) error {
		if rec.LastAttempt > cutoff {
			return nil
		}
		return b.publish(rec)
	})
	if err != nil {
		b.log.Warn("outbox resend scan failed", zap.Error(err))
	}
}

// publish walks one entry through SENT -> broker -> ACKED -> deleted.
// A broker error leaves it SENT for the stale resend pass.
func (b *Broadcaster) publish(rec outbox.Record) error {
	if rec.Retries >= maxPublishRetries {
		b.log.Error("retry budget exhausted, parking event",
			zap.String("market", rec.Market),
			zap.Uint64("seq", rec.Seq),
			zap.Uint32("retries", rec.Retries))
		return b.ob.UpdateState(rec, outbox.StateFailed, rec.Retries)
	}

	if err := b.ob.UpdateState(rec, outbox.StateSent, rec.Retries+1); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(rec.Market),
		Value: sarama.ByteEncoder(rec.Payload),
	}
	if _, _, err := b.producer.SendMessage(msg); err != nil {
		b.log.Warn("publish failed",
			zap.String("market", rec.Market),
			zap.Uint64("seq", rec.Seq),
			zap.Error(err))
		return nil // retried on a later tick
	}

	if err := b.ob.UpdateState(rec, outbox.StateAcked, rec.Retries+1); err != nil {
		return err
	}
	return b.ob.Delete(rec)
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
