// Package tradelog persists executed trades and settlement records in
// a pebble keyspace. Trades are keyed by market and taker sequence so a
// bounded reverse scan yields the latest executions.
package tradelog

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"matchbook/domain/engine"
)

var ErrNotFound = errors.New("tradelog: not found")

type Store struct {
	db *pebble.DB
}

func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // we WANT durability
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Trades of one submission share the taker's sequence; the trade id
// suffix keeps their keys distinct.
func tradeKey(market string, seq uint64, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("trade/%s/%020d/%s", market, seq, id))
}

func settleKey(id uuid.UUID) []byte {
	return []byte("settle/" + id.String())
}

func (s *Store) AppendTrade(t *engine.Trade) error {
	return s.db.Set(tradeKey(t.Market, t.SeqID, t.ID), encodeTrade(t), pebble.Sync)
}

func (s *Store) AppendSettlement(r *engine.SettlementRecord) error {
	return s.db.Set(settleKey(r.ID), encodeSettlement(r), pebble.Sync)
}

// RecentTrades returns up to n trades for a market, newest first.
// n <= 0 means all of them.
func (s *Store) RecentTrades(market string, n int) ([]engine.Trade, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("trade/" + market + "/"),
		UpperBound: []byte("trade/" + market + "/~"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []engine.Trade
	for ok := iter.Last(); ok && (n <= 0 || len(out) < n); ok = iter.Prev() {
		t, err := decodeTrade(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, iter.Error()
}

// Settlement returns the settlement record by id.
func (s *Store) Settlement(id uuid.UUID) (*engine.SettlementRecord, error) {
	val, closer, err := s.db.Get(settleKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return decodeSettlement(val)
}
