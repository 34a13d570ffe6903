package tradelog

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/domain/engine"
	"matchbook/domain/orderbook"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTrade(seq uint64) *engine.Trade {
	return &engine.Trade{
		ID:           uuid.New(),
		Market:       "SOL-USDC",
		MakerOrderID: uuid.New(),
		TakerOrderID: uuid.New(),
		MakerUserID:  "maker",
		TakerUserID:  "taker",
		Price:        10000,
		Qty:          250,
		Side:         orderbook.Bid,
		SeqID:        seq,
		Time:         time.Unix(0, 1700000000000000000),
	}
}

func TestTradeRoundTrip(t *testing.T) {
	s := openStore(t)

	in := sampleTrade(7)
	require.NoError(t, s.AppendTrade(in))

	got, err := s.RecentTrades("SOL-USDC", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, in.ID, got[0].ID)
	assert.Equal(t, in.MakerOrderID, got[0].MakerOrderID)
	assert.Equal(t, in.TakerUserID, got[0].TakerUserID)
	assert.Equal(t, in.Price, got[0].Price)
	assert.Equal(t, in.Qty, got[0].Qty)
	assert.Equal(t, in.Side, got[0].Side)
	assert.Equal(t, in.SeqID, got[0].SeqID)
	assert.Equal(t, in.Time.UnixNano(), got[0].Time.UnixNano())
}

func TestRecentTradesNewestFirst(t *testing.T) {
	s := openStore(t)

	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, s.AppendTrade(sampleTrade(seq)))
	}

	got, err := s.RecentTrades("SOL-USDC", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(5), got[0].SeqID)
	assert.Equal(t, uint64(4), got[1].SeqID)
	assert.Equal(t, uint64(3), got[2].SeqID)

	// other markets do not bleed into the scan
	other, err := s.RecentTrades("ETH-USDC", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSettlementRoundTrip(t *testing.T) {
	s := openStore(t)

	in := &engine.SettlementRecord{
		ID:      uuid.New(),
		TradeID: uuid.New(),
		Market:  "SOL-USDC",
		Legs: [2]engine.SettlementLeg{
			{Asset: "SOL", FromUser: "bob", ToUser: "alice", Amount: 5000},
			{Asset: "USDC", FromUser: "alice", ToUser: "bob", Amount: 50000000},
		},
		SeqID: 42,
		Time:  time.Unix(0, 1700000000000000000),
	}
	require.NoError(t, s.AppendSettlement(in))

	got, err := s.Settlement(in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.TradeID, got.TradeID)
	assert.Equal(t, in.Legs, got.Legs)
	assert.Equal(t, in.SeqID, got.SeqID)

	_, err = s.Settlement(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecodeRejectsCorruption(t *testing.T) {
	enc := encodeTrade(sampleTrade(1))

	_, err := decodeTrade(enc[:5])
	assert.ErrorIs(t, err, ErrCorruptRecord)

	enc[len(enc)-1] ^= 0xff
	_, err = decodeTrade(enc)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}
