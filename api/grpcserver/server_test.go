package grpcserver

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"matchbook/api/pb"
	"matchbook/domain/ledger"
	"matchbook/domain/market"
	"matchbook/infra/outbox"
	"matchbook/infra/tradelog"
	"matchbook/service"
)

func newServer(t *testing.T) *Server {
	t.Helper()

	dec := func(s string) decimal.Decimal {
		d, err := decimal.NewFromString(s)
		require.NoError(t, err)
		return d
	}

	reg := market.NewRegistry()
	require.NoError(t, reg.AddAsset(&market.Asset{Symbol: "SOL", Unit: dec("0.001")}))
	require.NoError(t, reg.AddAsset(&market.Asset{Symbol: "USDC", Unit: dec("0.00001")}))
	require.NoError(t, reg.Add(&market.Market{
		Symbol:      "SOL-USDC",
		BaseAsset:   "SOL",
		QuoteAsset:  "USDC",
		TickSize:    dec("0.01"),
		LotSize:     dec("0.001"),
		MinOrderQty: 1,
	}))

	trades, err := tradelog.Open(t.TempDir())
	require.NoError(t, err)
	ob, err := outbox.Open(t.TempDir())
	require.NoError(t, err)

	x := service.New(reg, ledger.New(), trades, ob, zap.NewNop())
	x.Start()
	t.Cleanup(func() {
		x.Close()
		_ = trades.Close()
		_ = ob.Close()
	})
	return NewServer(x, zap.NewNop())
}

// amounts come back with trailing zeros, so compare as decimals
func assertDec(t *testing.T, want, got string) {
	t.Helper()
	w, err := decimal.NewFromString(want)
	require.NoError(t, err)
	g, err := decimal.NewFromString(got)
	require.NoError(t, err)
	assert.True(t, w.Equal(g), "want %s, got %s", want, got)
}

func TestDepositAndBalance(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	resp, err := s.Deposit(ctx, &pb.DepositRequest{UserId: "alice", Asset: "USDC", Amount: "500"})
	require.NoError(t, err)
	assertDec(t, "500", resp.Balance.Available)
	assertDec(t, "0", resp.Balance.Locked)

	bal, err := s.GetBalance(ctx, &pb.GetBalanceRequest{UserId: "alice", Asset: "USDC"})
	require.NoError(t, err)
	assertDec(t, "500", bal.Balance.Available)

	_, err = s.Deposit(ctx, &pb.DepositRequest{UserId: "alice", Asset: "DOGE", Amount: "1"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = s.Deposit(ctx, &pb.DepositRequest{UserId: "alice", Asset: "USDC", Amount: "0.000001"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestPlaceMatchAndQuery(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	_, err := s.Deposit(ctx, &pb.DepositRequest{UserId: "alice", Asset: "USDC", Amount: "500"})
	require.NoError(t, err)
	_, err = s.Deposit(ctx, &pb.DepositRequest{UserId: "bob", Asset: "SOL", Amount: "5"})
	require.NoError(t, err)

	placed, err := s.PlaceOrder(ctx, &pb.PlaceOrderRequest{
		UserId: "alice", Market: "SOL-USDC", Side: "buy", Type: "limit", Price: "100", Qty: "5",
	})
	require.NoError(t, err)
	assert.Equal(t, "open", placed.Order.Status)
	assertDec(t, "100", placed.Order.Price)

	book, err := s.GetOrderBook(ctx, &pb.GetOrderBookRequest{Market: "SOL-USDC", Depth: 10})
	require.NoError(t, err)
	require.Len(t, book.Bids, 1)
	assertDec(t, "100", book.Bids[0].Price)
	assertDec(t, "5", book.Bids[0].Qty)

	matched, err := s.PlaceOrder(ctx, &pb.PlaceOrderRequest{
		UserId: "bob", Market: "SOL-USDC", Side: "sell", Type: "limit", Price: "100", Qty: "5",
	})
	require.NoError(t, err)
	assert.Equal(t, "filled", matched.Order.Status)
	require.Len(t, matched.Trades, 1)
	assertDec(t, "100", matched.Trades[0].Price)
	assertDec(t, "5", matched.Trades[0].Qty)

	got, err := s.GetOrder(ctx, &pb.GetOrderRequest{OrderId: placed.Order.Id})
	require.NoError(t, err)
	assert.Equal(t, "filled", got.Order.Status)

	trades, err := s.GetTrades(ctx, &pb.GetTradesRequest{Market: "SOL-USDC", Limit: 10})
	require.NoError(t, err)
	require.Len(t, trades.Trades, 1)

	bal, err := s.GetBalance(ctx, &pb.GetBalanceRequest{UserId: "bob", Asset: "USDC"})
	require.NoError(t, err)
	assertDec(t, "500", bal.Balance.Available)
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	// no funds
	_, err := s.PlaceOrder(ctx, &pb.PlaceOrderRequest{
		UserId: "alice", Market: "SOL-USDC", Side: "buy", Type: "limit", Price: "100", Qty: "5",
	})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	// unknown market
	_, err = s.PlaceOrder(ctx, &pb.PlaceOrderRequest{
		UserId: "alice", Market: "ETH-USDC", Side: "buy", Type: "limit", Price: "100", Qty: "5",
	})
	assert.Equal(t, codes.NotFound, status.Code(err))

	// bad side, bad price alignment, bad uuid
	_, err = s.PlaceOrder(ctx, &pb.PlaceOrderRequest{
		UserId: "alice", Market: "SOL-USDC", Side: "long", Type: "limit", Price: "100", Qty: "5",
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.PlaceOrder(ctx, &pb.PlaceOrderRequest{
		UserId: "alice", Market: "SOL-USDC", Side: "buy", Type: "limit", Price: "100.001", Qty: "5",
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.CancelOrder(ctx, &pb.CancelOrderRequest{OrderId: "nope", UserId: "alice"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.GetSettlement(ctx, &pb.GetSettlementRequest{SettlementId: "00000000-0000-0000-0000-000000000000"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestCancelOwnership(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	_, err := s.Deposit(ctx, &pb.DepositRequest{UserId: "alice", Asset: "USDC", Amount: "500"})
	require.NoError(t, err)

	placed, err := s.PlaceOrder(ctx, &pb.PlaceOrderRequest{
		UserId: "alice", Market: "SOL-USDC", Side: "buy", Type: "limit", Price: "100", Qty: "5",
	})
	require.NoError(t, err)

	_, err = s.CancelOrder(ctx, &pb.CancelOrderRequest{OrderId: placed.Order.Id, UserId: "mallory"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	resp, err := s.CancelOrder(ctx, &pb.CancelOrderRequest{OrderId: placed.Order.Id, UserId: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", resp.Order.Status)
}

func TestGetMarkets(t *testing.T) {
	s := newServer(t)

	resp, err := s.GetMarkets(context.Background(), &pb.GetMarketsRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Markets, 1)
	assert.Equal(t, "SOL-USDC", resp.Markets[0].Symbol)
	assert.Equal(t, "SOL", resp.Markets[0].BaseAsset)
	assertDec(t, "0.01", resp.Markets[0].TickSize)
}
