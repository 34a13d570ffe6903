package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"matchbook/domain/ledger"
	"matchbook/domain/market"
	"matchbook/domain/orderbook"
)

// The fixture's unit bridges are 1:1, so in these tests one lot is one
// base ledger unit and a fill of ticks×lots costs ticks*lots quote units.
func newEngine(t *testing.T) (*Engine, *ledger.Ledger) {
	t.Helper()

	dec := func(s string) decimal.Decimal {
		d, err := decimal.NewFromString(s)
		require.NoError(t, err)
		return d
	}

	r := market.NewRegistry()
	require.NoError(t, r.AddAsset(&market.Asset{Symbol: "SOL", Unit: dec("0.001")}))
	require.NoError(t, r.AddAsset(&market.Asset{Symbol: "USDC", Unit: dec("0.00001")}))
	m := &market.Market{
		Symbol:      "SOL-USDC",
		BaseAsset:   "SOL",
		QuoteAsset:  "USDC",
		TickSize:    dec("0.01"),
		LotSize:     dec("0.001"),
		MinOrderQty: 1,
	}
	require.NoError(t, r.Add(m))

	lg := ledger.New()
	return New(m, lg, zap.NewNop()), lg
}

func buy(user string, price, qty int64) PlaceOrder {
	return PlaceOrder{UserID: user, Side: orderbook.Bid, Type: orderbook.Limit, Price: price, Qty: qty}
}

func sell(user string, price, qty int64) PlaceOrder {
	return PlaceOrder{UserID: user, Side: orderbook.Ask, Type: orderbook.Limit, Price: price, Qty: qty}
}

func TestSubmitLocksQuoteForBuy(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("alice", "USDC", 1000))

	res, err := e.Submit(buy("alice", 100, 5))
	require.NoError(t, err)
	assert.Equal(t, orderbook.Open, res.Order.Status)
	assert.Empty(t, res.Trades)

	b := lg.Read("alice", "USDC")
	assert.Equal(t, int64(500), b.Available)
	assert.Equal(t, int64(500), b.Locked)

	require.Len(t, res.Events, 2)
	assert.Equal(t, EventOrderAccepted, res.Events[0].Type)
	assert.Equal(t, EventBalanceChanged, res.Events[1].Type)
}

func TestSubmitRejectsInsufficientFunds(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("alice", "USDC", 499))

	_, err := e.Submit(buy("alice", 100, 5))
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// nothing rested, nothing locked
	bids, asks := e.Depth(0)
	assert.Empty(t, bids)
	assert.Empty(t, asks)
	assert.Equal(t, int64(499), lg.Read("alice", "USDC").Available)
}

func TestSubmitValidation(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("alice", "USDC", 1000))

	_, err := e.Submit(buy("alice", 100, 0))
	assert.ErrorIs(t, err, orderbook.ErrInvalidOrder)

	_, err = e.Submit(buy("alice", 0, 5))
	assert.ErrorIs(t, err, orderbook.ErrInvalidOrder)

	_, err = e.Submit(PlaceOrder{UserID: "alice", Side: orderbook.Bid, Type: orderbook.Market, Qty: 5})
	assert.ErrorIs(t, err, orderbook.ErrInvalidOrder)

	_, err = e.Submit(PlaceOrder{Side: orderbook.Bid, Type: orderbook.Limit, Price: 100, Qty: 5})
	assert.ErrorIs(t, err, orderbook.ErrInvalidOrder)
}

func TestFullMatchSettlesBothLegs(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("alice", "USDC", 1000))
	require.NoError(t, lg.Deposit("bob", "SOL", 5))

	_, err := e.Submit(buy("alice", 100, 5))
	require.NoError(t, err)

	res, err := e.Submit(sell("bob", 100, 5))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(100), res.Trades[0].Price)
	assert.Equal(t, int64(5), res.Trades[0].Qty)
	assert.Equal(t, "alice", res.Trades[0].MakerUserID)
	assert.Equal(t, "bob", res.Trades[0].TakerUserID)
	assert.Equal(t, orderbook.Filled, res.Order.Status)

	assert.Equal(t, ledger.Balance{Available: 5}, lg.Read("alice", "SOL"))
	assert.Equal(t, ledger.Balance{Available: 500}, lg.Read("alice", "USDC"))
	assert.Equal(t, ledger.Balance{Available: 500}, lg.Read("bob", "USDC"))
	assert.Equal(t, ledger.Balance{}, lg.Read("bob", "SOL"))

	require.Len(t, res.Settlements, 1)
	legs := res.Settlements[0].Legs
	assert.Equal(t, SettlementLeg{Asset: "SOL", FromUser: "bob", ToUser: "alice", Amount: 5}, legs[0])
	assert.Equal(t, SettlementLeg{Asset: "USDC", FromUser: "alice", ToUser: "bob", Amount: 500}, legs[1])

	// book fully drained
	assert.Equal(t, 0, e.Len())
}

func TestTakerPaysMakerPrice(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("carol", "SOL", 3))
	require.NoError(t, lg.Deposit("dave", "USDC", 1000))

	_, err := e.Submit(sell("carol", 99, 3))
	require.NoError(t, err)

	res, err := e.Submit(buy("dave", 100, 2))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(99), res.Trades[0].Price)

	// locked 200 at the limit, paid 198 at the maker price, improvement released
	d := lg.Read("dave", "USDC")
	assert.Equal(t, int64(802), d.Available)
	assert.Equal(t, int64(0), d.Locked)
	assert.Equal(t, int64(198), lg.Read("carol", "USDC").Available)

	// maker keeps 1 lot resting
	c := lg.Read("carol", "SOL")
	assert.Equal(t, int64(1), c.Locked)
}

func TestPricePriorityBeforeTime(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("a", "SOL", 2))
	require.NoError(t, lg.Deposit("b", "SOL", 2))
	require.NoError(t, lg.Deposit("t", "USDC", 1000))

	_, err := e.Submit(sell("a", 101, 2))
	require.NoError(t, err)
	_, err = e.Submit(sell("b", 100, 2))
	require.NoError(t, err)

	res, err := e.Submit(buy("t", 102, 3))
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, "b", res.Trades[0].MakerUserID)
	assert.Equal(t, int64(100), res.Trades[0].Price)
	assert.Equal(t, "a", res.Trades[1].MakerUserID)
	assert.Equal(t, int64(101), res.Trades[1].Price)
}

func TestTimePriorityWithinLevel(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("first", "SOL", 2))
	require.NoError(t, lg.Deposit("second", "SOL", 2))
	require.NoError(t, lg.Deposit("t", "USDC", 1000))

	r1, err := e.Submit(sell("first", 100, 2))
	require.NoError(t, err)
	_, err = e.Submit(sell("second", 100, 2))
	require.NoError(t, err)

	res, err := e.Submit(buy("t", 100, 3))
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, r1.Order.ID, res.Trades[0].MakerOrderID)
	assert.Equal(t, int64(2), res.Trades[0].Qty)
	assert.Equal(t, "second", res.Trades[1].MakerUserID)
	assert.Equal(t, int64(1), res.Trades[1].Qty)
}

func TestCancelReleasesLock(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("alice", "USDC", 1000))

	res, err := e.Submit(buy("alice", 100, 5))
	require.NoError(t, err)

	_, err = e.Cancel(res.Order.ID, "mallory")
	assert.ErrorIs(t, err, ErrNotOwner)

	cres, err := e.Cancel(res.Order.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, orderbook.Cancelled, cres.Order.Status)
	assert.Equal(t, ledger.Balance{Available: 1000}, lg.Read("alice", "USDC"))

	_, err = e.Cancel(res.Order.ID, "alice")
	assert.ErrorIs(t, err, orderbook.ErrOrderNotFound)
}

func TestCancelFilledOrderNotFound(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("alice", "USDC", 500))
	require.NoError(t, lg.Deposit("bob", "SOL", 5))

	res, err := e.Submit(buy("alice", 100, 5))
	require.NoError(t, err)
	_, err = e.Submit(sell("bob", 100, 5))
	require.NoError(t, err)

	_, err = e.Cancel(res.Order.ID, "alice")
	assert.ErrorIs(t, err, orderbook.ErrOrderNotFound)
}

func TestCancelPartialReleasesRemainder(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("alice", "USDC", 500))
	require.NoError(t, lg.Deposit("bob", "SOL", 2))

	res, err := e.Submit(buy("alice", 100, 5))
	require.NoError(t, err)
	_, err = e.Submit(sell("bob", 100, 2))
	require.NoError(t, err)

	cres, err := e.Cancel(res.Order.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cres.Order.Filled)

	// paid 200 for the fill, the remaining 300 lock comes back
	a := lg.Read("alice", "USDC")
	assert.Equal(t, int64(300), a.Available)
	assert.Equal(t, int64(0), a.Locked)
}

func TestIOCCancelsRemainder(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("maker", "SOL", 2))
	require.NoError(t, lg.Deposit("taker", "USDC", 1000))

	_, err := e.Submit(sell("maker", 100, 2))
	require.NoError(t, err)

	res, err := e.Submit(PlaceOrder{
		UserID: "taker", Side: orderbook.Bid, Type: orderbook.IOC, Price: 100, Qty: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, orderbook.Cancelled, res.Order.Status)
	assert.Equal(t, int64(2), res.Order.Filled)
	require.Len(t, res.Trades, 1)

	b := lg.Read("taker", "USDC")
	assert.Equal(t, int64(800), b.Available)
	assert.Equal(t, int64(0), b.Locked)
	assert.Equal(t, 0, e.Len())
}

func TestFOKAllOrNothing(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("maker", "SOL", 2))
	require.NoError(t, lg.Deposit("taker", "USDC", 1000))

	_, err := e.Submit(sell("maker", 100, 2))
	require.NoError(t, err)

	res, err := e.Submit(PlaceOrder{
		UserID: "taker", Side: orderbook.Bid, Type: orderbook.FOK, Price: 100, Qty: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, orderbook.Cancelled, res.Order.Status)
	assert.Empty(t, res.Trades)
	assert.Equal(t, ledger.Balance{Available: 1000}, lg.Read("taker", "USDC"))

	// top up the far side and the same order goes through whole
	require.NoError(t, lg.Deposit("maker2", "SOL", 3))
	_, err = e.Submit(sell("maker2", 100, 3))
	require.NoError(t, err)

	res, err = e.Submit(PlaceOrder{
		UserID: "taker", Side: orderbook.Bid, Type: orderbook.FOK, Price: 100, Qty: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, orderbook.Filled, res.Order.Status)
	require.Len(t, res.Trades, 2)
}

func TestPostOnlyNeverTakes(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("maker", "SOL", 2))
	require.NoError(t, lg.Deposit("taker", "USDC", 1000))

	_, err := e.Submit(sell("maker", 100, 2))
	require.NoError(t, err)

	res, err := e.Submit(PlaceOrder{
		UserID: "taker", Side: orderbook.Bid, Type: orderbook.PostOnly, Price: 100, Qty: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, orderbook.Cancelled, res.Order.Status)
	assert.Empty(t, res.Trades)
	assert.Equal(t, ledger.Balance{Available: 1000}, lg.Read("taker", "USDC"))

	res, err = e.Submit(PlaceOrder{
		UserID: "taker", Side: orderbook.Bid, Type: orderbook.PostOnly, Price: 99, Qty: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, orderbook.Open, res.Order.Status)
}

func TestMarketBuyStopsAtBudget(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("maker", "SOL", 5))
	require.NoError(t, lg.Deposit("taker", "USDC", 250))

	_, err := e.Submit(sell("maker", 100, 5))
	require.NoError(t, err)

	res, err := e.Submit(PlaceOrder{
		UserID: "taker", Side: orderbook.Bid, Type: orderbook.Market, Qty: 5, MaxSpend: 250,
	})
	require.NoError(t, err)
	assert.Equal(t, orderbook.Cancelled, res.Order.Status)
	assert.Equal(t, int64(2), res.Order.Filled)

	b := lg.Read("taker", "USDC")
	assert.Equal(t, int64(50), b.Available)
	assert.Equal(t, int64(0), b.Locked)
	assert.Equal(t, int64(2), lg.Read("taker", "SOL").Available)
}

func TestMarketSellSweepsBids(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("maker", "USDC", 500))
	require.NoError(t, lg.Deposit("taker", "SOL", 3))

	_, err := e.Submit(buy("maker", 100, 5))
	require.NoError(t, err)

	res, err := e.Submit(PlaceOrder{
		UserID: "taker", Side: orderbook.Ask, Type: orderbook.Market, Qty: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, orderbook.Filled, res.Order.Status)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(100), res.Trades[0].Price)
	assert.Equal(t, int64(300), lg.Read("taker", "USDC").Available)
}

func TestMarketOrderEmptyBookCancelled(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("taker", "USDC", 250))

	res, err := e.Submit(PlaceOrder{
		UserID: "taker", Side: orderbook.Bid, Type: orderbook.Market, Qty: 5, MaxSpend: 250,
	})
	require.NoError(t, err)
	assert.Equal(t, orderbook.Cancelled, res.Order.Status)
	assert.Equal(t, int64(0), res.Order.Filled)
	assert.Equal(t, ledger.Balance{Available: 250}, lg.Read("taker", "USDC"))
}

func TestDepthAndRecentTrades(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("alice", "USDC", 10000))
	require.NoError(t, lg.Deposit("bob", "SOL", 10))

	for _, px := range []int64{98, 99, 99} {
		_, err := e.Submit(buy("alice", px, 1))
		require.NoError(t, err)
	}
	res, err := e.Submit(sell("bob", 99, 1))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	bids, asks := e.Depth(10)
	require.Len(t, bids, 2)
	assert.Empty(t, asks)
	assert.Equal(t, int64(99), bids[0].Price)
	assert.Equal(t, int64(1), bids[0].Qty)
	assert.Equal(t, int64(98), bids[1].Price)

	trades := e.RecentTrades(10)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(99), trades[0].Price)
}

func TestOrderLookup(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("alice", "USDC", 1000))

	res, err := e.Submit(buy("alice", 100, 5))
	require.NoError(t, err)

	got := e.Order(res.Order.ID)
	require.NotNil(t, got)
	assert.Equal(t, res.Order.ID, got.ID)

	// copies are detached from the live order
	got.Filled = 99
	assert.Equal(t, int64(0), e.Order(res.Order.ID).Filled)
}

func TestEventSequenceForMatch(t *testing.T) {
	e, lg := newEngine(t)
	require.NoError(t, lg.Deposit("alice", "USDC", 500))
	require.NoError(t, lg.Deposit("bob", "SOL", 5))

	_, err := e.Submit(buy("alice", 100, 5))
	require.NoError(t, err)
	res, err := e.Submit(sell("bob", 100, 5))
	require.NoError(t, err)

	var types []EventType
	for _, ev := range res.Events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{
		EventOrderAccepted,
		EventTrade,
		EventOrderFilled, // maker
		EventOrderFilled, // taker
		EventBalanceChanged,
		EventBalanceChanged,
		EventBalanceChanged,
		EventBalanceChanged,
	}, types)
}
