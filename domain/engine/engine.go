// Package engine implements price/time-priority matching with
// balance-aware settlement for a single market. An Engine is not safe
// for concurrent use: the service layer feeds it one command at a time.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"matchbook/domain/ledger"
	"matchbook/domain/market"
	"matchbook/domain/orderbook"
	"matchbook/infra/sequence"
)

var (
	// ErrNotOwner rejects a cancel from anyone but the order's owner.
	ErrNotOwner = errors.New("engine: not order owner")

	// ErrHalted is returned for every command after the engine tripped
	// on a ledger invariant. The instance must be restarted from a
	// consistent state; continuing would corrupt subsequent matches.
	ErrHalted = errors.New("engine: halted on invariant violation")
)

const maxRecentTrades = 1000

// PlaceOrder is the inbound order command, already converted to
// internal ticks/lots by the caller.
type PlaceOrder struct {
	UserID string
	Side   orderbook.Side
	Type   orderbook.OrderType
	Price  int64 // ticks; zero for market orders
	Qty    int64 // lots

	// MaxSpend is the quote budget (in ledger units) a market buy may
	// consume. Required for market buys, ignored otherwise.
	MaxSpend int64
}

// SubmitResult is everything one submission produced, synchronously.
type SubmitResult struct {
	Order       *orderbook.Order
	Trades      []*Trade
	Settlements []*SettlementRecord
	Events      []Event
}

type CancelResult struct {
	Order  *orderbook.Order
	Events []Event
}

// Engine owns the book of one market and is the only caller that moves
// funds for its orders. All state below is guarded by the single-writer
// discipline of the service loop.
type Engine struct {
	mkt *market.Market
	lg  *ledger.Ledger
	seq *sequence.Sequencer
	log *zap.Logger

	book   *orderbook.Book
	orders map[uuid.UUID]*orderbook.Order // every accepted order, incl. terminal

	recent []Trade // ring of the latest trades, newest last
	halted bool
}

func New(mkt *market.Market, lg *ledger.Ledger, log *zap.Logger) *Engine {
	return &Engine{
		mkt:    mkt,
		lg:     lg,
		seq:    sequence.New(0),
		log:    log.With(zap.String("market", mkt.Symbol)),
		book:   orderbook.NewBook(),
		orders: make(map[uuid.UUID]*orderbook.Order),
	}
}

func (e *Engine) Market() *market.Market { return e.mkt }
func (e *Engine) Halted() bool           { return e.halted }

// accountTouch tracks which balances a command changed, in first-touch
// order, so BalanceChanged events come out deterministically.
type accountTouch struct {
	user, asset string
}

type submission struct {
	o       *orderbook.Order
	res     *SubmitResult
	budget  int64 // market-buy quote budget still lockable against
	touched []accountTouch
	seen    map[accountTouch]struct{}
}

func (s *submission) touch(user, asset string) {
	k := accountTouch{user, asset}
	if _, ok := s.seen[k]; ok {
		return
	}
	s.seen[k] = struct{}{}
	s.touched = append(s.touched, k)
}

// Submit validates, locks funds, matches, and rests or cancels the
// remainder. Rejections are synchronous and leave no partial state.
func (e *Engine) Submit(cmd PlaceOrder) (*SubmitResult, error) {
	if e.halted {
		return nil, ErrHalted
	}
	if err := e.validate(&cmd); err != nil {
		return nil, err
	}

	lockAsset, lockAmt, err := e.requiredLock(&cmd)
	if err != nil {
		return nil, err
	}
	if err := e.lg.Lock(cmd.UserID, lockAsset, lockAmt); err != nil {
		return nil, err
	}

	now := time.Now()
	o := &orderbook.Order{
		ID:        uuid.New(),
		UserID:    cmd.UserID,
		Market:    e.mkt.Symbol,
		Side:      cmd.Side,
		Type:      cmd.Type,
		Price:     cmd.Price,
		Qty:       cmd.Qty,
		MaxSpend:  cmd.MaxSpend,
		SeqID:     e.seq.Next(),
		Status:    orderbook.Open,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.orders[o.ID] = o

	s := &submission{
		o:      o,
		res:    &SubmitResult{},
		budget: cmd.MaxSpend,
		seen:   make(map[accountTouch]struct{}),
	}
	s.touch(o.UserID, lockAsset)
	e.emitOrder(s, EventOrderAccepted, o, false)

	switch {
	case o.Type == orderbook.PostOnly && e.wouldCross(o):
		e.cancelRemainder(s, lockAsset)
	case o.Type == orderbook.FOK && !e.fillable(o):
		e.cancelRemainder(s, lockAsset)
	default:
		if err := e.match(s); err != nil {
			return nil, err
		}
		if err := e.finish(s, lockAsset); err != nil {
			return nil, err
		}
	}

	e.emitBalances(s)
	s.res.Order = o.Clone()
	return s.res, nil
}

func (e *Engine) validate(cmd *PlaceOrder) error {
	if cmd.UserID == "" || cmd.Qty <= 0 || cmd.Qty < e.mkt.MinOrderQty {
		return orderbook.ErrInvalidOrder
	}
	switch cmd.Type {
	case orderbook.Market:
		if cmd.Side == orderbook.Bid && cmd.MaxSpend <= 0 {
			// a market buy with no spend bound has nothing to lock against
			return orderbook.ErrInvalidOrder
		}
	case orderbook.Limit, orderbook.IOC, orderbook.FOK, orderbook.PostOnly:
		if cmd.Price <= 0 {
			return orderbook.ErrInvalidOrder
		}
	default:
		return orderbook.ErrInvalidOrder
	}
	return nil
}

// requiredLock computes what acceptance must reserve: quote notional
// for buys (the max-spend budget for market buys), base quantity for
// sells.
func (e *Engine) requiredLock(cmd *PlaceOrder) (string, int64, error) {
	if cmd.Side == orderbook.Ask {
		return e.mkt.BaseAsset, e.mkt.BaseUnits(cmd.Qty), nil
	}
	if cmd.Type == orderbook.Market {
		return e.mkt.QuoteAsset, cmd.MaxSpend, nil
	}
	amt, err := e.quoteUnits(cmd.Price, cmd.Qty)
	if err != nil {
		return "", 0, err
	}
	return e.mkt.QuoteAsset, amt, nil
}

// quoteUnits is the overflow-checked notional of ticks×lots.
func (e *Engine) quoteUnits(ticks, lots int64) (int64, error) {
	n, ok := mulChecked(ticks, lots)
	if !ok {
		return 0, orderbook.ErrInvalidOrder
	}
	n, ok = mulChecked(n, e.mkt.QuoteUnits(1, 1))
	if !ok {
		return 0, orderbook.ErrInvalidOrder
	}
	return n, nil
}

func mulChecked(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}

func (e *Engine) crosses(taker *orderbook.Order, price int64) bool {
	if taker.Type == orderbook.Market {
		return true
	}
	if taker.Side == orderbook.Bid {
		return taker.Price >= price
	}
	return taker.Price <= price
}

func (e *Engine) wouldCross(o *orderbook.Order) bool {
	best := e.book.Best(o.Side.Opposite())
	return best != nil && e.crosses(o, best.Price)
}

// fillable reports whether enough opposing quantity rests within the
// order's limit to fill it completely (all-or-nothing check).
func (e *Engine) fillable(o *orderbook.Order) bool {
	need := o.Remaining()
	e.book.IterateOpposing(o.Side, o.Price, func(r *orderbook.Order) bool {
		need -= r.Remaining()
		return need > 0
	})
	return need <= 0
}

// match runs the taker against the book: best opposing level first,
// FIFO head within a level, execution always at the maker's price.
func (e *Engine) match(s *submission) error {
	o := s.o
	for o.Remaining() > 0 {
		lvl := e.book.Best(o.Side.Opposite())
		if lvl == nil || !e.crosses(o, lvl.Price) {
			return nil
		}

		maker := lvl.Head()
		qty := min64(o.Remaining(), maker.Remaining())

		if o.Type == orderbook.Market && o.Side == orderbook.Bid {
			perLot, err := e.quoteUnits(maker.Price, 1)
			if err != nil {
				return e.halt(err)
			}
			if afford := s.budget / perLot; afford < qty {
				qty = afford
			}
			if qty == 0 {
				return nil // budget exhausted
			}
		}

		if err := e.fill(s, maker, qty); err != nil {
			return err
		}
	}
	return nil
}

// fill settles one execution between the taker and a resting maker.
func (e *Engine) fill(s *submission, maker *orderbook.Order, qty int64) error {
	o := s.o
	px := maker.Price
	now := time.Now()

	baseAmt := e.mkt.BaseUnits(qty)
	quoteAmt, err := e.quoteUnits(px, qty)
	if err != nil {
		return e.halt(err)
	}

	buyer, seller := o, maker
	if o.Side == orderbook.Ask {
		buyer, seller = maker, o
	}

	// base leg: seller's locked base to buyer's available base
	if err := e.lg.Settle(seller.UserID, e.mkt.BaseAsset, baseAmt, buyer.UserID, e.mkt.BaseAsset, baseAmt); err != nil {
		return e.halt(err)
	}
	// quote leg: buyer's locked quote to seller's available quote
	if err := e.lg.Settle(buyer.UserID, e.mkt.QuoteAsset, quoteAmt, seller.UserID, e.mkt.QuoteAsset, quoteAmt); err != nil {
		return e.halt(err)
	}

	switch {
	case o.Side == orderbook.Bid && o.Type == orderbook.Market:
		s.budget -= quoteAmt
	case o.Side == orderbook.Bid && o.Price > px:
		// taker locked at its own limit but pays the maker's price;
		// the improvement goes straight back to available
		excess, err := e.quoteUnits(o.Price-px, qty)
		if err != nil {
			return e.halt(err)
		}
		if err := e.lg.Release(o.UserID, e.mkt.QuoteAsset, excess); err != nil {
			return e.halt(err)
		}
	}

	s.touch(buyer.UserID, e.mkt.BaseAsset)
	s.touch(buyer.UserID, e.mkt.QuoteAsset)
	s.touch(seller.UserID, e.mkt.BaseAsset)
	s.touch(seller.UserID, e.mkt.QuoteAsset)

	e.book.Fill(maker, qty)
	maker.UpdatedAt = now
	o.Filled += qty
	o.UpdatedAt = now

	trade := &Trade{
		ID:           uuid.New(),
		Market:       e.mkt.Symbol,
		MakerOrderID: maker.ID,
		TakerOrderID: o.ID,
		MakerUserID:  maker.UserID,
		TakerUserID:  o.UserID,
		Price:        px,
		Qty:          qty,
		Side:         o.Side,
		SeqID:        o.SeqID,
		Time:         now,
	}
	rec := &SettlementRecord{
		ID:      uuid.New(),
		TradeID: trade.ID,
		Market:  e.mkt.Symbol,
		Legs: [2]SettlementLeg{
			{Asset: e.mkt.BaseAsset, FromUser: seller.UserID, ToUser: buyer.UserID, Amount: baseAmt},
			{Asset: e.mkt.QuoteAsset, FromUser: buyer.UserID, ToUser: seller.UserID, Amount: quoteAmt},
		},
		SeqID: o.SeqID,
		Time:  now,
	}

	s.res.Trades = append(s.res.Trades, trade)
	s.res.Settlements = append(s.res.Settlements, rec)
	e.pushRecent(trade)

	s.res.Events = append(s.res.Events, Event{
		Seq: o.SeqID, Type: EventTrade, Market: e.mkt.Symbol, Time: now, Trade: trade,
	})
	e.emitOrder(s, EventOrderFilled, maker, maker.Remaining() > 0)
	return nil
}

// finish settles the fate of the taker's remainder.
func (e *Engine) finish(s *submission, lockAsset string) error {
	o := s.o
	if o.Remaining() == 0 {
		o.Status = orderbook.Filled
		e.emitOrder(s, EventOrderFilled, o, false)
		return nil
	}

	switch o.Type {
	case orderbook.Limit, orderbook.PostOnly:
		if o.Filled > 0 {
			o.Status = orderbook.Partial
			e.emitOrder(s, EventOrderFilled, o, true)
		}
		if err := e.book.Insert(o); err != nil {
			return e.halt(err)
		}
	default: // Market, IOC, FOK remainders never rest
		if o.Filled > 0 {
			e.emitOrder(s, EventOrderFilled, o, true)
		}
		e.cancelRemainder(s, lockAsset)
	}
	return nil
}

// cancelRemainder releases whatever of the acceptance lock the fills
// did not consume and terminates the order.
func (e *Engine) cancelRemainder(s *submission, lockAsset string) {
	o := s.o

	var rem int64
	switch {
	case o.Side == orderbook.Ask:
		rem = e.mkt.BaseUnits(o.Remaining())
	case o.Type == orderbook.Market:
		rem = s.budget
	default:
		// limit-priced buy: unfilled notional at the order's own price
		rem, _ = e.quoteUnits(o.Price, o.Remaining())
	}
	if rem > 0 {
		if err := e.lg.Release(o.UserID, lockAsset, rem); err != nil {
			// halt, but the order is terminal either way
			_ = e.halt(err)
		}
	}

	o.Status = orderbook.Cancelled
	o.UpdatedAt = time.Now()
	e.emitOrder(s, EventOrderCancelled, o, false)
}

// Cancel removes a resting order. A cancel that loses the race against
// a match sees the order already terminal and gets ErrOrderNotFound.
func (e *Engine) Cancel(orderID uuid.UUID, userID string) (*CancelResult, error) {
	if e.halted {
		return nil, ErrHalted
	}

	o, ok := e.orders[orderID]
	if !ok || o.Status.Terminal() {
		return nil, orderbook.ErrOrderNotFound
	}
	if o.UserID != userID {
		return nil, ErrNotOwner
	}

	if _, err := e.book.Cancel(orderID); err != nil {
		return nil, err
	}

	var asset string
	var rem int64
	if o.Side == orderbook.Bid {
		asset = e.mkt.QuoteAsset
		rem, _ = e.quoteUnits(o.Price, o.Remaining())
	} else {
		asset = e.mkt.BaseAsset
		rem = e.mkt.BaseUnits(o.Remaining())
	}
	if rem > 0 {
		if err := e.lg.Release(o.UserID, asset, rem); err != nil {
			return nil, e.halt(err)
		}
	}
	o.UpdatedAt = time.Now()

	s := &submission{o: o, res: &SubmitResult{}, seen: make(map[accountTouch]struct{})}
	s.touch(o.UserID, asset)
	e.emitOrder(s, EventOrderCancelled, o, false)
	e.emitBalances(s)

	return &CancelResult{Order: o.Clone(), Events: s.res.Events}, nil
}

// ---- queries (single-writer loop serializes these too) ----

// Depth returns the top n aggregated levels per side.
func (e *Engine) Depth(n int) (bids, asks []orderbook.Level) {
	return e.book.Depth(n)
}

// Len is the number of orders currently resting.
func (e *Engine) Len() int { return e.book.Len() }

// Order returns a detached copy of any accepted order, or nil.
func (e *Engine) Order(id uuid.UUID) *orderbook.Order {
	o, ok := e.orders[id]
	if !ok {
		return nil
	}
	return o.Clone()
}

// RecentTrades returns up to n trades, newest first.
func (e *Engine) RecentTrades(n int) []Trade {
	if n <= 0 || n > len(e.recent) {
		n = len(e.recent)
	}
	out := make([]Trade, 0, n)
	for i := len(e.recent) - 1; i >= len(e.recent)-n; i-- {
		out = append(out, e.recent[i])
	}
	return out
}

// ---- internals ----

func (e *Engine) pushRecent(t *Trade) {
	e.recent = append(e.recent, *t)
	if len(e.recent) > maxRecentTrades {
		e.recent = e.recent[len(e.recent)-maxRecentTrades:]
	}
}

func (e *Engine) emitOrder(s *submission, typ EventType, o *orderbook.Order, partial bool) {
	s.res.Events = append(s.res.Events, Event{
		Seq:    s.o.SeqID,
		Type:   typ,
		Market: e.mkt.Symbol,
		Time:   o.UpdatedAt,
		Order: &OrderEvent{
			OrderID: o.ID,
			UserID:  o.UserID,
			Side:    o.Side.String(),
			Type:    o.Type.String(),
			Price:   o.Price,
			Qty:     o.Qty,
			Filled:  o.Filled,
			Status:  o.Status.String(),
			Partial: partial,
		},
	})
}

func (e *Engine) emitBalances(s *submission) {
	for _, k := range s.touched {
		b := e.lg.Read(k.user, k.asset)
		s.res.Events = append(s.res.Events, Event{
			Seq:    s.o.SeqID,
			Type:   EventBalanceChanged,
			Market: e.mkt.Symbol,
			Time:   s.o.UpdatedAt,
			Balance: &BalanceEvent{
				UserID:    k.user,
				Asset:     k.asset,
				Available: b.Available,
				Locked:    b.Locked,
			},
		})
	}
}

func (e *Engine) halt(cause error) error {
	e.halted = true
	e.log.Error("engine halted", zap.Error(cause))
	return fmt.Errorf("%w: %w", ErrHalted, cause)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
