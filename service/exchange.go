// Package service orchestrates the core components of the exchange:
// ledger, per-market engines, trade log, and event outbox.
//
// It provides a clean API for placing, cancelling, and querying
// orders, decoupled from network transports like gRPC.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"matchbook/domain/engine"
	"matchbook/domain/ledger"
	"matchbook/domain/market"
	"matchbook/domain/orderbook"
	"matchbook/infra/outbox"
	"matchbook/infra/tradelog"
)

const commandBuffer = 1024

// ErrClosed rejects commands that arrive during or after shutdown.
var ErrClosed = errors.New("service: exchange closed")

/*
Exchange is the ONLY write entry point into the system.

Every market runs one goroutine that applies commands to its engine in
arrival order. Queries go through the same loop, so they always see a
consistent book. The shared ledger is the single cross-market resource;
its own locking handles concurrent settlement from different loops.
*/
type Exchange struct {
	reg    *market.Registry
	ledger *ledger.Ledger
	trades *tradelog.Store
	ob     *outbox.Outbox
	log    *zap.Logger

	loops     map[string]*marketLoop
	closeOnce sync.Once

	// orderIndex maps order id to market symbol for market-less lookups.
	orderIndex sync.Map
}

func New(
	reg *market.Registry,
	lg *ledger.Ledger,
	trades *tradelog.Store,
	ob *outbox.Outbox,
	log *zap.Logger,
) *Exchange {
	return &Exchange{
		reg:    reg,
		ledger: lg,
		trades: trades,
		ob:     ob,
		log:    log.Named("exchange"),
		loops:  make(map[string]*marketLoop),
	}
}

// Start spawns one command loop per registered market. Markets added
// to the registry afterwards are not picked up.
func (x *Exchange) Start() {
	for _, m := range x.reg.List() {
		l := &marketLoop{
			eng:  engine.New(m, x.ledger, x.log),
			cmds: make(chan command, commandBuffer),
			quit: make(chan struct{}),
			done: make(chan struct{}),
		}
		x.loops[m.Symbol] = l
		go l.run()
		x.log.Info("market loop started", zap.String("market", m.Symbol))
	}
}

// Close stops every loop after draining queued commands. Concurrent
// callers of do are turned away with ErrClosed; nobody ever closes the
// channel they send on.
func (x *Exchange) Close() {
	x.closeOnce.Do(func() {
		for _, l := range x.loops {
			close(l.quit)
		}
		for _, l := range x.loops {
			<-l.done
		}
	})
}

func (x *Exchange) Registry() *market.Registry { return x.reg }

//
// ──────────────────────────────────────────────────────────
// Command loop
// ──────────────────────────────────────────────────────────
//

type result struct {
	v   any
	err error
}

type command struct {
	fn    func(*engine.Engine) (any, error)
	reply chan result
}

type marketLoop struct {
	eng  *engine.Engine
	cmds chan command
	quit chan struct{}
	done chan struct{}
}

func (l *marketLoop) run() {
	defer close(l.done)
	for {
		select {
		case cmd := <-l.cmds:
			v, err := cmd.fn(l.eng)
			cmd.reply <- result{v, err}
		case <-l.quit:
			// answer whatever already made it into the buffer
			for {
				select {
				case cmd := <-l.cmds:
					v, err := cmd.fn(l.eng)
					cmd.reply <- result{v, err}
				default:
					return
				}
			}
		}
	}
}

// do runs fn inside a market's loop and waits for the answer.
func (x *Exchange) do(ctx context.Context, symbol string, fn func(*engine.Engine) (any, error)) (any, error) {
	l, ok := x.loops[symbol]
	if !ok {
		return nil, market.ErrUnknownMarket
	}

	cmd := command{fn: fn, reply: make(chan result, 1)}
	select {
	case l.cmds <- cmd:
	case <-l.quit:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-cmd.reply:
		return r.v, r.err
	case <-l.done:
		// the loop may have answered just before stopping
		select {
		case r := <-cmd.reply:
			return r.v, r.err
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// PlaceOrder submits an order to its market. Trades, settlement
// records, and events are durably persisted before the call returns.
func (x *Exchange) PlaceOrder(ctx context.Context, symbol string, po engine.PlaceOrder) (*engine.SubmitResult, error) {
	v, err := x.do(ctx, symbol, func(e *engine.Engine) (any, error) {
		res, err := e.Submit(po)
		if err != nil {
			return nil, err
		}
		if err := x.persist(res.Trades, res.Settlements, res.Events); err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	res := v.(*engine.SubmitResult)
	x.orderIndex.Store(res.Order.ID, symbol)
	return res, nil
}

// CancelOrder cancels a resting order wherever it lives.
func (x *Exchange) CancelOrder(ctx context.Context, orderID uuid.UUID, userID string) (*engine.CancelResult, error) {
	symbol, ok := x.marketOf(orderID)
	if !ok {
		return nil, orderbook.ErrOrderNotFound
	}

	v, err := x.do(ctx, symbol, func(e *engine.Engine) (any, error) {
		res, err := e.Cancel(orderID, userID)
		if err != nil {
			return nil, err
		}
		if err := x.persist(nil, nil, res.Events); err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*engine.CancelResult), nil
}

// Deposit credits available funds. Amount is in the asset's ledger
// units; the transport edge converts from decimals.
func (x *Exchange) Deposit(user, asset string, amount int64) (ledger.Balance, error) {
	if _, err := x.reg.Asset(asset); err != nil {
		return ledger.Balance{}, err
	}
	if err := x.ledger.Deposit(user, asset, amount); err != nil {
		return ledger.Balance{}, err
	}
	return x.ledger.Read(user, asset), nil
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// Markets lists the symbols with a running loop.
func (x *Exchange) Markets() []string {
	out := make([]string, 0, len(x.loops))
	for _, m := range x.reg.List() {
		if _, ok := x.loops[m.Symbol]; ok {
			out = append(out, m.Symbol)
		}
	}
	return out
}

// OrderBook returns a depth snapshot taken inside the market loop.
func (x *Exchange) OrderBook(ctx context.Context, symbol string, depth int) (bids, asks []orderbook.Level, err error) {
	v, err := x.do(ctx, symbol, func(e *engine.Engine) (any, error) {
		b, a := e.Depth(depth)
		return [2][]orderbook.Level{b, a}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	both := v.([2][]orderbook.Level)
	return both[0], both[1], nil
}

// Order finds any accepted order by id, resting or terminal.
func (x *Exchange) Order(ctx context.Context, orderID uuid.UUID) (*orderbook.Order, error) {
	symbol, ok := x.marketOf(orderID)
	if !ok {
		return nil, orderbook.ErrOrderNotFound
	}

	v, err := x.do(ctx, symbol, func(e *engine.Engine) (any, error) {
		o := e.Order(orderID)
		if o == nil {
			return nil, orderbook.ErrOrderNotFound
		}
		return o, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*orderbook.Order), nil
}

// Balance reads one account; zero balances for unknown accounts.
func (x *Exchange) Balance(user, asset string) ledger.Balance {
	return x.ledger.Read(user, asset)
}

// RecentTrades serves the engine's in-memory ring when it can satisfy
// the request, and falls back to the durable trade log otherwise. The
// ring is bounded and empty after a restart; the log is authoritative.
func (x *Exchange) RecentTrades(ctx context.Context, symbol string, n int) ([]engine.Trade, error) {
	v, err := x.do(ctx, symbol, func(e *engine.Engine) (any, error) {
		return e.RecentTrades(n), nil
	})
	if err != nil {
		return nil, err
	}

	trades := v.([]engine.Trade)
	if n > 0 && len(trades) >= n {
		return trades, nil
	}
	return x.trades.RecentTrades(symbol, n)
}

// Settlement looks up the durable settlement record of a trade leg pair.
func (x *Exchange) Settlement(id uuid.UUID) (*engine.SettlementRecord, error) {
	return x.trades.Settlement(id)
}

//
// ──────────────────────────────────────────────────────────
// Persistence
// ──────────────────────────────────────────────────────────
//

// persist writes a command's outputs before the command is
// acknowledged: trades and settlements to the trade log, events to the
// outbox for the broadcaster.
func (x *Exchange) persist(trades []*engine.Trade, setts []*engine.SettlementRecord, events []engine.Event) error {
	for _, t := range trades {
		if err := x.trades.AppendTrade(t); err != nil {
			return fmt.Errorf("append trade: %w", err)
		}
	}
	for _, s := range setts {
		if err := x.trades.AppendSettlement(s); err != nil {
			return fmt.Errorf("append settlement: %w", err)
		}
	}
	for i, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		if err := x.ob.PutNew(ev.Market, ev.Seq, i, payload); err != nil {
			return fmt.Errorf("outbox event: %w", err)
		}
	}
	return nil
}

func (x *Exchange) marketOf(orderID uuid.UUID) (string, bool) {
	v, ok := x.orderIndex.Load(orderID)
	if !ok {
		return "", false
	}
	return v.(string), true
}
