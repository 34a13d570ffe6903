package engine

import (
	"time"

	"github.com/google/uuid"

	"matchbook/domain/orderbook"
)

// Trade is the immutable record of one fill. Price is always the
// resting (maker) order's price; Side is the taker's side.
type Trade struct {
	ID     uuid.UUID `json:"id"`
	Market string    `json:"market"`

	MakerOrderID uuid.UUID `json:"maker_order_id"`
	TakerOrderID uuid.UUID `json:"taker_order_id"`
	MakerUserID  string    `json:"maker_user_id"`
	TakerUserID  string    `json:"taker_user_id"`

	Price int64          `json:"price"`
	Qty   int64          `json:"quantity"`
	Side  orderbook.Side `json:"side"`

	SeqID uint64    `json:"seq"`
	Time  time.Time `json:"timestamp"`
}

// SettlementLeg is one directed balance movement of a settlement.
type SettlementLeg struct {
	Asset    string `json:"asset"`
	FromUser string `json:"from_user"`
	ToUser   string `json:"to_user"`
	Amount   int64  `json:"amount"`
}

// SettlementRecord captures the two balance movements behind one trade
// as an atomic unit: base from seller to buyer, quote from buyer to
// seller. Written once, never mutated.
type SettlementRecord struct {
	ID      uuid.UUID        `json:"id"`
	TradeID uuid.UUID        `json:"trade_id"`
	Market  string           `json:"market"`
	Legs    [2]SettlementLeg `json:"legs"`
	SeqID   uint64           `json:"seq"`
	Time    time.Time        `json:"timestamp"`
}

type EventType string

const (
	EventOrderAccepted  EventType = "order_accepted"
	EventOrderFilled    EventType = "order_filled"
	EventOrderCancelled EventType = "order_cancelled"
	EventTrade          EventType = "trade"
	EventBalanceChanged EventType = "balance_changed"
)

// OrderEvent is the order-shaped payload of an event.
type OrderEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	UserID  string    `json:"user_id"`
	Side    string    `json:"side"`
	Type    string    `json:"type"`
	Price   int64     `json:"price,omitempty"`
	Qty     int64     `json:"quantity"`
	Filled  int64     `json:"filled_quantity"`
	Status  string    `json:"status"`
	Partial bool      `json:"partial,omitempty"`
}

// BalanceEvent carries the post-change snapshot of one account.
type BalanceEvent struct {
	UserID    string `json:"user_id"`
	Asset     string `json:"asset"`
	Available int64  `json:"available"`
	Locked    int64  `json:"locked"`
}

// Event is what the engine pushes downstream. Seq is the sequence of
// the command that produced it, so consumers can total-order and
// deduplicate; delivery past the outbox is the publisher's problem.
type Event struct {
	Seq    uint64    `json:"seq"`
	Type   EventType `json:"type"`
	Market string    `json:"market"`
	Time   time.Time `json:"timestamp"`

	Order   *OrderEvent   `json:"order,omitempty"`
	Trade   *Trade        `json:"trade,omitempty"`
	Balance *BalanceEvent `json:"balance,omitempty"`
}
