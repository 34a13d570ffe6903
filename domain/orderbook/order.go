package orderbook

import (
	"time"

	"github.com/google/uuid"
)

type Side int
type OrderType int
type Status int

const (
	Bid Side = iota
	Ask
)

const (
	Limit OrderType = iota
	Market
	IOC
	FOK
	PostOnly
)

const (
	Open Status = iota
	Partial
	Filled
	Cancelled
)

func (s Side) String() string {
	if s == Ask {
		return "sell"
	}
	return "buy"
}

// Opposite returns the side a taker order matches against.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func (t OrderType) String() string {
	switch t {
	case Market:
		return "market"
	case IOC:
		return "ioc"
	case FOK:
		return "fok"
	case PostOnly:
		return "post_only"
	default:
		return "limit"
	}
}

func (st Status) String() string {
	switch st {
	case Partial:
		return "partial"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "open"
	}
}

// Terminal reports whether the order can never trade again.
func (st Status) Terminal() bool {
	return st == Filled || st == Cancelled
}

// Order is a pure domain entity. Price is in integer ticks of the quote
// asset, Qty in integer lots of the base asset. SeqID is the acceptance
// sequence assigned by the engine and is the sole time-priority tie-breaker.
type Order struct {
	ID     uuid.UUID
	UserID string
	Market string

	Side  Side
	Type  OrderType
	Price int64

	Qty    int64
	Filled int64

	// MaxSpend bounds the quote amount a market buy may consume.
	// Zero for every other order shape.
	MaxSpend int64

	SeqID  uint64
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time

	next *Order
	prev *Order
}

func (o *Order) Remaining() int64 {
	return o.Qty - o.Filled
}

// Clone returns a detached copy safe to hand outside the book.
func (o *Order) Clone() *Order {
	c := *o
	c.next = nil
	c.prev = nil
	return &c
}

// Read-only traversal helper.
func (o *Order) Next() *Order {
	return o.next
}
