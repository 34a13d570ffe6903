package orderbook

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrInvalidOrder  = errors.New("orderbook: invalid order")
	ErrOrderNotFound = errors.New("orderbook: order not found")
)

// Book holds the resting orders of one market. It is single-writer:
// the owning engine serializes every mutation, so there is no locking here.
type Book struct {
	bids *RBTree
	asks *RBTree

	index map[uuid.UUID]*Order
}

func NewBook() *Book {
	return &Book{
		bids:  NewRBTree(),
		asks:  NewRBTree(),
		index: make(map[uuid.UUID]*Order),
	}
}

func (b *Book) treeFor(s Side) *RBTree {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

// Insert rests an order at the FIFO tail of its price level.
// Matching must already have been attempted by the caller.
func (b *Book) Insert(o *Order) error {
	if o.Remaining() <= 0 || o.Price <= 0 {
		return ErrInvalidOrder
	}
	if _, dup := b.index[o.ID]; dup {
		return ErrInvalidOrder
	}

	b.treeFor(o.Side).UpsertLevel(o.Price).Enqueue(o)
	b.index[o.ID] = o
	return nil
}

// Best returns the best price level for a side: highest bid, lowest ask.
// Nil when the side is empty.
func (b *Book) Best(s Side) *PriceLevel {
	if s == Bid {
		return b.bids.MaxLevel()
	}
	return b.asks.MinLevel()
}

// Get returns the resting order with the given id, or nil.
func (b *Book) Get(id uuid.UUID) *Order {
	return b.index[id]
}

// Cancel unlinks a resting order and drops its level if it became empty.
func (b *Book) Cancel(id uuid.UUID) (*Order, error) {
	o, ok := b.index[id]
	if !ok {
		return nil, ErrOrderNotFound
	}

	tree := b.treeFor(o.Side)
	lvl := tree.FindLevel(o.Price)
	lvl.Unlink(o)
	if lvl.Empty() {
		tree.DeleteLevel(lvl.Price)
	}

	delete(b.index, id)
	o.Status = Cancelled
	return o, nil
}

// Fill accounts qty traded against a resting order. A fully consumed
// order is removed from its level and the index; a partial fill keeps
// it at the head with its level quantity reduced.
func (b *Book) Fill(o *Order, qty int64) {
	tree := b.treeFor(o.Side)
	lvl := tree.FindLevel(o.Price)

	if o.Remaining() == qty {
		// unlink first: the level aggregate must drop by the pre-fill
		// remainder, which Unlink reads from the order
		lvl.Unlink(o)
		o.Filled += qty
		o.Status = Filled
		if lvl.Empty() {
			tree.DeleteLevel(lvl.Price)
		}
		delete(b.index, o.ID)
		return
	}

	o.Filled += qty
	o.Status = Partial
	lvl.Reduce(qty)
}

// crosses reports whether the taker's limit allows trading at price.
func crosses(taker Side, limit, price int64) bool {
	if taker == Bid {
		return limit >= price
	}
	return limit <= price
}

// IterateOpposing walks resting orders on the side opposite to taker in
// price-then-time priority, visiting only orders the taker's limit can
// trade with. limit < 0 means no price bound (market order).
// The walk reads live book state: any mutation invalidates it, so fn
// must not insert, cancel or fill.
func (b *Book) IterateOpposing(taker Side, limit int64, fn func(*Order) bool) {
	walk := func(lvl *PriceLevel) bool {
		if limit >= 0 && !crosses(taker, limit, lvl.Price) {
			return false
		}
		for o := lvl.Head(); o != nil; o = o.Next() {
			if !fn(o) {
				return false
			}
		}
		return true
	}

	if taker == Bid {
		b.asks.ForEachAscending(walk)
	} else {
		b.bids.ForEachDescending(walk)
	}
}

// Level is one row of a depth snapshot.
type Level struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"quantity"`
	Count int   `json:"order_count"`
}

// Depth returns the top n levels per side, bids descending, asks ascending.
// n <= 0 means the whole book.
func (b *Book) Depth(n int) (bids, asks []Level) {
	collect := func(out *[]Level) func(*PriceLevel) bool {
		return func(lvl *PriceLevel) bool {
			*out = append(*out, Level{
				Price: lvl.Price,
				Qty:   lvl.TotalQty,
				Count: lvl.OrderCount,
			})
			return n <= 0 || len(*out) < n
		}
	}
	b.bids.ForEachDescending(collect(&bids))
	b.asks.ForEachAscending(collect(&asks))
	return bids, asks
}

// Len is the number of resting orders.
func (b *Book) Len() int {
	return len(b.index)
}
