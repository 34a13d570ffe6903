package orderbook

import (
	"testing"

	"github.com/google/uuid"
)

// ---------------- Basic Benchmarks ---------------- //

func BenchmarkInsert(b *testing.B) {
	book := NewBook()

	orders := make([]*Order, b.N)
	for i := 0; i < b.N; i++ {
		orders[i] = &Order{
			ID:    uuid.New(),
			Side:  Bid,
			Price: int64(90 + i%20), // 20 price levels
			Qty:   10,
			SeqID: uint64(i + 1),
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = book.Insert(orders[i])
	}
}

func BenchmarkCancel(b *testing.B) {
	book := NewBook()

	ids := make([]uuid.UUID, b.N)
	for i := 0; i < b.N; i++ {
		o := &Order{
			ID:    uuid.New(),
			Side:  Bid,
			Price: int64(90 + i%20),
			Qty:   10,
			SeqID: uint64(i + 1),
		}
		_ = book.Insert(o)
		ids[i] = o.ID
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = book.Cancel(ids[i])
	}
}

func BenchmarkDepth(b *testing.B) {
	book := NewBook()

	// preload with non-crossing orders so the snapshot is stable
	for i := 0; i < 50000; i++ {
		side, price := Bid, int64(99-i%50)
		if i%2 == 1 {
			side, price = Ask, int64(101+i%50)
		}
		_ = book.Insert(&Order{
			ID:    uuid.New(),
			Side:  side,
			Price: price,
			Qty:   10,
			SeqID: uint64(i + 1),
		})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bids, asks := book.Depth(20)
		if len(bids) == 0 || len(asks) == 0 {
			b.Fatal("empty depth")
		}
	}
}
