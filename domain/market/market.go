// Package market defines assets, tradable instruments, and the
// conversion between external decimal prices/quantities and the integer
// ticks, lots and asset units the engine and ledger work in.
package market

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownMarket = errors.New("market: unknown market")
	ErrUnknownAsset  = errors.New("market: unknown asset")
	ErrMisaligned    = errors.New("market: value not aligned to tick/lot size")
)

// Asset is a currency the ledger can hold. Unit is the smallest
// representable amount; all ledger balances are integer multiples of it.
type Asset struct {
	Symbol string          `json:"symbol"`
	Unit   decimal.Decimal `json:"unit"`
}

// Market describes one instrument. TickSize is the quote increment one
// internal price tick represents; LotSize the base increment of one lot.
// Fee bps are carried as metadata only; the engine does not apply fees.
type Market struct {
	Symbol     string `json:"symbol"`
	BaseAsset  string `json:"base_asset"`
	QuoteAsset string `json:"quote_asset"`

	TickSize decimal.Decimal `json:"tick_size"`
	LotSize  decimal.Decimal `json:"lot_size"`

	// MinOrderQty is in lots.
	MinOrderQty int64 `json:"min_order_size"`

	MakerFeeBps int32 `json:"maker_fee_bps"`
	TakerFeeBps int32 `json:"taker_fee_bps"`

	// Integer bridges into ledger units, fixed at registration:
	// one lot of base is baseUnitsPerLot base units; a fill of
	// (ticks × lots) is worth ticks*lots*quoteUnitsPerTickLot quote units.
	baseUnitsPerLot      int64
	quoteUnitsPerTickLot int64
}

// PriceToTicks converts an external decimal price into integer ticks.
// Prices that are not a whole multiple of the tick size are rejected.
func (m *Market) PriceToTicks(p decimal.Decimal) (int64, error) {
	if p.Sign() <= 0 {
		return 0, fmt.Errorf("%w: price %s", ErrMisaligned, p)
	}
	q := p.Div(m.TickSize)
	if !q.IsInteger() {
		return 0, fmt.Errorf("%w: price %s vs tick %s", ErrMisaligned, p, m.TickSize)
	}
	return q.IntPart(), nil
}

func (m *Market) TicksToPrice(ticks int64) decimal.Decimal {
	return decimal.NewFromInt(ticks).Mul(m.TickSize)
}

// QtyToLots converts an external decimal quantity into integer lots.
func (m *Market) QtyToLots(q decimal.Decimal) (int64, error) {
	if q.Sign() <= 0 {
		return 0, fmt.Errorf("%w: quantity %s", ErrMisaligned, q)
	}
	l := q.Div(m.LotSize)
	if !l.IsInteger() {
		return 0, fmt.Errorf("%w: quantity %s vs lot %s", ErrMisaligned, q, m.LotSize)
	}
	return l.IntPart(), nil
}

func (m *Market) LotsToQty(lots int64) decimal.Decimal {
	return decimal.NewFromInt(lots).Mul(m.LotSize)
}

// BaseUnits converts lots into ledger units of the base asset.
func (m *Market) BaseUnits(lots int64) int64 {
	return lots * m.baseUnitsPerLot
}

// QuoteUnits converts a (price ticks × quantity lots) notional into
// ledger units of the quote asset.
func (m *Market) QuoteUnits(ticks, lots int64) int64 {
	return ticks * lots * m.quoteUnitsPerTickLot
}

// ToUnits converts a decimal asset amount (deposits, market-buy
// budgets) into integer ledger units.
func ToUnits(amt, unit decimal.Decimal) (int64, error) {
	if amt.Sign() <= 0 {
		return 0, fmt.Errorf("%w: amount %s", ErrMisaligned, amt)
	}
	u := amt.Div(unit)
	if !u.IsInteger() {
		return 0, fmt.Errorf("%w: amount %s vs asset unit %s", ErrMisaligned, amt, unit)
	}
	return u.IntPart(), nil
}

// FromUnits converts integer ledger units back into a decimal amount.
func FromUnits(units int64, unit decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(units).Mul(unit)
}

// Registry is the set of known assets and markets. Registration happens
// at startup; lookups are concurrent.
type Registry struct {
	mu      sync.RWMutex
	assets  map[string]*Asset
	markets map[string]*Market
}

func NewRegistry() *Registry {
	return &Registry{
		assets:  make(map[string]*Asset),
		markets: make(map[string]*Market),
	}
}

func (r *Registry) AddAsset(a *Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.Unit.Sign() <= 0 {
		return fmt.Errorf("market: asset %q has non-positive unit", a.Symbol)
	}
	if _, dup := r.assets[a.Symbol]; dup {
		return fmt.Errorf("market: duplicate asset %q", a.Symbol)
	}
	r.assets[a.Symbol] = a
	return nil
}

// Add registers a market. Both assets must already be registered, and
// the tick/lot sizes must land on whole asset units, so every engine
// computation stays in integers.
func (r *Registry) Add(m *Market) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.markets[m.Symbol]; dup {
		return fmt.Errorf("market: duplicate symbol %q", m.Symbol)
	}
	if m.TickSize.Sign() <= 0 || m.LotSize.Sign() <= 0 {
		return fmt.Errorf("market: %q has non-positive tick/lot size", m.Symbol)
	}
	base, ok := r.assets[m.BaseAsset]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAsset, m.BaseAsset)
	}
	quote, ok := r.assets[m.QuoteAsset]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAsset, m.QuoteAsset)
	}

	bpl := m.LotSize.Div(base.Unit)
	if !bpl.IsInteger() || bpl.Sign() <= 0 {
		return fmt.Errorf("market: %q lot size %s not a multiple of %s unit", m.Symbol, m.LotSize, m.BaseAsset)
	}
	qpt := m.TickSize.Mul(m.LotSize).Div(quote.Unit)
	if !qpt.IsInteger() || qpt.Sign() <= 0 {
		return fmt.Errorf("market: %q tick*lot %s not a multiple of %s unit", m.Symbol, m.TickSize.Mul(m.LotSize), m.QuoteAsset)
	}

	m.baseUnitsPerLot = bpl.IntPart()
	m.quoteUnitsPerTickLot = qpt.IntPart()
	r.markets[m.Symbol] = m
	return nil
}

func (r *Registry) Get(symbol string) (*Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMarket, symbol)
	}
	return m, nil
}

func (r *Registry) Asset(symbol string) (*Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAsset, symbol)
	}
	return a, nil
}

func (r *Registry) List() []*Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	return out
}
