package exchange

import (
	"sort"

	"github.com/shopspring/decimal"
)

// bookSide is the sorted sequence of resting orders for one side of one
// instrument. Bids sort descending by price, asks ascending; equal prices
// sort by ascending entry time, so the order at index 0 is always the best
// priced, earliest resting order.
type bookSide struct {
	side   Side
	orders []*Order
}

func newBookSide(side Side) *bookSide {
	return &bookSide{side: side}
}

func (b *bookSide) len() int { return len(b.orders) }

// best returns the order at the top of this side, nil when empty.
func (b *bookSide) best() *Order {
	if len(b.orders) == 0 {
		return nil
	}
	return b.orders[0]
}

// before reports whether order a sorts strictly ahead of order r on this
// side. Equal (price, entry_time) pairs report false, which keeps the
// earlier-inserted order ahead.
func (b *bookSide) before(a, r *Order) bool {
	cmp := a.price.Cmp(r.price)
	if cmp == 0 {
		return a.entryTime < r.entryTime
	}
	if b.side == Buy {
		return cmp > 0
	}
	return cmp < 0
}

// insert places the order at its price-time position. The index is located
// by binary search; the shift is linear in the number of resting orders.
func (b *bookSide) insert(o *Order) {
	i := sort.Search(len(b.orders), func(i int) bool {
		return b.before(o, b.orders[i])
	})
	b.orders = append(b.orders, nil)
	copy(b.orders[i+1:], b.orders[i:])
	b.orders[i] = o
}

// removeBest pops the order at index 0.
func (b *bookSide) removeBest() *Order {
	if len(b.orders) == 0 {
		return nil
	}
	o := b.orders[0]
	b.orders = b.orders[1:]
	return o
}

// remove deletes an order by identity. Linear scan; resting counts are small
// and cancellations are rare next to matches.
func (b *bookSide) remove(id int64) *Order {
	for i, o := range b.orders {
		if o.id == id {
			b.orders = append(b.orders[:i], b.orders[i+1:]...)
			return o
		}
	}
	return nil
}

// openVolume sums open quantity over all resting orders.
func (b *bookSide) openVolume() int64 {
	var total int64
	for _, o := range b.orders {
		total += o.open
	}
	return total
}

// priceAtDepth returns the (depth+1)-th distinct price level, zero when the
// side has fewer levels.
func (b *bookSide) priceAtDepth(depth int) decimal.Decimal {
	levels := -1
	last := decimal.Zero
	for i, o := range b.orders {
		if i == 0 || !o.price.Equal(last) {
			levels++
			last = o.price
		}
		if levels == depth {
			return o.price
		}
	}
	return decimal.Zero
}

// volumeAtPrice sums open quantity resting at exactly the given price. The
// scan stops as soon as the sorted sequence passes the price.
func (b *bookSide) volumeAtPrice(price decimal.Decimal) int64 {
	var total int64
	for _, o := range b.orders {
		cmp := o.price.Cmp(price)
		if cmp == 0 {
			total += o.open
			continue
		}
		// Bids descend, asks ascend: once past the price nothing further
		// can match it.
		if b.side == Buy && cmp < 0 {
			break
		}
		if b.side == Sell && cmp > 0 {
			break
		}
	}
	return total
}

// snapshot copies the resting orders in book order.
func (b *bookSide) snapshot() []OrderSnapshot {
	out := make([]OrderSnapshot, len(b.orders))
	for i, o := range b.orders {
		out[i] = o.snapshot()
	}
	return out
}
