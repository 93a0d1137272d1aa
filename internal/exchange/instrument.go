package exchange

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Instrument owns the two book sides for one ticker, the registries of
// filled and partially filled orders, and the running statistics the read
// surface reports. All mutation happens under mu with the write lock held
// (the dispatcher while matching, and the cancel path); readers take the
// read lock, so a sequence of reads may straddle a match but individual
// values are never torn.
type Instrument struct {
	mu     sync.RWMutex
	ticker string

	bids *bookSide
	asks *bookSide

	// Registries hold at most one entry per order id. An order sits in
	// partial exactly while it is PARTIALLY_FILLED and still resting;
	// once filled it migrates to filled.
	filled  map[int64]*Order
	partial map[int64]*Order

	// halted flips when an internal invariant is violated mid-match.
	// A halted instrument processes nothing further.
	halted bool

	lastPrice decimal.Decimal

	bidVolume int64 // open quantity resting on the bid side
	askVolume int64
	buyVolume  int64 // matched volume with a buy aggressor
	sellVolume int64

	tradedValue  decimal.Decimal // Σ volume·price over all trades
	tradedVolume int64
	buyValue     decimal.Decimal // the same, partitioned by aggressor side
	buyTraded    int64
	sellValue    decimal.Decimal
	sellTraded   int64

	// Side VWAPs accumulate quantity·price from every incoming order with a
	// non-zero price, whether or not it ever trades. Documented source
	// behavior, kept as-is.
	bidOrderValue  decimal.Decimal
	bidOrderVolume int64
	askOrderValue  decimal.Decimal
	askOrderVolume int64

	// Highs and lows of incoming order prices per side. Lows start at zero
	// and take the first non-zero observation.
	bidHigh decimal.Decimal
	bidLow  decimal.Decimal
	askHigh decimal.Decimal
	askLow  decimal.Decimal
}

func newInstrument(ticker string) *Instrument {
	return &Instrument{
		ticker:  ticker,
		bids:    newBookSide(Buy),
		asks:    newBookSide(Sell),
		filled:  make(map[int64]*Order),
		partial: make(map[int64]*Order),
	}
}

func (in *Instrument) Ticker() string { return in.ticker }

func (in *Instrument) Halted() bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.halted
}

// sideFor returns this instrument's book side for the given order side.
func (in *Instrument) sideFor(s Side) *bookSide {
	if s == Buy {
		return in.bids
	}
	return in.asks
}

// recordIncoming folds an incoming order's quantity and price into the side
// VWAP and high/low statistics. Called before matching, with the effective
// price already set for market orders.
func (in *Instrument) recordIncoming(side Side, quantity int64, price decimal.Decimal) {
	if price.IsZero() {
		return
	}
	value := price.Mul(decimal.NewFromInt(quantity))
	if side == Buy {
		in.bidOrderValue = in.bidOrderValue.Add(value)
		in.bidOrderVolume += quantity
		if price.GreaterThan(in.bidHigh) {
			in.bidHigh = price
		}
		if in.bidLow.IsZero() || price.LessThan(in.bidLow) {
			in.bidLow = price
		}
	} else {
		in.askOrderValue = in.askOrderValue.Add(value)
		in.askOrderVolume += quantity
		if price.GreaterThan(in.askHigh) {
			in.askHigh = price
		}
		if in.askLow.IsZero() || price.LessThan(in.askLow) {
			in.askLow = price
		}
	}
}

// recordTrade folds one match into the trade statistics. aggressor is the
// side of the incoming order. Every match has a buyer and a seller, so both
// buy and sell volume grow by the matched quantity; the buy/sell price
// averages are partitioned by the aggressor side only.
func (in *Instrument) recordTrade(aggressor Side, volume int64, price decimal.Decimal) {
	in.lastPrice = price
	value := price.Mul(decimal.NewFromInt(volume))
	in.tradedValue = in.tradedValue.Add(value)
	in.tradedVolume += volume
	in.buyVolume += volume
	in.sellVolume += volume
	if aggressor == Buy {
		in.askVolume -= volume
		in.buyValue = in.buyValue.Add(value)
		in.buyTraded += volume
	} else {
		in.bidVolume -= volume
		in.sellValue = in.sellValue.Add(value)
		in.sellTraded += volume
	}
}

// addResting accounts for an order entering a book side.
func (in *Instrument) addResting(side Side, open int64) {
	if side == Buy {
		in.bidVolume += open
	} else {
		in.askVolume += open
	}
}

// removeResting accounts for a cancelled order leaving a book side.
func (in *Instrument) removeResting(side Side, open int64) {
	if side == Buy {
		in.bidVolume -= open
	} else {
		in.askVolume -= open
	}
}

func (in *Instrument) addFilled(o *Order) {
	delete(in.partial, o.id)
	in.filled[o.id] = o
}

func (in *Instrument) addPartial(o *Order) {
	if _, ok := in.partial[o.id]; !ok {
		in.partial[o.id] = o
	}
}

// sweepPartials promotes any order that reached FILLED while sitting in the
// partially-filled registry.
func (in *Instrument) sweepPartials() {
	for id, o := range in.partial {
		if o.IsFilled() {
			delete(in.partial, id)
			in.filled[id] = o
		}
	}
}

func (in *Instrument) bestBidLocked() decimal.Decimal {
	if o := in.bids.best(); o != nil {
		return o.price
	}
	return decimal.Zero
}

func (in *Instrument) bestAskLocked() decimal.Decimal {
	if o := in.asks.best(); o != nil {
		return o.price
	}
	return decimal.Zero
}

// Read surface. Money values round half-up to 4 decimal places at read time.

func (in *Instrument) LastPrice() decimal.Decimal {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.lastPrice.Round(4)
}

func (in *Instrument) BidVolume() int64 {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.bidVolume
}

func (in *Instrument) AskVolume() int64 {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.askVolume
}

func (in *Instrument) BuyVolume() int64 {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.buyVolume
}

func (in *Instrument) SellVolume() int64 {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.sellVolume
}

func (in *Instrument) AveragePrice() decimal.Decimal {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return ratio(in.tradedValue, in.tradedVolume)
}

func (in *Instrument) AverageBuyPrice() decimal.Decimal {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return ratio(in.buyValue, in.buyTraded)
}

func (in *Instrument) AverageSellPrice() decimal.Decimal {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return ratio(in.sellValue, in.sellTraded)
}

func (in *Instrument) BidVWAP() decimal.Decimal {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return ratio(in.bidOrderValue, in.bidOrderVolume)
}

func (in *Instrument) AskVWAP() decimal.Decimal {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return ratio(in.askOrderValue, in.askOrderVolume)
}

func (in *Instrument) BestBid() decimal.Decimal {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.bestBidLocked()
}

func (in *Instrument) BestAsk() decimal.Decimal {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.bestAskLocked()
}

// BidPriceAtDepth returns the (depth+1)-th distinct bid level, zero when the
// book is shallower.
func (in *Instrument) BidPriceAtDepth(depth int) decimal.Decimal {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.bids.priceAtDepth(depth)
}

func (in *Instrument) AskPriceAtDepth(depth int) decimal.Decimal {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.asks.priceAtDepth(depth)
}

func (in *Instrument) BidVolumeAtPrice(price decimal.Decimal) int64 {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.bids.volumeAtPrice(price)
}

func (in *Instrument) AskVolumeAtPrice(price decimal.Decimal) int64 {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.asks.volumeAtPrice(price)
}

func (in *Instrument) BidHigh() decimal.Decimal {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.bidHigh.Round(4)
}

func (in *Instrument) BidLow() decimal.Decimal {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.bidLow.Round(4)
}

func (in *Instrument) AskHigh() decimal.Decimal {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.askHigh.Round(4)
}

func (in *Instrument) AskLow() decimal.Decimal {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.askLow.Round(4)
}

// BidBook returns the resting bid orders in price-time order.
func (in *Instrument) BidBook() []OrderSnapshot {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.bids.snapshot()
}

func (in *Instrument) AskBook() []OrderSnapshot {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.asks.snapshot()
}

// SnapshotOrder copies an order's state under this instrument's lock.
func (in *Instrument) SnapshotOrder(o *Order) OrderSnapshot {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return o.snapshot()
}

// ratio divides a value sum by a volume, rounding half-up to 4 places.
// Zero volume reports zero rather than an undefined average.
func ratio(value decimal.Decimal, volume int64) decimal.Decimal {
	if volume == 0 {
		return decimal.Zero
	}
	return value.Div(decimal.NewFromInt(volume)).Round(4)
}
