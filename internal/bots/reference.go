package bots

import (
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ReferenceFeed publishes a random-walk reference price the bots quote and
// trade around. Market makers read a fuzzed view of it so they do not all
// quote the identical level; everyone else reads the walk directly.
type ReferenceFeed struct {
	mu sync.RWMutex

	rng *rand.Rand

	price  decimal.Decimal
	fuzzed decimal.Decimal

	stepInterval time.Duration
	volatility   decimal.Decimal // max absolute step per tick
	fuzz         decimal.Decimal // max absolute fuzz on the MM view

	subscribers []chan Tick
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// Tick is one reference price update.
type Tick struct {
	Timestamp time.Time
	Price     decimal.Decimal
	Fuzzed    decimal.Decimal
}

func NewReferenceFeed(start decimal.Decimal, stepInterval time.Duration, volatility, fuzz decimal.Decimal) *ReferenceFeed {
	f := &ReferenceFeed{
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		price:        start,
		stepInterval: stepInterval,
		volatility:   volatility,
		fuzz:         fuzz,
		stopCh:       make(chan struct{}),
	}
	f.fuzzed = f.fuzzPrice(start)
	return f
}

// Start begins stepping the walk. Stop ends it.
func (f *ReferenceFeed) Start() {
	go f.walkLoop()
}

func (f *ReferenceFeed) Stop() {
	f.stopOnce.Do(func() { close(f.stopCh) })
}

func (f *ReferenceFeed) walkLoop() {
	ticker := time.NewTicker(f.stepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.step()
		case <-f.stopCh:
			return
		}
	}
}

// step moves the walk by a uniform amount in [-volatility, +volatility] and
// notifies subscribers. The price never walks below one cent.
func (f *ReferenceFeed) step() {
	f.mu.Lock()

	move := f.volatility.Mul(decimal.NewFromFloat(f.rng.Float64()*2 - 1))
	next := f.price.Add(move)
	floor := decimal.New(1, -2)
	if next.LessThan(floor) {
		next = floor
	}
	f.price = next
	f.fuzzed = f.fuzzPrice(next)

	tick := Tick{
		Timestamp: time.Now(),
		Price:     f.price,
		Fuzzed:    f.fuzzed,
	}
	subs := make([]chan Tick, len(f.subscribers))
	copy(subs, f.subscribers)

	f.mu.Unlock()

	// Non-blocking fanout. A slow bot misses ticks rather than stalling
	// the walk.
	for _, ch := range subs {
		select {
		case ch <- tick:
		default:
		}
	}
}

func (f *ReferenceFeed) fuzzPrice(p decimal.Decimal) decimal.Decimal {
	if f.fuzz.IsZero() {
		return p
	}
	offset := f.fuzz.Mul(decimal.NewFromFloat(f.rng.Float64()*2 - 1))
	return p.Add(offset)
}

// Subscribe returns a buffered channel of price ticks.
func (f *ReferenceFeed) Subscribe() chan Tick {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan Tick, 10)
	f.subscribers = append(f.subscribers, ch)
	return ch
}

func (f *ReferenceFeed) Unsubscribe(ch chan Tick) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, sub := range f.subscribers {
		if sub == ch {
			f.subscribers = append(f.subscribers[:i], f.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Price returns the current reference price.
func (f *ReferenceFeed) Price() decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.price
}

// Fuzzed returns the market-maker view of the reference price.
func (f *ReferenceFeed) Fuzzed() decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fuzzed
}
