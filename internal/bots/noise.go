package bots

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"exchange/internal/exchange"
)

// NoiseTraderBot fires random market orders to create flow.
type NoiseTraderBot struct {
	*BaseBot
	avgInterval time.Duration
	minSize     int64
	maxSize     int64
	bias        float64 // -1 always sell, +1 always buy, 0 neutral

	rng *rand.Rand
}

func NewNoiseTraderBot(name, ticker string, avgInterval time.Duration, minSize, maxSize int64, bias float64, ex *exchange.Exchange, feed *ReferenceFeed) *NoiseTraderBot {
	return &NoiseTraderBot{
		BaseBot:     NewBaseBot(name, ticker, ex, feed),
		avgInterval: avgInterval,
		minSize:     minSize,
		maxSize:     maxSize,
		bias:        bias,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (n *NoiseTraderBot) Start() {
	go n.tradeLoop()
}

func (n *NoiseTraderBot) tradeLoop() {
	for {
		waitTime := time.Duration(float64(n.avgInterval) * (0.5 + n.rng.Float64()))

		select {
		case <-time.After(waitTime):
			n.placeRandomOrder()
		case <-n.stopCh:
			return
		}
	}
}

func (n *NoiseTraderBot) placeRandomOrder() {
	size := n.minSize + n.rng.Int63n(n.maxSize-n.minSize+1)

	side := exchange.Buy
	if n.rng.Float64() > (0.5 + n.bias/2) {
		side = exchange.Sell
	}

	// Market orders against an empty side come back rejected, which is
	// fine for a noise trader.
	n.submit(side, exchange.Market, decimal.Zero, size)
}

// Preset noise traders

// NewRandomSmall trades small sizes frequently.
func NewRandomSmall(name, ticker string, ex *exchange.Exchange, feed *ReferenceFeed) *NoiseTraderBot {
	return NewNoiseTraderBot(name, ticker, 3*time.Second, 5, 20, 0, ex, feed)
}

// NewRandomLarge trades larger sizes infrequently.
func NewRandomLarge(name, ticker string, ex *exchange.Exchange, feed *ReferenceFeed) *NoiseTraderBot {
	return NewNoiseTraderBot(name, ticker, 30*time.Second, 100, 500, 0, ex, feed)
}

// PanicBot chases big reference moves with market orders.
type PanicBot struct {
	*BaseBot
	panicThreshold decimal.Decimal
	panicSize      int64
	cooldown       time.Duration

	lastPanic time.Time
	lastPrice decimal.Decimal
}

func NewPanicBot(name, ticker string, threshold decimal.Decimal, size int64, cooldown time.Duration, ex *exchange.Exchange, feed *ReferenceFeed) *PanicBot {
	return &PanicBot{
		BaseBot:        NewBaseBot(name, ticker, ex, feed),
		panicThreshold: threshold,
		panicSize:      size,
		cooldown:       cooldown,
	}
}

func (p *PanicBot) Start() {
	go p.watchLoop()
}

func (p *PanicBot) watchLoop() {
	priceCh := p.feed.Subscribe()
	defer p.feed.Unsubscribe(priceCh)

	for {
		select {
		case tick := <-priceCh:
			p.checkPanic(tick.Price)
		case <-p.stopCh:
			return
		}
	}
}

func (p *PanicBot) checkPanic(price decimal.Decimal) {
	if p.lastPrice.IsZero() {
		p.lastPrice = price
		return
	}
	if time.Since(p.lastPanic) < p.cooldown {
		p.lastPrice = price
		return
	}

	move := price.Sub(p.lastPrice)
	p.lastPrice = price

	if move.Abs().LessThan(p.panicThreshold) {
		return
	}

	p.lastPanic = time.Now()

	if move.IsPositive() {
		p.submit(exchange.Buy, exchange.Market, decimal.Zero, p.panicSize)
	} else {
		p.submit(exchange.Sell, exchange.Market, decimal.Zero, p.panicSize)
	}
}

// NewPanicStandard panics on a 0.15 move, trading 50 with a 5s cooldown.
func NewPanicStandard(name, ticker string, ex *exchange.Exchange, feed *ReferenceFeed) *PanicBot {
	return NewPanicBot(name, ticker, decimal.New(15, -2), 50, 5*time.Second, ex, feed)
}

// MandatedAgent works a quota over a deadline, slicing it into periodic
// child orders. It trades limit orders near the reference while patient and
// switches to market orders as it falls behind schedule.
type MandatedAgent struct {
	*BaseBot
	mandate    int64 // positive = buy, negative = sell
	deadline   time.Duration
	urgency    float64 // 0 patient, 1 desperate
	sliceEvery time.Duration

	startTime time.Time
}

func NewMandatedAgent(name, ticker string, mandate int64, deadline time.Duration, urgency float64, ex *exchange.Exchange, feed *ReferenceFeed) *MandatedAgent {
	return &MandatedAgent{
		BaseBot:    NewBaseBot(name, ticker, ex, feed),
		mandate:    mandate,
		deadline:   deadline,
		urgency:    urgency,
		sliceEvery: 5 * time.Second,
	}
}

func (m *MandatedAgent) Start() {
	m.startTime = time.Now()
	go m.executeLoop()
}

func (m *MandatedAgent) executeLoop() {
	slices := int64(m.deadline / m.sliceEvery)
	if slices < 1 {
		slices = 1
	}
	sliceSize := absInt64(m.mandate) / slices
	if sliceSize < 1 {
		sliceSize = 1
	}

	runPeriodic(m.sliceEvery, m.stopCh, func() {
		m.executeSlice(sliceSize)
	})
}

// filled returns how much of the mandate has executed, derived from the
// position the base bot accumulates.
func (m *MandatedAgent) filled() int64 {
	return absInt64(m.Position())
}

func (m *MandatedAgent) executeSlice(baseSize int64) {
	remaining := absInt64(m.mandate) - m.filled()
	if remaining <= 0 {
		return
	}

	// Falling behind schedule raises urgency.
	timeProgress := time.Since(m.startTime).Seconds() / m.deadline.Seconds()
	fillProgress := float64(m.filled()) / float64(absInt64(m.mandate))
	urgency := m.urgency
	if timeProgress > fillProgress {
		urgency += timeProgress - fillProgress
		if urgency > 1.0 {
			urgency = 1.0
		}
	}

	size := baseSize
	if urgency > 0.7 {
		size = baseSize * 2
	}
	if size > remaining {
		size = remaining
	}

	side := exchange.Buy
	if m.mandate < 0 {
		side = exchange.Sell
	}

	if urgency > 0.8 {
		m.submit(side, exchange.Market, decimal.Zero, size)
		return
	}

	ref := m.feed.Price()
	if ref.IsZero() {
		return
	}
	// Shade the limit toward our side of the reference.
	edge := decimal.New(2, -2)
	price := ref.Sub(edge)
	if side == exchange.Sell {
		price = ref.Add(edge)
	}
	m.submit(side, exchange.Limit, price, size)
}

// Progress returns the mandate completion fraction.
func (m *MandatedAgent) Progress() float64 {
	if m.mandate == 0 {
		return 1.0
	}
	return float64(m.filled()) / float64(absInt64(m.mandate))
}

// NewTWAPBuyer works a buy quota patiently.
func NewTWAPBuyer(name, ticker string, quantity int64, duration time.Duration, ex *exchange.Exchange, feed *ReferenceFeed) *MandatedAgent {
	return NewMandatedAgent(name, ticker, quantity, duration, 0.3, ex, feed)
}

// NewTWAPSeller works a sell quota patiently.
func NewTWAPSeller(name, ticker string, quantity int64, duration time.Duration, ex *exchange.Exchange, feed *ReferenceFeed) *MandatedAgent {
	return NewMandatedAgent(name, ticker, -quantity, duration, 0.3, ex, feed)
}

// NewDesperateSeller dumps a sell quota with high urgency.
func NewDesperateSeller(name, ticker string, quantity int64, duration time.Duration, ex *exchange.Exchange, feed *ReferenceFeed) *MandatedAgent {
	return NewMandatedAgent(name, ticker, -quantity, duration, 0.9, ex, feed)
}

func absInt64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
