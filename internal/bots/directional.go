package bots

import (
	"time"

	"github.com/shopspring/decimal"

	"exchange/internal/exchange"
)

// MomentumBot chases reference price trends with market orders.
type MomentumBot struct {
	*BaseBot
	lookbackPeriod time.Duration
	tradeInterval  time.Duration
	minMove        decimal.Decimal // smallest move that triggers a trade
	tradeSize      int64
	maxPosition    int64

	priceHistory []pricePoint
}

type pricePoint struct {
	time  time.Time
	price decimal.Decimal
}

func NewMomentumBot(name, ticker string, lookback, interval time.Duration, minMove decimal.Decimal, size, maxPos int64, ex *exchange.Exchange, feed *ReferenceFeed) *MomentumBot {
	return &MomentumBot{
		BaseBot:        NewBaseBot(name, ticker, ex, feed),
		lookbackPeriod: lookback,
		tradeInterval:  interval,
		minMove:        minMove,
		tradeSize:      size,
		maxPosition:    maxPos,
	}
}

func (m *MomentumBot) Start() {
	go m.tradeLoop()
}

func (m *MomentumBot) tradeLoop() {
	priceCh := m.feed.Subscribe()
	defer m.feed.Unsubscribe(priceCh)

	tradeTicker := time.NewTicker(m.tradeInterval)
	defer tradeTicker.Stop()

	for {
		select {
		case tick := <-priceCh:
			m.recordPrice(tick.Price)
		case <-tradeTicker.C:
			m.considerTrade()
		case <-m.stopCh:
			return
		}
	}
}

func (m *MomentumBot) recordPrice(price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.priceHistory = append(m.priceHistory, pricePoint{time: now, price: price})

	cutoff := now.Add(-m.lookbackPeriod * 2)
	for len(m.priceHistory) > 0 && m.priceHistory[0].time.Before(cutoff) {
		m.priceHistory = m.priceHistory[1:]
	}
}

func (m *MomentumBot) considerTrade() {
	m.mu.Lock()

	if len(m.priceHistory) < 2 {
		m.mu.Unlock()
		return
	}

	// Price from roughly one lookback period ago.
	cutoff := time.Now().Add(-m.lookbackPeriod)
	var oldPrice decimal.Decimal
	for _, pp := range m.priceHistory {
		if pp.time.After(cutoff) {
			break
		}
		oldPrice = pp.price
	}
	if oldPrice.IsZero() {
		m.mu.Unlock()
		return
	}

	currentPrice := m.priceHistory[len(m.priceHistory)-1].price
	move := currentPrice.Sub(oldPrice)
	position := m.position
	m.mu.Unlock()

	if move.Abs().LessThan(m.minMove) {
		return
	}
	if move.IsPositive() && position >= m.maxPosition {
		return
	}
	if move.IsNegative() && position <= -m.maxPosition {
		return
	}

	if move.IsPositive() {
		m.submit(exchange.Buy, exchange.Market, decimal.Zero, m.tradeSize)
	} else {
		m.submit(exchange.Sell, exchange.Market, decimal.Zero, m.tradeSize)
	}
}

// Preset momentum bots

// NewMomentumFast chases 10-second trends with small size.
func NewMomentumFast(name, ticker string, ex *exchange.Exchange, feed *ReferenceFeed) *MomentumBot {
	return NewMomentumBot(name, ticker, 10*time.Second, 2*time.Second, decimal.New(8, -2), 15, 200, ex, feed)
}

// NewMomentumSlow chases 1-minute trends with bigger size.
func NewMomentumSlow(name, ticker string, ex *exchange.Exchange, feed *ReferenceFeed) *MomentumBot {
	return NewMomentumBot(name, ticker, time.Minute, 10*time.Second, decimal.New(2, -1), 60, 400, ex, feed)
}

// MeanReversionBot fades moves away from the traded average, resting limit
// orders on the side the price should revert toward.
type MeanReversionBot struct {
	*BaseBot
	tradeInterval time.Duration
	threshold     decimal.Decimal // deviation from the average that triggers
	tradeSize     int64
	maxPosition   int64
}

func NewMeanReversionBot(name, ticker string, interval time.Duration, threshold decimal.Decimal, size, maxPos int64, ex *exchange.Exchange, feed *ReferenceFeed) *MeanReversionBot {
	return &MeanReversionBot{
		BaseBot:       NewBaseBot(name, ticker, ex, feed),
		tradeInterval: interval,
		threshold:     threshold,
		tradeSize:     size,
		maxPosition:   maxPos,
	}
}

func (b *MeanReversionBot) Start() {
	go runPeriodic(b.tradeInterval, b.stopCh, b.considerTrade)
}

func (b *MeanReversionBot) considerTrade() {
	inst, err := b.ex.Instrument(b.ticker)
	if err != nil {
		return
	}
	avg := inst.AveragePrice()
	last := inst.LastPrice()
	if avg.IsZero() || last.IsZero() {
		return
	}

	deviation := last.Sub(avg)
	if deviation.Abs().LessThan(b.threshold) {
		return
	}

	position := b.Position()
	if deviation.IsPositive() {
		// Rich to the average, sell into it.
		if position <= -b.maxPosition {
			return
		}
		b.submit(exchange.Sell, exchange.Limit, last, b.tradeSize)
	} else {
		if position >= b.maxPosition {
			return
		}
		b.submit(exchange.Buy, exchange.Limit, last, b.tradeSize)
	}
}

// NewMeanReversionStandard fades deviations beyond 0.12.
func NewMeanReversionStandard(name, ticker string, ex *exchange.Exchange, feed *ReferenceFeed) *MeanReversionBot {
	return NewMeanReversionBot(name, ticker, 4*time.Second, decimal.New(12, -2), 25, 300, ex, feed)
}
