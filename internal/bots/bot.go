package bots

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"exchange/internal/exchange"
)

// Bot is the interface all trading bots implement.
type Bot interface {
	Name() string
	Start()
	Stop()
}

// orderState tracks one of the bot's live orders so position can be derived
// from order-update notifications.
type orderState struct {
	side     exchange.Side
	executed int64
}

// BaseBot provides the plumbing every bot shares: a registered client id on
// the exchange, open-order tracking, and position accounting. The bot itself
// is its order-update subscriber; each NotifyOrder delivery folds the newly
// executed quantity into the position.
type BaseBot struct {
	mu sync.Mutex

	name   string
	ticker string
	ex     *exchange.Exchange
	feed   *ReferenceFeed

	clientID int64
	orders   map[int64]*orderState
	open     []int64

	position int64 // positive = long

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewBaseBot(name, ticker string, ex *exchange.Exchange, feed *ReferenceFeed) *BaseBot {
	b := &BaseBot{
		name:   name,
		ticker: ticker,
		ex:     ex,
		feed:   feed,
		orders: make(map[int64]*orderState),
		stopCh: make(chan struct{}),
	}
	b.clientID = ex.Register(b)
	return b
}

func (b *BaseBot) Name() string { return b.name }

func (b *BaseBot) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Position returns the bot's current net position.
func (b *BaseBot) Position() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position
}

// NotifyOrder receives the bot's own order-state updates from the exchange.
// The executed field is cumulative per order, so the position delta is the
// difference against what was last seen.
func (b *BaseBot) NotifyOrder(orderID int64, avgPrice decimal.Decimal, executed int64, status string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.orders[orderID]
	if !ok {
		return nil
	}
	delta := executed - st.executed
	st.executed = executed
	if st.side == exchange.Buy {
		b.position += delta
	} else {
		b.position -= delta
	}
	switch status {
	case "FILLED", "CANCELLED", "REJECTED":
		delete(b.orders, orderID)
		b.dropOpenLocked(orderID)
	}
	return nil
}

func (b *BaseBot) NotifyTrade(ticker string, at int64, side string, price decimal.Decimal, quantity int64) error {
	return nil
}

func (b *BaseBot) NotifyQuote(ticker string, at int64, bid, ask decimal.Decimal) error {
	return nil
}

func (b *BaseBot) dropOpenLocked(orderID int64) {
	for i, id := range b.open {
		if id == orderID {
			b.open = append(b.open[:i], b.open[i+1:]...)
			return
		}
	}
}

// submit places an order and tracks it for position accounting.
func (b *BaseBot) submit(side exchange.Side, typ exchange.OrderType, price decimal.Decimal, quantity int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submitLocked(side, typ, price, quantity)
}

func (b *BaseBot) submitLocked(side exchange.Side, typ exchange.OrderType, price decimal.Decimal, quantity int64) (int64, error) {
	id, err := b.ex.SubmitOrder(b.ticker, b.clientID, side.String(), typ.String(), price, quantity)
	if err != nil {
		return 0, err
	}
	b.orders[id] = &orderState{side: side}
	b.open = append(b.open, id)
	return id, nil
}

// CancelAllOrders cancels every order the bot still tracks as open.
func (b *BaseBot) CancelAllOrders() {
	b.mu.Lock()
	ids := make([]int64, len(b.open))
	copy(ids, b.open)
	b.mu.Unlock()

	for _, id := range ids {
		b.ex.CancelOrder(b.clientID, id)
	}
}

// BotManager owns a collection of bots and starts and stops them together.
type BotManager struct {
	mu   sync.Mutex
	bots []Bot
}

func NewBotManager() *BotManager {
	return &BotManager{}
}

func (m *BotManager) AddBot(bot Bot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bots = append(m.bots, bot)
}

func (m *BotManager) StartAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bot := range m.bots {
		bot.Start()
	}
}

func (m *BotManager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bot := range m.bots {
		bot.Stop()
	}
}

func (m *BotManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bots)
}

// Helper for running periodic tasks
func runPeriodic(interval time.Duration, stopCh <-chan struct{}, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn()
		case <-stopCh:
			return
		}
	}
}
