package exchange

import (
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Validation failures reported synchronously to callers. None of them change
// engine state.
var (
	ErrUnknownTicker   = errors.New("unknown ticker")
	ErrInvalidSide     = errors.New("invalid side")
	ErrInvalidType     = errors.New("invalid order type")
	ErrNegativePrice   = errors.New("negative price")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrUnknownClient   = errors.New("unknown client")
	ErrClosed          = errors.New("exchange is closed")
)

// queueCapacity bounds the three pipeline queues. Large enough to absorb
// bursts; producers block rather than drop if it ever fills.
const queueCapacity = 1 << 17

const (
	firstOrderID  = 10000
	firstClientID = 100
	// clientIDStride keeps assigned client ids non-consecutive so one
	// client cannot trivially guess another's id.
	clientIDStride = 7
)

type instrumentEntry struct {
	inst   *Instrument
	engine *bookEngine
}

// Exchange is the entry point for all requests: it validates inputs, owns
// the id counters, tracks client order ownership and subscriptions, and runs
// the three pipeline workers (order dispatch, order-update fanout,
// trade/quote fanout).
type Exchange struct {
	mu           sync.RWMutex
	instruments  map[string]*instrumentEntry
	clients      map[int64]Subscriber   // clientID -> order-update handle
	subscribers  map[string][]Subscriber // ticker -> trade/quote subscribers
	clientOrders map[int64]*clientOrders
	closed       bool

	nextOrderID  int64
	nextClientID int64

	submitted  chan *Order
	updates    chan OrderUpdate
	marketData chan MarketData

	wg             sync.WaitGroup
	dispatcherDone chan struct{}
}

func New() *Exchange {
	return &Exchange{
		instruments:    make(map[string]*instrumentEntry),
		clients:        make(map[int64]Subscriber),
		subscribers:    make(map[string][]Subscriber),
		clientOrders:   make(map[int64]*clientOrders),
		nextOrderID:    firstOrderID,
		nextClientID:   firstClientID,
		submitted:      make(chan *Order, queueCapacity),
		updates:        make(chan OrderUpdate, queueCapacity),
		marketData:     make(chan MarketData, queueCapacity),
		dispatcherDone: make(chan struct{}),
	}
}

// Start launches the dispatcher and the two fanout workers.
func (e *Exchange) Start() {
	e.wg.Add(3)
	go e.dispatchLoop()
	go e.orderUpdateLoop()
	go e.marketDataLoop()
}

// Close stops intake, drains the pipeline, and waits for the workers.
// Submissions and cancellations after Close return ErrClosed.
func (e *Exchange) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	close(e.submitted)
	<-e.dispatcherDone
	// The dispatcher has exited and no producer can pass the closed check,
	// so the downstream queues have no writers left.
	close(e.updates)
	close(e.marketData)
	e.wg.Wait()
}

// Register assigns a fresh client id and records the handle order-state
// updates for that client are delivered to.
func (e *Exchange) Register(sub Subscriber) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextClientID
	e.nextClientID += clientIDStride
	if sub != nil {
		e.clients[id] = sub
	}
	return id
}

// RegisterInstrument starts trading a ticker. Registering an existing ticker
// has no effect.
func (e *Exchange) RegisterInstrument(ticker string) {
	symbol := strings.ToUpper(ticker)
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.instruments[symbol]; ok {
		return
	}
	inst := newInstrument(symbol)
	e.instruments[symbol] = &instrumentEntry{
		inst:   inst,
		engine: newBookEngine(inst, e.updates, e.marketData),
	}
}

// Subscribe adds a trade/quote subscriber for a ticker. Duplicate
// subscriptions are ignored.
func (e *Exchange) Subscribe(sub Subscriber, ticker string) error {
	symbol := strings.ToUpper(ticker)
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.instruments[symbol]; !ok {
		return ErrUnknownTicker
	}
	for _, s := range e.subscribers[symbol] {
		if s == sub {
			return nil
		}
	}
	e.subscribers[symbol] = append(e.subscribers[symbol], sub)
	return nil
}

// Unsubscribe removes a trade/quote subscriber from a ticker.
func (e *Exchange) Unsubscribe(sub Subscriber, ticker string) error {
	symbol := strings.ToUpper(ticker)
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.instruments[symbol]; !ok {
		return ErrUnknownTicker
	}
	e.removeSubscriberLocked(symbol, sub)
	return nil
}

func (e *Exchange) removeSubscriberLocked(symbol string, sub Subscriber) {
	subs := e.subscribers[symbol]
	for i, s := range subs {
		if s == sub {
			e.subscribers[symbol] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// SubmitOrder validates the request, creates the order, links it to the
// client, and places it on the submitted-order queue. The returned order id
// confirms submission; matching happens asynchronously.
func (e *Exchange) SubmitOrder(ticker string, clientID int64, side, orderType string, price decimal.Decimal, quantity int64) (int64, error) {
	symbol := strings.ToUpper(ticker)

	orderSide, err := ParseSide(side)
	if err != nil {
		return 0, err
	}
	orderTyp, err := ParseOrderType(orderType)
	if err != nil {
		return 0, err
	}
	if price.IsNegative() {
		return 0, ErrNegativePrice
	}
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0, ErrClosed
	}
	if _, ok := e.instruments[symbol]; !ok {
		e.mu.Unlock()
		return 0, ErrUnknownTicker
	}

	id := e.nextOrderID
	e.nextOrderID++
	order := newOrder(id, clientID, symbol, orderSide, orderTyp, quantity, price)

	co, ok := e.clientOrders[clientID]
	if !ok {
		co = newClientOrders(clientID)
		e.clientOrders[clientID] = co
	}
	co.add(order)
	// The send happens under the lock so Close cannot shut the queue
	// between the closed check and the send.
	e.submitted <- order
	e.mu.Unlock()

	return id, nil
}

// CancelOrder cancels a client's resting order and returns its snapshot.
// It returns nil when the order is unknown, not owned by the client, or no
// longer cancellable (already filled, cancelled, or rejected).
func (e *Exchange) CancelOrder(clientID, orderID int64) *OrderSnapshot {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil
	}
	co, ok := e.clientOrders[clientID]
	if !ok {
		e.mu.RUnlock()
		return nil
	}
	order := co.find(orderID)
	if order == nil {
		e.mu.RUnlock()
		return nil
	}
	entry := e.instruments[order.ticker]
	if entry == nil {
		e.mu.RUnlock()
		return nil
	}
	// Cancel under the read lock: the update enqueue inside must not race
	// Close shutting the queue.
	cancelled := entry.engine.processCancel(order)
	e.mu.RUnlock()

	if !cancelled {
		return nil
	}
	snap := entry.inst.SnapshotOrder(order)
	return &snap
}

// GetClientOrder returns a snapshot of one of the client's own orders, nil
// if the client does not own it.
func (e *Exchange) GetClientOrder(clientID, orderID int64) *OrderSnapshot {
	e.mu.RLock()
	co, ok := e.clientOrders[clientID]
	if !ok {
		e.mu.RUnlock()
		return nil
	}
	order := co.find(orderID)
	if order == nil {
		e.mu.RUnlock()
		return nil
	}
	entry := e.instruments[order.ticker]
	e.mu.RUnlock()

	if entry == nil {
		return nil
	}
	snap := entry.inst.SnapshotOrder(order)
	return &snap
}

// Instrument returns the read surface for a ticker.
func (e *Exchange) Instrument(ticker string) (*Instrument, error) {
	symbol := strings.ToUpper(ticker)
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.instruments[symbol]
	if !ok {
		return nil, ErrUnknownTicker
	}
	return entry.inst, nil
}

// TradedInstruments lists the registered tickers.
func (e *Exchange) TradedInstruments() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	list := make([]string, 0, len(e.instruments))
	for symbol := range e.instruments {
		list = append(list, symbol)
	}
	return list
}

// dispatchLoop is the single consumer of the submitted-order queue. One
// consumer means matching within an instrument is strictly serial without
// any cross-instrument locking.
func (e *Exchange) dispatchLoop() {
	defer e.wg.Done()
	defer close(e.dispatcherDone)
	for order := range e.submitted {
		e.mu.RLock()
		entry := e.instruments[order.ticker]
		e.mu.RUnlock()
		if entry == nil {
			continue
		}
		entry.engine.processNew(order)
	}
}

// orderUpdateLoop is the single consumer of the order-update queue. Each
// update goes to the owning client's handle; a delivery failure evicts that
// client from future order updates.
func (e *Exchange) orderUpdateLoop() {
	defer e.wg.Done()
	for upd := range e.updates {
		e.mu.RLock()
		sub := e.clients[upd.ClientID]
		e.mu.RUnlock()
		if sub == nil {
			continue
		}
		if err := sub.NotifyOrder(upd.OrderID, upd.AvgPrice, upd.Executed, upd.Status); err != nil {
			log.Printf("order update delivery to client %d failed, evicting: %v", upd.ClientID, err)
			e.mu.Lock()
			delete(e.clients, upd.ClientID)
			e.mu.Unlock()
		}
	}
}

// marketDataLoop is the single consumer of the market-data queue. Each
// notification fans out to the ticker's subscribers; a delivery failure
// evicts the failing subscriber and leaves the rest untouched.
func (e *Exchange) marketDataLoop() {
	defer e.wg.Done()
	for md := range e.marketData {
		e.mu.RLock()
		subs := make([]Subscriber, len(e.subscribers[md.Ticker]))
		copy(subs, e.subscribers[md.Ticker])
		e.mu.RUnlock()

		for _, sub := range subs {
			var err error
			if md.Kind == KindTrade {
				err = sub.NotifyTrade(md.Ticker, md.Time, md.Side.String(), md.Price, md.Quantity)
			} else {
				err = sub.NotifyQuote(md.Ticker, md.Time, md.Bid, md.Ask)
			}
			if err != nil {
				log.Printf("market data delivery for %s failed, evicting subscriber: %v", md.Ticker, err)
				e.mu.Lock()
				e.removeSubscriberLocked(md.Ticker, sub)
				e.mu.Unlock()
			}
		}
	}
}
