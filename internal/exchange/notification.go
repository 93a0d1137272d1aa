package exchange

import (
	"github.com/shopspring/decimal"
)

// Subscriber is the callback surface the exchange invokes on a transport.
// Handles are opaque: the engine never inspects them beyond calling back. A
// returned error is a delivery failure and evicts the subscriber from the
// list the delivery was made for.
type Subscriber interface {
	// NotifyOrder reports an order-state change to the order's owner.
	NotifyOrder(orderID int64, avgPrice decimal.Decimal, executed int64, status string) error
	// NotifyTrade reports a single cross to a market-data subscriber.
	NotifyTrade(ticker string, at int64, side string, price decimal.Decimal, quantity int64) error
	// NotifyQuote reports a top-of-book change to a market-data subscriber.
	NotifyQuote(ticker string, at int64, bid, ask decimal.Decimal) error
}

// OrderUpdate is the snapshot enqueued for the order-update fanout. It is
// captured at match (or cancel/reject) time so delivery does not race the
// next match against the live order.
type OrderUpdate struct {
	OrderID  int64
	ClientID int64
	AvgPrice decimal.Decimal
	Executed int64
	Status   string
}

func orderUpdateFor(o *Order) OrderUpdate {
	return OrderUpdate{
		OrderID:  o.id,
		ClientID: o.clientID,
		AvgPrice: o.AverageExecutedPrice(),
		Executed: o.executed,
		Status:   o.status.String(),
	}
}

// MarketDataKind tags the two shapes of market-data notification.
type MarketDataKind int

const (
	KindTrade MarketDataKind = iota
	KindQuote
)

// MarketData is the tagged union carried on the market-data queue. Trade
// notifications populate Side/Price/Quantity; quote notifications populate
// Bid/Ask.
type MarketData struct {
	Kind   MarketDataKind
	Ticker string
	Time   int64 // milliseconds

	// TRADE variant
	Side     Side
	Price    decimal.Decimal
	Quantity int64

	// QUOTE variant
	Bid decimal.Decimal
	Ask decimal.Decimal
}

func tradeNotification(ticker string, at int64, side Side, price decimal.Decimal, quantity int64) MarketData {
	return MarketData{
		Kind:     KindTrade,
		Ticker:   ticker,
		Time:     at,
		Side:     side,
		Price:    price,
		Quantity: quantity,
	}
}

func quoteNotification(ticker string, at int64, bid, ask decimal.Decimal) MarketData {
	return MarketData{
		Kind:   KindQuote,
		Ticker: ticker,
		Time:   at,
		Bid:    bid,
		Ask:    ask,
	}
}
