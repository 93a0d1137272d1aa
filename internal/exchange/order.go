package exchange

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// ParseSide accepts "BUY"/"SELL" case-insensitively.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(s) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	}
	return 0, ErrInvalidSide
}

// Opposite returns the side an order of side s matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType int

const (
	Limit OrderType = iota
	Market
)

func (t OrderType) String() string {
	if t == Limit {
		return "LIMIT"
	}
	return "MARKET"
}

// ParseOrderType accepts "LIMIT"/"MARKET" case-insensitively.
func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToUpper(s) {
	case "LIMIT":
		return Limit, nil
	case "MARKET":
		return Market, nil
	}
	return 0, ErrInvalidType
}

type Status int

const (
	StatusNew Status = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
	StatusRejected
)

func (st Status) String() string {
	switch st {
	case StatusNew:
		return "NEW"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusRejected:
		return "REJECTED"
	}
	return "UNKNOWN"
}

// Terminal reports whether no further transitions are possible.
func (st Status) Terminal() bool {
	return st == StatusFilled || st == StatusCancelled || st == StatusRejected
}

var errExecuteExceedsOpen = errors.New("execute volume exceeds open quantity")

// Fill is one trade print recorded against an order.
type Fill struct {
	Volume int64           `json:"volume"`
	Price  decimal.Decimal `json:"price"`
	Time   int64           `json:"time"` // nanoseconds
}

// Order carries the immutable identity of a single order plus its execution
// state. The identity fields never change after construction; the execution
// state is mutated only under the owning instrument's lock, by the matching
// engine and the cancel path.
type Order struct {
	id        int64
	clientID  int64
	ticker    string
	side      Side
	typ       OrderType
	quantity  int64 // original quantity, constant for the order's lifetime
	entryTime int64 // nanoseconds, monotonic across the process

	// price is the limit price for LIMIT orders. For MARKET orders it holds
	// the effective price, re-read from the opposite best during matching.
	price    decimal.Decimal
	open     int64
	executed int64
	status   Status
	fills    []Fill
}

func newOrder(id, clientID int64, ticker string, side Side, typ OrderType, quantity int64, price decimal.Decimal) *Order {
	return &Order{
		id:        id,
		clientID:  clientID,
		ticker:    ticker,
		side:      side,
		typ:       typ,
		quantity:  quantity,
		price:     price,
		open:      quantity,
		entryTime: time.Now().UnixNano(),
		status:    StatusNew,
	}
}

func (o *Order) ID() int64        { return o.id }
func (o *Order) ClientID() int64  { return o.clientID }
func (o *Order) Ticker() string   { return o.ticker }
func (o *Order) Side() Side       { return o.side }
func (o *Order) Type() OrderType  { return o.typ }
func (o *Order) Quantity() int64  { return o.quantity }
func (o *Order) EntryTime() int64 { return o.entryTime }

func (o *Order) Price() decimal.Decimal { return o.price }
func (o *Order) OpenQuantity() int64    { return o.open }
func (o *Order) ExecutedQuantity() int64 { return o.executed }
func (o *Order) Status() Status         { return o.status }

func (o *Order) IsFilled() bool { return o.executed == o.quantity }
func (o *Order) IsClosed() bool { return o.open == 0 }

// execute records one fill. The original quantity stays constant; only the
// open/executed split moves.
func (o *Order) execute(volume int64, price decimal.Decimal) error {
	if volume > o.open {
		return errExecuteExceedsOpen
	}
	o.fills = append(o.fills, Fill{Volume: volume, Price: price, Time: time.Now().UnixNano()})
	o.open -= volume
	o.executed += volume
	return nil
}

// cancel zeroes the open quantity. Executed quantity is untouched.
func (o *Order) cancel() {
	o.open = 0
}

func (o *Order) setStatus(st Status) {
	o.status = st
}

// AverageExecutedPrice is the volume-weighted price over this order's fills,
// rounded half-up to 4 decimal places. Zero when nothing has executed.
func (o *Order) AverageExecutedPrice() decimal.Decimal {
	if len(o.fills) == 0 {
		return decimal.Zero
	}
	value := decimal.Zero
	var volume int64
	for _, f := range o.fills {
		value = value.Add(f.Price.Mul(decimal.NewFromInt(f.Volume)))
		volume += f.Volume
	}
	return value.Div(decimal.NewFromInt(volume)).Round(4)
}

// LastExecutedPrice returns the price of the most recent fill, zero if none.
func (o *Order) LastExecutedPrice() decimal.Decimal {
	if len(o.fills) == 0 {
		return decimal.Zero
	}
	return o.fills[len(o.fills)-1].Price
}

// LastExecutedVolume returns the volume of the most recent fill, zero if none.
func (o *Order) LastExecutedVolume() int64 {
	if len(o.fills) == 0 {
		return 0
	}
	return o.fills[len(o.fills)-1].Volume
}

func (o *Order) Fills() []Fill {
	out := make([]Fill, len(o.fills))
	copy(out, o.fills)
	return out
}

// OrderSnapshot is a point-in-time copy of an order, safe to hand to callers
// outside the instrument lock.
type OrderSnapshot struct {
	ID        int64           `json:"id"`
	ClientID  int64           `json:"client_id"`
	Ticker    string          `json:"ticker"`
	Side      string          `json:"side"`
	Type      string          `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Open      int64           `json:"open"`
	Executed  int64           `json:"executed"`
	Status    string          `json:"status"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
	EntryTime int64           `json:"entry_time"`
}

// snapshot must be called with the owning instrument's lock held.
func (o *Order) snapshot() OrderSnapshot {
	return OrderSnapshot{
		ID:        o.id,
		ClientID:  o.clientID,
		Ticker:    o.ticker,
		Side:      o.side.String(),
		Type:      o.typ.String(),
		Price:     o.price,
		Quantity:  o.quantity,
		Open:      o.open,
		Executed:  o.executed,
		Status:    o.status.String(),
		AvgPrice:  o.AverageExecutedPrice(),
		EntryTime: o.entryTime,
	}
}
