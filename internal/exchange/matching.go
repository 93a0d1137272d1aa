package exchange

import (
	"log"
	"time"
)

// bookEngine crosses incoming orders against one instrument's books under
// price-time priority and emits the notifications each match produces. One
// engine exists per instrument; processNew runs only on the dispatcher
// goroutine, processCancel on the caller's, both serialized by the
// instrument's write lock.
type bookEngine struct {
	inst       *Instrument
	updates    chan<- OrderUpdate
	marketData chan<- MarketData
}

func newBookEngine(inst *Instrument, updates chan<- OrderUpdate, marketData chan<- MarketData) *bookEngine {
	return &bookEngine{inst: inst, updates: updates, marketData: marketData}
}

// processNew runs the full submission algorithm for one incoming order:
// market-order price discovery (or rejection), incoming-side statistics, the
// match loop, and the post-loop placement of any remainder.
func (e *bookEngine) processNew(o *Order) {
	in := e.inst
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.halted {
		log.Printf("instrument %s halted, dropping order %d", in.ticker, o.id)
		return
	}

	opp := in.sideFor(o.side.Opposite())

	if o.typ == Market {
		best := opp.best()
		if best == nil {
			// Nothing to take: a market order never rests.
			o.cancel()
			o.setStatus(StatusRejected)
			e.updates <- orderUpdateFor(o)
			return
		}
		o.price = best.price
	}

	in.recordIncoming(o.side, o.quantity, o.price)

	if err := e.match(o, opp); err != nil {
		in.halted = true
		log.Printf("instrument %s halted: %v", in.ticker, err)
		return
	}

	switch {
	case o.IsFilled():
		in.addFilled(o)
	case o.typ == Market:
		// Residual of a market order that exhausted the opposite side is
		// not rested; the executed portion stands.
		o.cancel()
	default:
		in.sideFor(o.side).insert(o)
		in.addResting(o.side, o.open)
		if o.executed > 0 {
			in.addPartial(o)
		}
	}

	in.sweepPartials()
}

// match iterates the opposite side from the top until the price guard fails
// or the incoming order is exhausted. The trade always prints at the resting
// order's price.
func (e *bookEngine) match(o *Order, opp *bookSide) error {
	in := e.inst

	for opp.len() > 0 && o.open > 0 {
		resting := opp.best()

		// A market order takes whatever the current best is; re-reading the
		// price each iteration keeps the guard below satisfied while
		// quantity remains.
		if o.typ == Market {
			o.price = resting.price
		}

		if !crosses(o, resting) {
			break
		}

		quantity := o.open
		if resting.open < quantity {
			quantity = resting.open
		}
		price := resting.price

		if err := resting.execute(quantity, price); err != nil {
			return err
		}
		if err := o.execute(quantity, price); err != nil {
			return err
		}
		now := time.Now().UnixMilli()

		if resting.IsFilled() {
			opp.removeBest()
			resting.setStatus(StatusFilled)
			in.addFilled(resting)
		} else {
			resting.setStatus(StatusPartiallyFilled)
			in.addPartial(resting)
		}

		if o.IsFilled() {
			o.setStatus(StatusFilled)
		} else {
			o.setStatus(StatusPartiallyFilled)
		}

		in.recordTrade(o.side, quantity, price)

		e.updates <- orderUpdateFor(o)
		e.updates <- orderUpdateFor(resting)
		e.marketData <- tradeNotification(in.ticker, now, o.side, price, quantity)
		e.marketData <- quoteNotification(in.ticker, now, in.bestBidLocked(), in.bestAskLocked())
	}

	return nil
}

// crosses is the price guard: a buy matches a resting ask at or below its
// price, a sell matches a resting bid at or above.
func crosses(o, resting *Order) bool {
	if o.side == Buy {
		return resting.price.LessThanOrEqual(o.price)
	}
	return resting.price.GreaterThanOrEqual(o.price)
}

// processCancel removes a resting order from its side. Orders that already
// left the book (filled, cancelled, or never rested) are not cancellable and
// return false without side effects.
func (e *bookEngine) processCancel(o *Order) bool {
	in := e.inst
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.halted {
		return false
	}

	side := in.sideFor(o.side)
	if side.remove(o.id) == nil {
		return false
	}

	in.removeResting(o.side, o.open)
	delete(in.partial, o.id)
	o.cancel()
	o.setStatus(StatusCancelled)
	e.updates <- orderUpdateFor(o)
	return true
}
