package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
)

// dec parses a literal decimal for tests.
func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestOrderExecuteUpdatesQuantities(t *testing.T) {
	o := newOrder(1, 100, "GOOG", Buy, Limit, 100, dec("15.00"))

	if o.OpenQuantity() != 100 || o.ExecutedQuantity() != 0 {
		t.Fatalf("new order: open=%d executed=%d", o.OpenQuantity(), o.ExecutedQuantity())
	}

	if err := o.execute(60, dec("15.00")); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if o.OpenQuantity() != 40 {
		t.Errorf("expected open 40, got %d", o.OpenQuantity())
	}
	if o.ExecutedQuantity() != 60 {
		t.Errorf("expected executed 60, got %d", o.ExecutedQuantity())
	}
	if o.OpenQuantity()+o.ExecutedQuantity() != o.Quantity() {
		t.Errorf("open + executed != original")
	}
	if o.IsFilled() {
		t.Error("order should not be filled")
	}
	if o.IsClosed() {
		t.Error("order should not be closed")
	}
}

func TestOrderExecuteRejectsOversizedVolume(t *testing.T) {
	o := newOrder(2, 100, "GOOG", Buy, Limit, 50, dec("10"))
	if err := o.execute(60, dec("10")); err == nil {
		t.Fatal("expected error executing more than open quantity")
	}
	if o.ExecutedQuantity() != 0 || o.OpenQuantity() != 50 {
		t.Errorf("failed execute must not change state: open=%d executed=%d", o.OpenQuantity(), o.ExecutedQuantity())
	}
}

func TestOrderExecutedQuantityMatchesFills(t *testing.T) {
	o := newOrder(3, 100, "GOOG", Sell, Limit, 100, dec("20"))
	o.execute(30, dec("20"))
	o.execute(20, dec("21"))

	var total int64
	for _, f := range o.Fills() {
		total += f.Volume
	}
	if total != o.ExecutedQuantity() {
		t.Errorf("fills sum %d != executed %d", total, o.ExecutedQuantity())
	}
}

func TestOrderCancelZeroesOpenOnly(t *testing.T) {
	o := newOrder(4, 100, "GOOG", Buy, Limit, 100, dec("15"))
	o.execute(30, dec("15"))
	o.cancel()

	if o.OpenQuantity() != 0 {
		t.Errorf("expected open 0, got %d", o.OpenQuantity())
	}
	if o.ExecutedQuantity() != 30 {
		t.Errorf("cancel must not touch executed, got %d", o.ExecutedQuantity())
	}
	if !o.IsClosed() {
		t.Error("cancelled order should be closed")
	}
	if o.IsFilled() {
		t.Error("cancelled order should not be filled")
	}
}

func TestAverageExecutedPrice(t *testing.T) {
	o := newOrder(5, 100, "GOOG", Buy, Limit, 100, dec("20"))

	if !o.AverageExecutedPrice().IsZero() {
		t.Errorf("no fills: expected 0, got %s", o.AverageExecutedPrice())
	}

	o.execute(60, dec("10.00"))
	o.execute(40, dec("20.00"))

	// (60*10 + 40*20) / 100 = 14
	if !o.AverageExecutedPrice().Equal(dec("14")) {
		t.Errorf("expected 14, got %s", o.AverageExecutedPrice())
	}
	if !o.LastExecutedPrice().Equal(dec("20.00")) {
		t.Errorf("expected last price 20, got %s", o.LastExecutedPrice())
	}
	if o.LastExecutedVolume() != 40 {
		t.Errorf("expected last volume 40, got %d", o.LastExecutedVolume())
	}
}

func TestAverageExecutedPriceRounding(t *testing.T) {
	o := newOrder(6, 100, "GOOG", Buy, Limit, 3, dec("10"))
	o.execute(1, dec("10.0000"))
	o.execute(1, dec("10.0001"))
	o.execute(1, dec("10.0001"))

	// 30.0002/3 = 10.00006666... -> 10.0001 half-up at 4 places
	if !o.AverageExecutedPrice().Equal(dec("10.0001")) {
		t.Errorf("expected 10.0001, got %s", o.AverageExecutedPrice())
	}
}

func TestParseSideAndType(t *testing.T) {
	if s, err := ParseSide("buy"); err != nil || s != Buy {
		t.Errorf("buy: %v %v", s, err)
	}
	if s, err := ParseSide("SELL"); err != nil || s != Sell {
		t.Errorf("SELL: %v %v", s, err)
	}
	if _, err := ParseSide("hold"); err != ErrInvalidSide {
		t.Errorf("expected ErrInvalidSide, got %v", err)
	}

	if ty, err := ParseOrderType("Limit"); err != nil || ty != Limit {
		t.Errorf("Limit: %v %v", ty, err)
	}
	if ty, err := ParseOrderType("MARKET"); err != nil || ty != Market {
		t.Errorf("MARKET: %v %v", ty, err)
	}
	if _, err := ParseOrderType("stop"); err != ErrInvalidType {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}
}

func TestStatusStrings(t *testing.T) {
	cases := map[Status]string{
		StatusNew:             "NEW",
		StatusPartiallyFilled: "PARTIALLY_FILLED",
		StatusFilled:          "FILLED",
		StatusCancelled:       "CANCELLED",
		StatusRejected:        "REJECTED",
	}
	for st, want := range cases {
		if st.String() != want {
			t.Errorf("expected %s, got %s", want, st.String())
		}
	}
	if StatusNew.Terminal() || StatusPartiallyFilled.Terminal() {
		t.Error("NEW and PARTIALLY_FILLED are not terminal")
	}
	if !StatusFilled.Terminal() || !StatusCancelled.Terminal() || !StatusRejected.Terminal() {
		t.Error("FILLED, CANCELLED, REJECTED are terminal")
	}
}
