package store

import (
	"github.com/shopspring/decimal"
)

// InsertTrade journals one trade print.
func (s *Store) InsertTrade(ticker, side string, price string, quantity, tradedAt int64) error {
	_, err := s.db.Exec(
		"INSERT INTO trades (ticker, side, price, quantity, traded_at) VALUES (?, ?, ?, ?, ?)",
		ticker, side, price, quantity, tradedAt,
	)
	return err
}

// RecentTrades returns the newest trades for a ticker, most recent first.
func (s *Store) RecentTrades(ticker string, limit int) ([]TradeRow, error) {
	rows, err := s.db.Query(`
		SELECT id, ticker, side, price, quantity, traded_at, created_at
		FROM trades
		WHERE ticker = ?
		ORDER BY id DESC
		LIMIT ?
	`, ticker, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeRow
	for rows.Next() {
		var tr TradeRow
		if err := rows.Scan(&tr.ID, &tr.Ticker, &tr.Side, &tr.Price, &tr.Quantity, &tr.TradedAt, &tr.CreatedAt); err != nil {
			return nil, err
		}
		trades = append(trades, tr)
	}
	return trades, rows.Err()
}

// TradeCount returns the number of journaled trades for a ticker.
func (s *Store) TradeCount(ticker string) (int64, error) {
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM trades WHERE ticker = ?", ticker).Scan(&n)
	return n, err
}

// Recorder journals trade notifications. It satisfies the exchange's
// subscriber surface, so it can be subscribed to any ticker like a client;
// order and quote notifications are ignored.
type Recorder struct {
	store *Store
}

func NewRecorder(s *Store) *Recorder {
	return &Recorder{store: s}
}

func (r *Recorder) NotifyOrder(orderID int64, avgPrice decimal.Decimal, executed int64, status string) error {
	return nil
}

func (r *Recorder) NotifyTrade(ticker string, at int64, side string, price decimal.Decimal, quantity int64) error {
	return r.store.InsertTrade(ticker, side, price.String(), quantity, at)
}

func (r *Recorder) NotifyQuote(ticker string, at int64, bid, ask decimal.Decimal) error {
	return nil
}
