package bots

import (
	"fmt"
	"strings"
	"time"

	"exchange/internal/exchange"
)

// CreateEcosystem builds the full bot population for one ticker. The caller
// owns the manager and the feed; StartAll begins trading.
func CreateEcosystem(ex *exchange.Exchange, feed *ReferenceFeed, ticker string, horizon time.Duration) *BotManager {
	manager := NewBotManager()

	// Market makers
	manager.AddBot(NewTightMM(ticker, ex, feed))
	manager.AddBot(NewWideMM(ticker, ex, feed))
	manager.AddBot(NewAdaptiveMM(ticker, ex, feed))
	manager.AddBot(NewNervousMM(ticker, ex, feed))

	// Directional traders
	manager.AddBot(NewMomentumFast("momentum_fast_1", ticker, ex, feed))
	manager.AddBot(NewMomentumFast("momentum_fast_2", ticker, ex, feed))
	manager.AddBot(NewMomentumSlow("momentum_slow_1", ticker, ex, feed))
	manager.AddBot(NewMeanReversionStandard("mean_reversion_1", ticker, ex, feed))
	manager.AddBot(NewMeanReversionStandard("mean_reversion_2", ticker, ex, feed))

	// Noise traders
	for i := 1; i <= 4; i++ {
		manager.AddBot(NewRandomSmall(fmt.Sprintf("noise_small_%d", i), ticker, ex, feed))
	}
	manager.AddBot(NewRandomLarge("noise_large_1", ticker, ex, feed))
	manager.AddBot(NewRandomLarge("noise_large_2", ticker, ex, feed))

	// Panic traders
	manager.AddBot(NewPanicStandard("panic_1", ticker, ex, feed))
	manager.AddBot(NewPanicStandard("panic_2", ticker, ex, feed))

	// Mandated flow, one buyer and two sellers for natural imbalance
	manager.AddBot(NewTWAPBuyer("twap_buyer_1", ticker, 5000, horizon, ex, feed))
	manager.AddBot(NewTWAPSeller("twap_seller_1", ticker, 5000, horizon, ex, feed))
	manager.AddBot(NewDesperateSeller("desperate_seller_1", ticker, 2000, horizon, ex, feed))

	return manager
}

// CreateMinimalEcosystem builds a small population, enough for a market to
// form without much load.
func CreateMinimalEcosystem(ex *exchange.Exchange, feed *ReferenceFeed, ticker string, horizon time.Duration) *BotManager {
	manager := NewBotManager()

	manager.AddBot(NewTightMM(ticker, ex, feed))
	manager.AddBot(NewWideMM(ticker, ex, feed))
	manager.AddBot(NewMomentumFast("momentum_1", ticker, ex, feed))
	manager.AddBot(NewMeanReversionStandard("mean_reversion_1", ticker, ex, feed))
	manager.AddBot(NewRandomSmall("noise_1", ticker, ex, feed))
	manager.AddBot(NewTWAPBuyer("buyer_1", ticker, 2000, horizon, ex, feed))
	manager.AddBot(NewTWAPSeller("seller_1", ticker, 2000, horizon, ex, feed))

	return manager
}

// BotStats summarizes a manager's population by role.
type BotStats struct {
	TotalBots      int      `json:"total_bots"`
	MarketMakers   int      `json:"market_makers"`
	Directional    int      `json:"directional"`
	NoiseTraders   int      `json:"noise_traders"`
	MandatedAgents int      `json:"mandated_agents"`
	BotNames       []string `json:"bot_names"`
}

// Stats categorizes the bots by name prefix.
func (m *BotManager) Stats() BotStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := BotStats{
		TotalBots: len(m.bots),
		BotNames:  make([]string, len(m.bots)),
	}

	for i, bot := range m.bots {
		name := bot.Name()
		stats.BotNames[i] = name

		switch {
		case strings.HasPrefix(name, "mm_"):
			stats.MarketMakers++
		case strings.HasPrefix(name, "momentum"), strings.HasPrefix(name, "mean"):
			stats.Directional++
		case strings.HasPrefix(name, "noise"), strings.HasPrefix(name, "panic"):
			stats.NoiseTraders++
		case strings.HasPrefix(name, "twap"), strings.HasPrefix(name, "buyer"),
			strings.HasPrefix(name, "seller"), strings.HasPrefix(name, "desperate"):
			stats.MandatedAgents++
		}
	}

	return stats
}
