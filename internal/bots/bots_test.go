package bots

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"exchange/internal/exchange"
)

func setupTestEnv(t *testing.T) (*exchange.Exchange, *ReferenceFeed) {
	t.Helper()

	ex := exchange.New()
	ex.Start()
	ex.RegisterInstrument("SPY")
	t.Cleanup(ex.Close)

	// Zero fuzz so every bot sees the same reference. The feed is not
	// started; tests drive the bots directly.
	feed := NewReferenceFeed(decimal.NewFromInt(100), 50*time.Millisecond, decimal.New(5, -2), decimal.Zero)
	return ex, feed
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestMarketMakerQuotesBothSides(t *testing.T) {
	ex, feed := setupTestEnv(t)

	mm := NewTightMM("SPY", ex, feed)
	if mm.Name() != "mm_tight" {
		t.Errorf("expected name 'mm_tight', got '%s'", mm.Name())
	}
	if mm.Position() != 0 {
		t.Errorf("expected initial position 0, got %d", mm.Position())
	}

	mm.requote()

	inst, err := ex.Instrument("SPY")
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "quotes on both sides", func() bool {
		return inst.BidVolume() > 0 && inst.AskVolume() > 0
	})

	if !inst.BestBid().LessThan(inst.BestAsk()) {
		t.Errorf("best bid %s should be below best ask %s", inst.BestBid(), inst.BestAsk())
	}
}

func TestMarketMakerRequoteReplacesOldQuotes(t *testing.T) {
	ex, feed := setupTestEnv(t)

	mm := NewTightMM("SPY", ex, feed)
	inst, _ := ex.Instrument("SPY")

	perSide := mm.config.SizePerLevel * int64(mm.config.Levels)

	mm.requote()
	waitFor(t, "first quotes", func() bool {
		return inst.BidVolume() == perSide && inst.AskVolume() == perSide
	})

	mm.requote()
	waitFor(t, "requoted volume", func() bool {
		return inst.BidVolume() == perSide && inst.AskVolume() == perSide
	})
}

func TestMarketMakerRespectsMaxPosition(t *testing.T) {
	ex, feed := setupTestEnv(t)

	mm := NewMarketMakerBot(MMConfig{
		Name:          "mm_test",
		Ticker:        "SPY",
		HalfSpread:    decimal.New(5, -2),
		SizePerLevel:  10,
		Levels:        2,
		QuoteInterval: time.Second,
		MaxPosition:   100,
	}, ex, feed)

	mm.mu.Lock()
	mm.position = 100 // at the long limit
	mm.mu.Unlock()

	mm.requote()

	inst, _ := ex.Instrument("SPY")
	waitFor(t, "ask quotes", func() bool {
		return inst.AskVolume() == 20
	})
	if inst.BidVolume() != 0 {
		t.Errorf("expected no bids at max long position, got volume %d", inst.BidVolume())
	}
}

func TestPositionFromOrderUpdates(t *testing.T) {
	ex, feed := setupTestEnv(t)

	bot := NewBaseBot("test_bot", "SPY", ex, feed)

	bot.mu.Lock()
	bot.orders[42] = &orderState{side: exchange.Buy}
	bot.mu.Unlock()

	bot.NotifyOrder(42, decimal.Zero, 60, "PARTIALLY_FILLED")
	if bot.Position() != 60 {
		t.Errorf("expected position 60, got %d", bot.Position())
	}

	// Executed is cumulative, only the delta counts.
	bot.NotifyOrder(42, decimal.Zero, 100, "FILLED")
	if bot.Position() != 100 {
		t.Errorf("expected position 100, got %d", bot.Position())
	}

	// Terminal orders are forgotten.
	bot.NotifyOrder(42, decimal.Zero, 150, "FILLED")
	if bot.Position() != 100 {
		t.Errorf("update for forgotten order should not move position, got %d", bot.Position())
	}
}

func TestPositionTracksLiveFills(t *testing.T) {
	ex, feed := setupTestEnv(t)

	seller := NewBaseBot("seller", "SPY", ex, feed)
	buyer := NewBaseBot("buyer", "SPY", ex, feed)

	if _, err := seller.submit(exchange.Sell, exchange.Limit, decimal.NewFromInt(10), 100); err != nil {
		t.Fatalf("sell submit failed: %v", err)
	}

	inst, _ := ex.Instrument("SPY")
	waitFor(t, "resting ask", func() bool { return inst.AskVolume() == 100 })

	if _, err := buyer.submit(exchange.Buy, exchange.Market, decimal.Zero, 60); err != nil {
		t.Fatalf("buy submit failed: %v", err)
	}

	waitFor(t, "buyer position", func() bool { return buyer.Position() == 60 })
	waitFor(t, "seller position", func() bool { return seller.Position() == -60 })
}

func TestCancelAllOrders(t *testing.T) {
	ex, feed := setupTestEnv(t)

	bot := NewBaseBot("canceller", "SPY", ex, feed)
	bot.submit(exchange.Buy, exchange.Limit, decimal.NewFromInt(9), 50)
	bot.submit(exchange.Buy, exchange.Limit, decimal.NewFromInt(8), 50)

	inst, _ := ex.Instrument("SPY")
	waitFor(t, "resting bids", func() bool { return inst.BidVolume() == 100 })

	bot.CancelAllOrders()
	waitFor(t, "empty bid book", func() bool { return inst.BidVolume() == 0 })
}

func TestNoiseTraderTradesAgainstSeededBook(t *testing.T) {
	ex, feed := setupTestEnv(t)

	liquidity := NewBaseBot("liquidity", "SPY", ex, feed)
	liquidity.submit(exchange.Buy, exchange.Limit, decimal.NewFromInt(99), 1000)
	liquidity.submit(exchange.Sell, exchange.Limit, decimal.NewFromInt(101), 1000)

	inst, _ := ex.Instrument("SPY")
	waitFor(t, "seeded book", func() bool {
		return inst.BidVolume() == 1000 && inst.AskVolume() == 1000
	})

	noise := NewRandomSmall("noise_test", "SPY", ex, feed)
	if noise.Name() != "noise_test" {
		t.Errorf("expected name 'noise_test', got '%s'", noise.Name())
	}

	noise.placeRandomOrder()

	// Whichever side it picked, it traded against resting liquidity.
	waitFor(t, "noise trade", func() bool { return inst.BuyVolume() > 0 })
}

func TestMandatedAgentWorksItsQuota(t *testing.T) {
	ex, feed := setupTestEnv(t)

	liquidity := NewBaseBot("liquidity", "SPY", ex, feed)
	liquidity.submit(exchange.Sell, exchange.Limit, decimal.NewFromInt(99), 1000)

	inst, _ := ex.Instrument("SPY")
	waitFor(t, "seeded ask", func() bool { return inst.AskVolume() == 1000 })

	agent := NewTWAPBuyer("agent_test", "SPY", 1000, 10*time.Minute, ex, feed)
	if agent.Progress() != 0 {
		t.Errorf("expected initial progress 0, got %f", agent.Progress())
	}

	// The patient path shades a limit just under the reference, which
	// still crosses the seeded ask at 99.
	agent.startTime = time.Now()
	agent.executeSlice(50)

	waitFor(t, "slice filled", func() bool { return agent.Position() == 50 })
	if agent.Progress() != 0.05 {
		t.Errorf("expected progress 0.05, got %f", agent.Progress())
	}
}

func TestReferenceFeedWalksAndNotifies(t *testing.T) {
	feed := NewReferenceFeed(decimal.NewFromInt(100), 10*time.Millisecond, decimal.New(5, -1), decimal.Zero)
	ch := feed.Subscribe()
	feed.Start()
	defer feed.Stop()

	select {
	case tick := <-ch:
		if !tick.Price.IsPositive() {
			t.Errorf("walked price should stay positive, got %s", tick.Price)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick received")
	}
}

func TestReferenceFeedFuzzBounds(t *testing.T) {
	fuzz := decimal.New(1, -1)
	feed := NewReferenceFeed(decimal.NewFromInt(50), time.Hour, decimal.Zero, fuzz)

	diff := feed.Fuzzed().Sub(feed.Price()).Abs()
	if diff.GreaterThan(fuzz) {
		t.Errorf("fuzzed price off by %s, more than the %s bound", diff, fuzz)
	}
}

func TestBotManager(t *testing.T) {
	ex, feed := setupTestEnv(t)

	manager := NewBotManager()
	manager.AddBot(NewTightMM("SPY", ex, feed))
	manager.AddBot(NewRandomSmall("noise_1", "SPY", ex, feed))

	if manager.Count() != 2 {
		t.Errorf("expected 2 bots, got %d", manager.Count())
	}

	manager.StartAll()
	manager.StopAll()
}

func TestCreateEcosystem(t *testing.T) {
	ex, feed := setupTestEnv(t)

	manager := CreateEcosystem(ex, feed, "SPY", 15*time.Minute)

	// 4 MMs + 5 directional + 6 noise + 2 panic + 3 mandated
	if manager.Count() != 20 {
		t.Errorf("expected 20 bots, got %d", manager.Count())
	}

	stats := manager.Stats()
	if stats.MarketMakers != 4 {
		t.Errorf("expected 4 market makers, got %d", stats.MarketMakers)
	}
	if stats.Directional != 5 {
		t.Errorf("expected 5 directional bots, got %d", stats.Directional)
	}
	if stats.NoiseTraders != 8 {
		t.Errorf("expected 8 noise traders, got %d", stats.NoiseTraders)
	}
	if stats.MandatedAgents != 3 {
		t.Errorf("expected 3 mandated agents, got %d", stats.MandatedAgents)
	}
	if len(stats.BotNames) != 20 {
		t.Errorf("expected 20 bot names, got %d", len(stats.BotNames))
	}
}

func TestCreateMinimalEcosystem(t *testing.T) {
	ex, feed := setupTestEnv(t)

	manager := CreateMinimalEcosystem(ex, feed, "SPY", 15*time.Minute)
	if manager.Count() != 7 {
		t.Errorf("expected 7 bots, got %d", manager.Count())
	}
}
