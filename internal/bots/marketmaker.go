package bots

import (
	"time"

	"github.com/shopspring/decimal"

	"exchange/internal/exchange"
)

// MMConfig configures a market maker bot.
type MMConfig struct {
	Name              string
	Ticker            string
	HalfSpread        decimal.Decimal // distance from reference to the first level
	SizePerLevel      int64           // quantity per price level
	Levels            int             // number of levels on each side
	QuoteInterval     time.Duration   // how often to re-quote
	MaxPosition       int64           // stop quoting a side past this position
	InventorySkew     decimal.Decimal // price shift per unit of inventory
	WidenOnVolatility bool            // widen spread when the reference jumps around
}

// MarketMakerBot provides liquidity around the reference price. Each requote
// cancels the previous quotes and lays fresh levels on both sides, shifted
// down when long and up when short.
type MarketMakerBot struct {
	*BaseBot
	config MMConfig

	lastRef      decimal.Decimal
	priceChanges []decimal.Decimal
}

func NewMarketMakerBot(config MMConfig, ex *exchange.Exchange, feed *ReferenceFeed) *MarketMakerBot {
	return &MarketMakerBot{
		BaseBot: NewBaseBot(config.Name, config.Ticker, ex, feed),
		config:  config,
	}
}

func (mm *MarketMakerBot) Start() {
	go mm.quoteLoop()
}

func (mm *MarketMakerBot) quoteLoop() {
	priceCh := mm.feed.Subscribe()
	defer mm.feed.Unsubscribe(priceCh)

	mm.requote()

	ticker := time.NewTicker(mm.config.QuoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-priceCh:
			mm.requote()
		case <-ticker.C:
			mm.requote()
		case <-mm.stopCh:
			mm.CancelAllOrders()
			return
		}
	}
}

func (mm *MarketMakerBot) requote() {
	mm.CancelAllOrders()

	ref := mm.feed.Fuzzed()
	if ref.IsZero() {
		return
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()

	// Track how much the reference has been moving.
	if !mm.lastRef.IsZero() {
		change := ref.Sub(mm.lastRef).Abs()
		mm.priceChanges = append(mm.priceChanges, change)
		if len(mm.priceChanges) > 20 {
			mm.priceChanges = mm.priceChanges[1:]
		}
	}
	mm.lastRef = ref

	spread := mm.config.HalfSpread
	if mm.config.WidenOnVolatility && len(mm.priceChanges) > 5 {
		avgChange := averageDecimal(mm.priceChanges)
		if avgChange.GreaterThan(spread) {
			spread = avgChange.Mul(decimal.NewFromFloat(1.5))
		}
	}

	// Inventory skew: long lowers both sides (eager to sell, reluctant to
	// buy), short raises both.
	skew := decimal.Zero
	if !mm.config.InventorySkew.IsZero() && mm.position != 0 {
		skew = mm.config.InventorySkew.Mul(decimal.NewFromInt(mm.position))
	}

	canBuy := mm.config.MaxPosition == 0 || mm.position < mm.config.MaxPosition
	canSell := mm.config.MaxPosition == 0 || mm.position > -mm.config.MaxPosition

	if canBuy {
		for i := 1; i <= mm.config.Levels; i++ {
			price := ref.Sub(spread.Mul(decimal.NewFromInt(int64(i)))).Sub(skew)
			if !price.IsPositive() {
				continue
			}
			mm.submitLocked(exchange.Buy, exchange.Limit, price, mm.config.SizePerLevel)
		}
	}

	if canSell {
		for i := 1; i <= mm.config.Levels; i++ {
			price := ref.Add(spread.Mul(decimal.NewFromInt(int64(i)))).Sub(skew)
			if !price.IsPositive() {
				continue
			}
			mm.submitLocked(exchange.Sell, exchange.Limit, price, mm.config.SizePerLevel)
		}
	}
}

// Preset market maker configurations

// NewTightMM quotes a narrow spread with small size and fast requotes.
func NewTightMM(ticker string, ex *exchange.Exchange, feed *ReferenceFeed) *MarketMakerBot {
	return NewMarketMakerBot(MMConfig{
		Name:              "mm_tight",
		Ticker:            ticker,
		HalfSpread:        decimal.New(5, -2), // 0.05
		SizePerLevel:      20,
		Levels:            3,
		QuoteInterval:     500 * time.Millisecond,
		MaxPosition:       500,
		InventorySkew:     decimal.New(1, -4),
		WidenOnVolatility: true,
	}, ex, feed)
}

// NewWideMM quotes a wide spread with large size and slow requotes.
func NewWideMM(ticker string, ex *exchange.Exchange, feed *ReferenceFeed) *MarketMakerBot {
	return NewMarketMakerBot(MMConfig{
		Name:              "mm_wide",
		Ticker:            ticker,
		HalfSpread:        decimal.New(25, -2), // 0.25
		SizePerLevel:      200,
		Levels:            3,
		QuoteInterval:     2 * time.Second,
		MaxPosition:       2000,
		InventorySkew:     decimal.New(5, -5),
		WidenOnVolatility: false,
	}, ex, feed)
}

// NewAdaptiveMM leans hard on inventory skew and widens under volatility.
func NewAdaptiveMM(ticker string, ex *exchange.Exchange, feed *ReferenceFeed) *MarketMakerBot {
	return NewMarketMakerBot(MMConfig{
		Name:              "mm_adaptive",
		Ticker:            ticker,
		HalfSpread:        decimal.New(1, -1), // 0.10
		SizePerLevel:      50,
		Levels:            4,
		QuoteInterval:     time.Second,
		MaxPosition:       1000,
		InventorySkew:     decimal.New(2, -4),
		WidenOnVolatility: true,
	}, ex, feed)
}

// NervousMM pulls its quotes entirely for a while after a big reference move.
type NervousMM struct {
	*MarketMakerBot
	volatilityThreshold decimal.Decimal
	pullDuration        time.Duration
	pulledUntil         time.Time
	lastSeen            decimal.Decimal
}

func NewNervousMM(ticker string, ex *exchange.Exchange, feed *ReferenceFeed) *NervousMM {
	base := NewMarketMakerBot(MMConfig{
		Name:              "mm_nervous",
		Ticker:            ticker,
		HalfSpread:        decimal.New(1, -1),
		SizePerLevel:      30,
		Levels:            2,
		QuoteInterval:     time.Second,
		MaxPosition:       300,
		InventorySkew:     decimal.New(3, -4),
		WidenOnVolatility: true,
	}, ex, feed)

	return &NervousMM{
		MarketMakerBot:      base,
		volatilityThreshold: decimal.New(2, -1), // a 0.20 jump pulls quotes
		pullDuration:        5 * time.Second,
	}
}

func (mm *NervousMM) Start() {
	go mm.nervousQuoteLoop()
}

func (mm *NervousMM) nervousQuoteLoop() {
	priceCh := mm.feed.Subscribe()
	defer mm.feed.Unsubscribe(priceCh)

	ticker := time.NewTicker(mm.config.QuoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-priceCh:
			mm.nervousRequote()
		case <-ticker.C:
			mm.nervousRequote()
		case <-mm.stopCh:
			mm.CancelAllOrders()
			return
		}
	}
}

func (mm *NervousMM) nervousRequote() {
	if time.Now().Before(mm.pulledUntil) {
		mm.CancelAllOrders()
		return
	}

	ref := mm.feed.Fuzzed()
	if !mm.lastSeen.IsZero() {
		change := ref.Sub(mm.lastSeen).Abs()
		if change.GreaterThan(mm.volatilityThreshold) {
			mm.CancelAllOrders()
			mm.pulledUntil = time.Now().Add(mm.pullDuration)
			mm.lastSeen = ref
			return
		}
	}
	mm.lastSeen = ref

	mm.MarketMakerBot.requote()
}

func averageDecimal(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}
