package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"exchange/internal/api"
	"exchange/internal/bots"
	"exchange/internal/config"
	"exchange/internal/exchange"
	"exchange/internal/store"
)

func main() {
	envFile := flag.String("env", ".env", "env file to load")
	addr := flag.String("addr", "", "HTTP listen address (overrides EXCHANGE_ADDR)")
	dbPath := flag.String("db", "", "SQLite database path (overrides EXCHANGE_DB)")
	noBots := flag.Bool("no-bots", false, "disable the trading bots")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *noBots {
		cfg.EnableBots = false
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	ex := exchange.New()
	ex.Start()

	// Every registered instrument gets its trades journaled to SQLite.
	recorder := store.NewRecorder(st)
	for _, ticker := range cfg.Tickers {
		ex.RegisterInstrument(ticker)
		if err := ex.Subscribe(recorder, ticker); err != nil {
			log.Fatalf("Failed to subscribe trade journal to %s: %v", ticker, err)
		}
	}
	log.Printf("Trading %d instruments: %v", len(cfg.Tickers), cfg.Tickers)

	// Bots run one ecosystem per instrument, each around its own
	// reference walk.
	var feeds []*bots.ReferenceFeed
	var managers []*bots.BotManager
	if cfg.EnableBots {
		for _, ticker := range cfg.Tickers {
			feed := bots.NewReferenceFeed(
				cfg.ReferencePrice,
				250*time.Millisecond,
				decimal.New(5, -2), // walk step up to 0.05
				decimal.New(1, -1), // MM fuzz up to 0.10
			)
			feed.Start()
			feeds = append(feeds, feed)

			manager := bots.CreateEcosystem(ex, feed, ticker, time.Hour)
			manager.StartAll()
			managers = append(managers, manager)

			stats := manager.Stats()
			log.Printf("Started %d bots on %s (%d market makers)", stats.TotalBots, ticker, stats.MarketMakers)
		}
	} else {
		log.Printf("Bots disabled")
	}

	server := api.NewServer(ex, st)
	if len(cfg.CORSOrigins) > 0 {
		server.SetCORSOrigins(cfg.CORSOrigins)
		log.Printf("CORS restricted to: %v", cfg.CORSOrigins)
	}

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("Starting exchange server on %s", cfg.Addr)
		log.Printf("Database: %s", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	// Stop order flow first, then close the pipeline, then the surfaces.
	for _, m := range managers {
		m.StopAll()
	}
	for _, f := range feeds {
		f.Stop()
	}
	log.Println("Bots stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	server.Shutdown()
	log.Println("HTTP server stopped")

	ex.Close()
	log.Println("Exchange drained")

	if err := st.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}
	log.Println("Shutdown complete")
}
