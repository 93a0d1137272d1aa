package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"exchange/internal/exchange"
	"exchange/internal/store"
)

type Server struct {
	ex          *exchange.Exchange
	hub         *Hub
	store       *store.Store
	sessions    *SessionStore
	rateLimiter *RateLimiter
	upgrader    websocket.Upgrader
	corsOrigins []string // Allowed CORS origins (empty = allow all)
}

func NewServer(ex *exchange.Exchange, st *store.Store) *Server {
	s := &Server{
		ex:          ex,
		hub:         NewHub(),
		store:       st,
		sessions:    NewSessionStore(st),
		rateLimiter: NewRateLimiter(30, 1*time.Minute), // 30 auth attempts per minute per IP
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.checkCORSOrigin(r.Header.Get("Origin"))
		},
	}
	return s
}

// SetCORSOrigins sets the allowed CORS origins.
// Pass an empty slice to allow all origins (default, for development).
func (s *Server) SetCORSOrigins(origins []string) {
	s.corsOrigins = origins
}

func (s *Server) checkCORSOrigin(origin string) bool {
	if len(s.corsOrigins) == 0 {
		return true
	}
	// Empty origin header = same-origin request, always allow
	if origin == "" {
		return true
	}
	for _, allowed := range s.corsOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	allowedOrigins := s.corsOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Auth routes, rate limited to slow down credential guessing
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimiter.Middleware)
			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/login", s.handleLogin)
		})
		r.Post("/auth/logout", s.handleLogout)

		// Client registration for REST-only consumers
		r.Post("/clients", s.registerClient)

		// Trading routes
		r.Post("/orders", s.submitOrder)
		r.Get("/orders/{id}", s.getOrder)
		r.Delete("/orders/{id}", s.cancelOrder)

		// Instruments and market data
		r.Get("/instruments", s.listInstruments)
		r.Post("/instruments", s.registerInstrument)
		r.Get("/instruments/{ticker}/stats", s.getStats)
		r.Get("/instruments/{ticker}/book", s.getBook)
		r.Get("/instruments/{ticker}/trades", s.getTrades)
	})

	// WebSocket
	r.Get("/ws", s.handleWebSocket)

	return r
}

type OrderRequest struct {
	Ticker   string `json:"ticker"`
	ClientID int64  `json:"client_id"`
	Side     string `json:"side"`  // "BUY" or "SELL"
	Type     string `json:"type"`  // "LIMIT" or "MARKET"
	Price    string `json:"price"` // decimal text, may be empty for market orders
	Quantity int64  `json:"quantity"`
}

type OrderResponse struct {
	OrderID int64 `json:"order_id"`
}

func (s *Server) submitOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	price := decimal.Zero
	if req.Price != "" {
		var err error
		price, err = decimal.NewFromString(req.Price)
		if err != nil {
			http.Error(w, "invalid price", http.StatusBadRequest)
			return
		}
	}

	id, err := s.ex.SubmitOrder(req.Ticker, req.ClientID, req.Side, req.Type, price, req.Quantity)
	switch err {
	case nil:
	case exchange.ErrUnknownTicker:
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case exchange.ErrClosed:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(OrderResponse{OrderID: id})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, clientID, ok := orderParams(w, r)
	if !ok {
		return
	}

	snap := s.ex.GetClientOrder(clientID, orderID)
	if snap == nil {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, clientID, ok := orderParams(w, r)
	if !ok {
		return
	}

	snap := s.ex.CancelOrder(clientID, orderID)
	if snap == nil {
		http.Error(w, "order not cancellable", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// orderParams pulls the order id path segment and client_id query parameter.
func orderParams(w http.ResponseWriter, r *http.Request) (orderID, clientID int64, ok bool) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return 0, 0, false
	}
	clientID, err = strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64)
	if err != nil {
		http.Error(w, "client_id required", http.StatusBadRequest)
		return 0, 0, false
	}
	return orderID, clientID, true
}

func (s *Server) registerClient(w http.ResponseWriter, r *http.Request) {
	id := s.ex.Register(nil)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"client_id": id})
}

type InstrumentRequest struct {
	Ticker string `json:"ticker"`
}

// registerInstrument starts trading a new ticker. Listing an instrument is
// an authenticated action; everything else on the trading surface is open.
func (s *Server) registerInstrument(w http.ResponseWriter, r *http.Request) {
	if s.getSession(r) == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	var req InstrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ticker == "" {
		http.Error(w, "ticker required", http.StatusBadRequest)
		return
	}
	s.ex.RegisterInstrument(req.Ticker)
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "registered"})
}

func (s *Server) listInstruments(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.ex.TradedInstruments())
}

// StatsResponse carries the full per-instrument read surface.
type StatsResponse struct {
	Ticker           string          `json:"ticker"`
	LastPrice        decimal.Decimal `json:"last_price"`
	BestBid          decimal.Decimal `json:"best_bid"`
	BestAsk          decimal.Decimal `json:"best_ask"`
	BidVolume        int64           `json:"bid_volume"`
	AskVolume        int64           `json:"ask_volume"`
	BuyVolume        int64           `json:"buy_volume"`
	SellVolume       int64           `json:"sell_volume"`
	AveragePrice     decimal.Decimal `json:"average_price"`
	AverageBuyPrice  decimal.Decimal `json:"average_buy_price"`
	AverageSellPrice decimal.Decimal `json:"average_sell_price"`
	BidVWAP          decimal.Decimal `json:"bid_vwap"`
	AskVWAP          decimal.Decimal `json:"ask_vwap"`
	BidHigh          decimal.Decimal `json:"bid_high"`
	BidLow           decimal.Decimal `json:"bid_low"`
	AskHigh          decimal.Decimal `json:"ask_high"`
	AskLow           decimal.Decimal `json:"ask_low"`
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	in, err := s.ex.Instrument(chi.URLParam(r, "ticker"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	resp := StatsResponse{
		Ticker:           in.Ticker(),
		LastPrice:        in.LastPrice(),
		BestBid:          in.BestBid(),
		BestAsk:          in.BestAsk(),
		BidVolume:        in.BidVolume(),
		AskVolume:        in.AskVolume(),
		BuyVolume:        in.BuyVolume(),
		SellVolume:       in.SellVolume(),
		AveragePrice:     in.AveragePrice(),
		AverageBuyPrice:  in.AverageBuyPrice(),
		AverageSellPrice: in.AverageSellPrice(),
		BidVWAP:          in.BidVWAP(),
		AskVWAP:          in.AskVWAP(),
		BidHigh:          in.BidHigh(),
		BidLow:           in.BidLow(),
		AskHigh:          in.AskHigh(),
		AskLow:           in.AskLow(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type BookResponse struct {
	Ticker string                   `json:"ticker"`
	Bids   []exchange.OrderSnapshot `json:"bids"`
	Asks   []exchange.OrderSnapshot `json:"asks"`
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	in, err := s.ex.Instrument(chi.URLParam(r, "ticker"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	resp := BookResponse{
		Ticker: in.Ticker(),
		Bids:   in.BidBook(),
		Asks:   in.AskBook(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) getTrades(w http.ResponseWriter, r *http.Request) {
	in, err := s.ex.Instrument(chi.URLParam(r, "ticker"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	trades, err := s.store.RecentTrades(in.Ticker(), limit)
	if err != nil {
		http.Error(w, "failed to load trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []store.TradeRow{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// handleWebSocket upgrades the connection and registers it as an exchange
// client. The welcome frame carries the assigned client id; subscriptions are
// managed with subscribe/unsubscribe frames on the socket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := newClient(s.hub, s.ex, conn)
	client.clientID = s.ex.Register(client)
	s.hub.Register(client)

	client.enqueue(map[string]interface{}{
		"type":      "welcome",
		"client_id": client.clientID,
	})

	go client.WritePump()
	go client.ReadPump()
}

// Shutdown stops internal goroutines (session cleanup, rate limiter, hub).
func (s *Server) Shutdown() {
	s.sessions.Stop()
	s.rateLimiter.Stop()
	s.hub.Stop()
}
