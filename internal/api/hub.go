package api

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"exchange/internal/exchange"
)

var (
	errClientClosed  = errors.New("websocket client closed")
	errSendBufferFull = errors.New("websocket send buffer full")
)

// Hub maintains active WebSocket connections
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.shutdown()
	}
	h.mu.Unlock()
}

// Stop closes every connected client.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.shutdown()
		delete(h.clients, client)
	}
}

// Client is one WebSocket connection. It doubles as the engine-facing
// subscriber handle: the engine delivers order updates and market data by
// calling the Notify methods, which enqueue frames for the write pump. A full
// buffer or a closed connection reports a delivery failure, and the engine
// evicts the client.
type Client struct {
	hub *Hub
	ex  *exchange.Exchange

	conn *websocket.Conn
	send chan []byte

	clientID int64

	mu     sync.Mutex
	closed bool
}

func newClient(hub *Hub, ex *exchange.Exchange, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		ex:   ex,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// shutdown marks the client closed and wakes the write pump. Safe to call
// more than once.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// enqueue marshals a frame and hands it to the write pump without blocking.
func (c *Client) enqueue(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *Client) NotifyOrder(orderID int64, avgPrice decimal.Decimal, executed int64, status string) error {
	return c.enqueue(map[string]interface{}{
		"type":      "order",
		"order_id":  orderID,
		"avg_price": avgPrice,
		"executed":  executed,
		"status":    status,
	})
}

func (c *Client) NotifyTrade(ticker string, at int64, side string, price decimal.Decimal, quantity int64) error {
	return c.enqueue(map[string]interface{}{
		"type":     "trade",
		"ticker":   ticker,
		"time":     at,
		"side":     side,
		"price":    price,
		"quantity": quantity,
	})
}

func (c *Client) NotifyQuote(ticker string, at int64, bid, ask decimal.Decimal) error {
	return c.enqueue(map[string]interface{}{
		"type":   "quote",
		"ticker": ticker,
		"time":   at,
		"bid":    bid,
		"ask":    ask,
	})
}

func (c *Client) WritePump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// wsCommand is the shape of inbound client frames.
type wsCommand struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Ticker string `json:"ticker"`
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd wsCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		switch cmd.Action {
		case "subscribe":
			if err := c.ex.Subscribe(c, cmd.Ticker); err != nil {
				c.enqueue(map[string]interface{}{"type": "error", "error": err.Error()})
			}
		case "unsubscribe":
			if err := c.ex.Unsubscribe(c, cmd.Ticker); err != nil {
				c.enqueue(map[string]interface{}{"type": "error", "error": err.Error()})
			}
		default:
			log.Printf("websocket client %d: unknown action %q", c.clientID, cmd.Action)
		}
	}
}
