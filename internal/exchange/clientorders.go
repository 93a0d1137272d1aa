package exchange

// clientOrders tracks the orders one client owns, keyed by order id. It is
// how cancellations are authorized: a client can only reach its own orders.
// Access is guarded by the Exchange mutex.
type clientOrders struct {
	clientID int64
	orders   map[int64]*Order
}

func newClientOrders(clientID int64) *clientOrders {
	return &clientOrders{clientID: clientID, orders: make(map[int64]*Order)}
}

// add records an order if it belongs to this client.
func (c *clientOrders) add(o *Order) bool {
	if o.clientID != c.clientID {
		return false
	}
	c.orders[o.id] = o
	return true
}

// find returns the order with the given id, nil if this client does not own
// it.
func (c *clientOrders) find(orderID int64) *Order {
	return c.orders[orderID]
}
