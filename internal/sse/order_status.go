package sse

import (
	"context"
	"sync"

	"ms-storefront/internal/models"
)

// OrderStatusEmitter fans order status changes out to SSE clients watching
// a single order.
type OrderStatusEmitter struct {
	// key: orderID, value: client channels
	clients     map[string][]chan models.OrderStatusUpdate
	clientMutex sync.RWMutex
}

func NewOrderStatusEmitter() *OrderStatusEmitter {
	return &OrderStatusEmitter{
		clients: make(map[string][]chan models.OrderStatusUpdate),
	}
}

// Subscribe registers a client for orderID. The channel is closed once ctx
// is done.
func (e *OrderStatusEmitter) Subscribe(ctx context.Context, orderID string) <-chan models.OrderStatusUpdate {
	clientChan := make(chan models.OrderStatusUpdate, 10)

	e.clientMutex.Lock()
	e.clients[orderID] = append(e.clients[orderID], clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(orderID, clientChan)
	}()

	return clientChan
}

// EmitOrderStatus broadcasts to every client of the order without blocking.
func (e *OrderStatusEmitter) EmitOrderStatus(update models.OrderStatusUpdate) {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()

	for _, clientChan := range e.clients[update.OrderID] {
		select {
		case clientChan <- update:
		default:
			// slow client, drop
		}
	}
}

func (e *OrderStatusEmitter) removeClient(orderID string, clientChan chan models.OrderStatusUpdate) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	clients := e.clients[orderID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[orderID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[orderID]) == 0 {
		delete(e.clients, orderID)
	}
}

func (e *OrderStatusEmitter) ClientCount(orderID string) int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients[orderID])
}
