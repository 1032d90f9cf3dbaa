package memory

import (
	"context"
	"sync"

	"auction-engine/internal/domain"
)

// PurchaseOrderBook records purchase order requests in memory. Requests are
// keyed by reference, so a repeated request for the same reference is a no-op.
type PurchaseOrderBook struct {
	mu       sync.Mutex
	orders   map[string]*domain.PurchaseOrderRequest
	requests int
}

func NewPurchaseOrderBook() *PurchaseOrderBook {
	return &PurchaseOrderBook{orders: make(map[string]*domain.PurchaseOrderRequest)}
}

func (b *PurchaseOrderBook) RequestPurchaseOrder(ctx context.Context, req *domain.PurchaseOrderRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests++
	if _, ok := b.orders[req.Reference]; !ok {
		order := *req
		b.orders[req.Reference] = &order
	}
	return req.Reference, nil
}

// Orders returns every distinct order recorded.
func (b *PurchaseOrderBook) Orders() []*domain.PurchaseOrderRequest {
	b.mu.Lock()
	defer b.mu.Unlock()

	orders := make([]*domain.PurchaseOrderRequest, 0, len(b.orders))
	for _, o := range b.orders {
		order := *o
		orders = append(orders, &order)
	}
	return orders
}

// Requests counts calls, including repeats.
func (b *PurchaseOrderBook) Requests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}
