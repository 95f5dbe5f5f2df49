package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"bookstore/internal/domain"
)

// VisitorStore opens the durable slots of one visitor.
type VisitorStore interface {
	CartSlot(visitorID string) domain.Slot[[]domain.CartEntry]
	FavoritesSlot(visitorID string) domain.Slot[[]string]
	SessionSlot(visitorID string) domain.Slot[domain.Session]
}

// Visitor groups the state containers of one browser.
type Visitor struct {
	ID        string
	Cart      *Cart
	Favorites *Favorites
	Session   *SessionHolder

	checkout atomic.Bool
	lastSeen atomic.Int64

	mu   sync.Mutex
	last *CheckoutResult
}

// LastCheckout returns the result of the visitor's latest checkout
// attempt, if any.
func (v *Visitor) LastCheckout() *CheckoutResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

func (v *Visitor) setLastCheckout(r *CheckoutResult) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.last = r
}

// CheckoutInFlight reports whether a checkout attempt is running.
func (v *Visitor) CheckoutInFlight() bool {
	return v.checkout.Load()
}

// Registry hands out visitors by id, seeding each from its durable slots on
// first access.
type Registry struct {
	store VisitorStore
	fee   decimal.Decimal
	now   func() time.Time

	mu       sync.Mutex
	visitors map[string]*Visitor
}

// NewRegistry creates a registry over store. fee is the cart shipping fee.
func NewRegistry(store VisitorStore, fee decimal.Decimal) *Registry {
	return &Registry{
		store:    store,
		fee:      fee,
		now:      time.Now,
		visitors: make(map[string]*Visitor),
	}
}

// Visitor returns the containers for id, creating them if needed.
func (r *Registry) Visitor(ctx context.Context, id string) *Visitor {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visitors[id]
	if !ok {
		v = &Visitor{
			ID:        id,
			Cart:      NewCart(ctx, r.store.CartSlot(id), r.fee),
			Favorites: NewFavorites(ctx, r.store.FavoritesSlot(id)),
			Session:   NewSessionHolder(ctx, r.store.SessionSlot(id)),
		}
		r.visitors[id] = v
	}
	v.lastSeen.Store(r.now().UnixNano())
	return v
}

// Sweep forgets visitors idle for longer than ttl. Their state is reloaded
// from storage on the next access. Visitors with a checkout in flight are
// kept. It returns the number of visitors dropped.
func (r *Registry) Sweep(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-ttl).UnixNano()
	dropped := 0
	for id, v := range r.visitors {
		if v.lastSeen.Load() < cutoff && !v.checkout.Load() {
			delete(r.visitors, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of visitors held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}
