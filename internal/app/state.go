// Package app holds the per-visitor state containers and the use cases that
// sequence calls to the collaborator services.
package app

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"bookstore/internal/domain"
)

// PersistError reports that a change was applied in memory but could not be
// written to durable storage. The in-memory state stays authoritative.
type PersistError struct {
	Key string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("change kept in memory, persisting %s failed: %v", e.Key, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

func persisted(key string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistError{Key: key, Err: err}
}

// Cart is an ordered collection of entries written through to a slot.
type Cart struct {
	mu      sync.Mutex
	slot    domain.Slot[[]domain.CartEntry]
	fee     decimal.Decimal
	entries []domain.CartEntry
}

// NewCart seeds a cart from slot.
func NewCart(ctx context.Context, slot domain.Slot[[]domain.CartEntry], fee decimal.Decimal) *Cart {
	return &Cart{
		slot:    slot,
		fee:     fee,
		entries: domain.Sanitize(slot.Read(ctx, nil)),
	}
}

// Add appends p with quantity 1, or increments its existing entry.
func (c *Cart) Add(ctx context.Context, p domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := domain.IndexOf(c.entries, p.ID); i >= 0 {
		c.entries[i].Quantity++
	} else {
		c.entries = append(c.entries, domain.CartEntry{Product: p, Quantity: 1})
	}
	return c.save(ctx)
}

// Increment adds one to the entry for id. Absent ids are ignored.
func (c *Cart) Increment(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := domain.IndexOf(c.entries, id)
	if i < 0 {
		return nil
	}
	c.entries[i].Quantity++
	return c.save(ctx)
}

// Decrement removes one from the entry for id, dropping the entry when it
// reaches zero. Absent ids are ignored.
func (c *Cart) Decrement(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := domain.IndexOf(c.entries, id)
	if i < 0 {
		return nil
	}
	if c.entries[i].Quantity <= 1 {
		c.entries = slices.Delete(c.entries, i, i+1)
	} else {
		c.entries[i].Quantity--
	}
	return c.save(ctx)
}

// Remove deletes the entry for id regardless of quantity.
func (c *Cart) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := domain.IndexOf(c.entries, id)
	if i < 0 {
		return nil
	}
	c.entries = slices.Delete(c.entries, i, i+1)
	return c.save(ctx)
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = nil
	return c.save(ctx)
}

// RemoveOrdered takes the ordered quantities out of the cart, keeping
// anything added after the order was placed.
func (c *Cart) RemoveOrdered(ctx context.Context, ordered []domain.CartEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, o := range ordered {
		i := domain.IndexOf(c.entries, o.Product.ID)
		if i < 0 {
			continue
		}
		if c.entries[i].Quantity <= o.Quantity {
			c.entries = slices.Delete(c.entries, i, i+1)
		} else {
			c.entries[i].Quantity -= o.Quantity
		}
	}
	return c.save(ctx)
}

func (c *Cart) save(ctx context.Context) error {
	return persisted("cart", c.slot.Write(ctx, slices.Clone(c.entries)))
}

// Entries returns a copy of the current entries in insertion order.
func (c *Cart) Entries() []domain.CartEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.entries)
}

// Summary returns the entries with freshly computed derived values.
func (c *Cart) Summary() domain.CartSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Summarize(slices.Clone(c.entries), c.fee)
}

// Subtotal is the sum of line totals.
func (c *Cart) Subtotal() decimal.Decimal { return c.Summary().Subtotal }

// Shipping is the flat fee when the cart is non-empty.
func (c *Cart) Shipping() decimal.Decimal { return c.Summary().Shipping }

// Total is subtotal plus shipping.
func (c *Cart) Total() decimal.Decimal { return c.Summary().Total }

// Count is the sum of quantities.
func (c *Cart) Count() int { return c.Summary().Count }

// Favorites is an ordered set of product ids written through to a slot.
type Favorites struct {
	mu   sync.Mutex
	slot domain.Slot[[]string]
	ids  []string
}

// NewFavorites seeds a favorites set from slot.
func NewFavorites(ctx context.Context, slot domain.Slot[[]string]) *Favorites {
	return &Favorites{slot: slot, ids: domain.Dedupe(slot.Read(ctx, nil))}
}

// Toggle flips membership of id and reports whether it is now a favorite.
func (f *Favorites) Toggle(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids, added := domain.Toggle(f.ids, id)
	f.ids = ids
	return added, persisted("favorites", f.slot.Write(ctx, slices.Clone(f.ids)))
}

// IsFavorite reports whether id is a favorite.
func (f *Favorites) IsFavorite(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.ids, id)
}

// IDs returns the favorites in insertion order.
func (f *Favorites) IDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.ids)
}

// SessionHolder holds the current user and token. Both change together.
type SessionHolder struct {
	mu      sync.Mutex
	slot    domain.Slot[domain.Session]
	current domain.Session
}

// NewSessionHolder seeds a holder from slot. A half-populated stored
// session is discarded.
func NewSessionHolder(ctx context.Context, slot domain.Slot[domain.Session]) *SessionHolder {
	s := slot.Read(ctx, domain.Session{})
	return &SessionHolder{slot: slot, current: domain.NewSession(s.User, s.Token)}
}

// Set replaces the session with user and token.
func (h *SessionHolder) Set(ctx context.Context, user domain.User, token string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.current = domain.NewSession(&user, token)
	return persisted("session", h.slot.Write(ctx, h.current))
}

// SetUser replaces the user of an established session, keeping its token.
func (h *SessionHolder) SetUser(ctx context.Context, user domain.User) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.current.Authenticated() {
		return nil
	}
	h.current = domain.NewSession(&user, h.current.Token)
	return persisted("session", h.slot.Write(ctx, h.current))
}

// SetToken replaces the token of an established session, keeping its user.
func (h *SessionHolder) SetToken(ctx context.Context, token string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.current.Authenticated() {
		return nil
	}
	h.current = domain.NewSession(h.current.User, token)
	return persisted("session", h.slot.Write(ctx, h.current))
}

// Clear drops the user and token.
func (h *SessionHolder) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.current = domain.Session{}
	return persisted("session", h.slot.Clear(ctx))
}

// Current returns a copy of the session.
func (h *SessionHolder) Current() domain.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return domain.NewSession(h.current.User, h.current.Token)
}

// Context attaches the session token to ctx for collaborator calls.
func (h *SessionHolder) Context(ctx context.Context) context.Context {
	return domain.WithToken(ctx, h.Current().Token)
}
