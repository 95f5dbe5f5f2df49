package durable

import (
	"log/slog"

	"bookstore/internal/domain"
)

// Visitors opens the per-visitor slots. Cart and favorites live in KV
// under "visitor/<id>"; the session lives in Sessions under the same prefix.
type Visitors struct {
	KV       domain.KV
	Sessions domain.KV
	Logger   *slog.Logger
}

func (v Visitors) options(id string) []Option {
	l := v.Logger
	if l == nil {
		l = slog.Default()
	}
	return []Option{WithLogger(l.With("visitor", id))}
}

// CartSlot returns the cart slot of visitor id.
func (v Visitors) CartSlot(id string) domain.Slot[[]domain.CartEntry] {
	return NewSlot[[]domain.CartEntry](Namespace(v.KV, "visitor/"+id), KeyCart, v.options(id)...)
}

// FavoritesSlot returns the favorites slot of visitor id.
func (v Visitors) FavoritesSlot(id string) domain.Slot[[]string] {
	return NewSlot[[]string](Namespace(v.KV, "visitor/"+id), KeyFavorites, v.options(id)...)
}

// SessionSlot returns the session slot of visitor id.
func (v Visitors) SessionSlot(id string) domain.Slot[domain.Session] {
	kv := v.Sessions
	if kv == nil {
		kv = v.KV
	}
	return NewSlot[domain.Session](Namespace(kv, "visitor/"+id), KeySession, v.options(id)...)
}
