package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"

	"bookstore/internal/domain"
)

// SettingsService is the public settings gate. It holds the operator's
// visibility rules, persists them, and notifies subscribers on change.
type SettingsService struct {
	slot   domain.Slot[domain.PublicSettings]
	logger *slog.Logger

	mu      sync.RWMutex
	current domain.PublicSettings

	subMu sync.Mutex
	subs  map[chan domain.PublicSettings]struct{}
}

// NewSettingsService seeds the gate from slot. Missing or malformed stored
// settings are unconfigured and show everything.
func NewSettingsService(ctx context.Context, slot domain.Slot[domain.PublicSettings], logger *slog.Logger) *SettingsService {
	return &SettingsService{
		slot:    slot,
		logger:  logger,
		current: slot.Read(ctx, domain.PublicSettings{}).Sanitize(),
		subs:    make(map[chan domain.PublicSettings]struct{}),
	}
}

// Current returns the active settings.
func (s *SettingsService) Current() domain.PublicSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// IsCategoryVisible reports whether products of category may be shown.
func (s *SettingsService) IsCategoryVisible(category string) bool {
	return s.Current().Categories.Allows(category)
}

// IsPaymentMethodEnabled reports whether m may be offered at checkout.
func (s *SettingsService) IsPaymentMethodEnabled(m domain.PaymentMethod) bool {
	return s.Current().PaymentMethods.Allows(string(m))
}

// EnabledPaymentMethods lists the methods the checkout selector shows.
func (s *SettingsService) EnabledPaymentMethods() []domain.PaymentMethod {
	rule := s.Current().PaymentMethods
	out := make([]domain.PaymentMethod, 0, len(domain.AllPaymentMethods))
	for _, m := range domain.AllPaymentMethods {
		if rule.Allows(string(m)) {
			out = append(out, m)
		}
	}
	return out
}

// VisibleCategories lists the categories the storefront shows.
func (s *SettingsService) VisibleCategories() []string {
	rule := s.Current().Categories
	return slices.DeleteFunc(slices.Clone(domain.AllCategories), func(c string) bool {
		return !rule.Allows(c)
	})
}

// FilterProducts drops products in hidden categories.
func (s *SettingsService) FilterProducts(products []domain.Product) []domain.Product {
	rule := s.Current().Categories
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if rule.Allows(p.Category) {
			out = append(out, p)
		}
	}
	return out
}

// Save replaces the settings, dropping unknown values, and notifies
// subscribers. A *PersistError means the new settings are active but were
// not stored.
func (s *SettingsService) Save(ctx context.Context, next domain.PublicSettings) (domain.PublicSettings, error) {
	next = next.Sanitize()

	s.mu.Lock()
	s.current = next
	err := s.slot.Write(ctx, next)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("public settings not persisted", "error", err)
	}
	s.publish(next)
	return next, persisted("public settings", err)
}

// Refresh rereads the stored settings, picking up writes made by another
// process, and notifies subscribers if they changed.
func (s *SettingsService) Refresh(ctx context.Context) bool {
	stored := s.slot.Read(ctx, domain.PublicSettings{}).Sanitize()

	s.mu.Lock()
	changed := !sameSettings(s.current, stored)
	if changed {
		s.current = stored
	}
	s.mu.Unlock()

	if changed {
		s.logger.Info("public settings changed in storage")
		s.publish(stored)
	}
	return changed
}

// Subscribe returns a channel receiving the latest settings after each
// change, and a func that unsubscribes and closes it. A slow subscriber
// only ever sees the newest value.
func (s *SettingsService) Subscribe() (<-chan domain.PublicSettings, func()) {
	ch := make(chan domain.PublicSettings, 1)

	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *SettingsService) publish(v domain.PublicSettings) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

func sameSettings(a, b domain.PublicSettings) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ja) == string(jb)
}
