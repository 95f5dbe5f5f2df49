package app

import (
	"context"
	"errors"
	"log/slog"

	"bookstore/internal/domain"
)

// ErrInvalidPostalCode indicates a postal code that is not eight digits.
var ErrInvalidPostalCode = errors.New("postal code must have 8 digits")

// ShippingService looks up postal codes and manages saved addresses.
type ShippingService struct {
	shipping domain.ShippingGateway
	logger   *slog.Logger
}

// NewShippingService creates a ShippingService.
func NewShippingService(shipping domain.ShippingGateway, logger *slog.Logger) *ShippingService {
	return &ShippingService{shipping: shipping, logger: logger}
}

// Lookup resolves a postal code and prefills draft with the result.
func (s *ShippingService) Lookup(ctx context.Context, postalCode string, draft domain.AddressDraft) (domain.AddressDraft, error) {
	cep := Digits(postalCode)
	if len(cep) != 8 {
		return draft, ErrInvalidPostalCode
	}
	info, err := s.shipping.LookupPostalCode(ctx, cep)
	if err != nil {
		return draft, err
	}
	return info.Prefill(draft), nil
}

// Addresses returns the visitor's saved active addresses.
func (s *ShippingService) Addresses(ctx context.Context, v *Visitor) ([]domain.Address, error) {
	sess := v.Session.Current()
	if !sess.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	all, err := s.shipping.ListAddresses(v.Session.Context(ctx), sess.User.ID)
	if err != nil {
		return nil, ExpireOnUnauthorized(ctx, v, err, s.logger)
	}
	out := all[:0]
	for _, a := range all {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

// UpdateAddress replaces the fields of a saved address.
func (s *ShippingService) UpdateAddress(ctx context.Context, v *Visitor, id int64, d domain.AddressDraft) (*domain.Address, error) {
	if !v.Session.Current().Authenticated() {
		return nil, ErrNotAuthenticated
	}
	a, err := s.shipping.UpdateAddress(v.Session.Context(ctx), id, d)
	if err != nil {
		return nil, ExpireOnUnauthorized(ctx, v, err, s.logger)
	}
	return a, nil
}

// RemoveAddress deactivates a saved address.
func (s *ShippingService) RemoveAddress(ctx context.Context, v *Visitor, id int64) error {
	if !v.Session.Current().Authenticated() {
		return ErrNotAuthenticated
	}
	if err := s.shipping.DeactivateAddress(v.Session.Context(ctx), id); err != nil {
		return ExpireOnUnauthorized(ctx, v, err, s.logger)
	}
	return nil
}
