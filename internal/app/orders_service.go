package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"bookstore/internal/domain"
)

var (
	// ErrOrderNotCancellable indicates the order has progressed past the
	// point where the customer may cancel it.
	ErrOrderNotCancellable = errors.New("order can no longer be cancelled")
	// ErrInvalidStatus indicates an unknown order status.
	ErrInvalidStatus = errors.New("invalid order status")
)

// OrderService lists and manages orders.
type OrderService struct {
	orders   domain.OrderGateway
	payments domain.PaymentGateway
	logger   *slog.Logger
}

// NewOrderService creates an OrderService.
func NewOrderService(orders domain.OrderGateway, payments domain.PaymentGateway, logger *slog.Logger) *OrderService {
	return &OrderService{orders: orders, payments: payments, logger: logger}
}

// History returns the visitor's own orders.
func (s *OrderService) History(ctx context.Context, v *Visitor) ([]domain.Order, error) {
	sess := v.Session.Current()
	if !sess.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	orders, err := s.orders.ListOrders(v.Session.Context(ctx), domain.OrderFilter{UserID: sess.User.ID})
	if err != nil {
		return nil, ExpireOnUnauthorized(ctx, v, err, s.logger)
	}
	return orders, nil
}

// Get returns one of the visitor's orders. Orders of other users are not
// found unless the visitor is an admin.
func (s *OrderService) Get(ctx context.Context, v *Visitor, id int64) (*domain.Order, error) {
	sess := v.Session.Current()
	if !sess.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	o, err := s.orders.GetOrder(v.Session.Context(ctx), id)
	if err != nil {
		return nil, ExpireOnUnauthorized(ctx, v, err, s.logger)
	}
	if o.UserID != sess.User.ID && !sess.Admin() {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	return o, nil
}

// Cancel cancels one of the visitor's orders while it is still pending or
// processing.
func (s *OrderService) Cancel(ctx context.Context, v *Visitor, id int64) (*domain.Order, error) {
	o, err := s.Get(ctx, v, id)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.OrderPending && o.Status != domain.OrderProcessing {
		return nil, ErrOrderNotCancellable
	}
	o, err = s.orders.UpdateOrderStatus(v.Session.Context(ctx), id, domain.OrderCancelled)
	if err != nil {
		return nil, ExpireOnUnauthorized(ctx, v, err, s.logger)
	}
	return o, nil
}

// Payment returns the status of a payment.
func (s *OrderService) Payment(ctx context.Context, v *Visitor, id int64) (*domain.PaymentReceipt, error) {
	if !v.Session.Current().Authenticated() {
		return nil, ErrNotAuthenticated
	}
	r, err := s.payments.Get(v.Session.Context(ctx), id)
	if err != nil {
		return nil, ExpireOnUnauthorized(ctx, v, err, s.logger)
	}
	return r, nil
}

// AdminList returns every order, optionally filtered by status.
func (s *OrderService) AdminList(ctx context.Context, v *Visitor, status string) ([]domain.Order, error) {
	f := domain.OrderFilter{}
	if status != "" {
		st, err := ParseOrderStatus(status)
		if err != nil {
			return nil, err
		}
		f.Status = st
	}
	orders, err := s.orders.ListOrders(v.Session.Context(ctx), f)
	if err != nil {
		return nil, ExpireOnUnauthorized(ctx, v, err, s.logger)
	}
	return orders, nil
}

// AdminUpdateStatus moves an order to status.
func (s *OrderService) AdminUpdateStatus(ctx context.Context, v *Visitor, id int64, status string) (*domain.Order, error) {
	st, err := ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.UpdateOrderStatus(v.Session.Context(ctx), id, st)
	if err != nil {
		return nil, ExpireOnUnauthorized(ctx, v, err, s.logger)
	}
	return o, nil
}

// ParseOrderStatus validates s as an order status.
func ParseOrderStatus(s string) (domain.OrderStatus, error) {
	st := domain.OrderStatus(domain.NormalizeKey(s))
	if !slices.Contains(domain.AllOrderStatuses, st) {
		return "", fmt.Errorf("%w: %s", ErrInvalidStatus, strconv.Quote(s))
	}
	return st, nil
}
