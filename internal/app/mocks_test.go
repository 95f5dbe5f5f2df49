package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"bookstore/internal/adapter/durable"
	"bookstore/internal/adapter/memory"
	"bookstore/internal/app"
	"bookstore/internal/domain"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func book(id, price, category string) domain.Product {
	return domain.Product{ID: id, Title: "Book " + id, Author: "Author", Price: money(price), Category: category}
}

func newRegistry() (*app.Registry, *memory.DB) {
	kv := memory.New()
	return app.NewRegistry(storeOver(kv), domain.DefaultShippingFee), kv
}

// mockSlot is a domain.Slot whose writes can be made to fail.
type mockSlot[T any] struct {
	mu      sync.Mutex
	value   T
	stored  bool
	writeFn func(v T) error
	writes  int
}

func (m *mockSlot[T]) Read(ctx context.Context, def T) T {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stored {
		return def
	}
	return m.value
}

func (m *mockSlot[T]) Write(ctx context.Context, v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.writeFn != nil {
		if err := m.writeFn(v); err != nil {
			return err
		}
	}
	m.value, m.stored = v, true
	return nil
}

func (m *mockSlot[T]) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	m.value, m.stored = zero, false
	return nil
}

var errQuota = errors.New("quota exceeded")

type mockAuth struct {
	loginFn    func(ctx context.Context, c domain.Credentials) (*domain.AuthResult, error)
	registerFn func(ctx context.Context, r domain.Registration) (*domain.AuthResult, error)
	refreshFn  func(ctx context.Context) (string, error)
	meFn       func(ctx context.Context) (*domain.User, error)
	updateFn   func(ctx context.Context, p domain.ProfileUpdate) (*domain.User, error)
	passwordFn func(ctx context.Context, p domain.PasswordChange) error
}

func (m *mockAuth) Login(ctx context.Context, c domain.Credentials) (*domain.AuthResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, c)
	}
	return nil, domain.ErrUnauthorized
}

func (m *mockAuth) Register(ctx context.Context, r domain.Registration) (*domain.AuthResult, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, r)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuth) Refresh(ctx context.Context) (string, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx)
	}
	return "", domain.ErrUnauthorized
}

func (m *mockAuth) Me(ctx context.Context) (*domain.User, error) {
	if m.meFn != nil {
		return m.meFn(ctx)
	}
	return nil, domain.ErrUnauthorized
}

func (m *mockAuth) UpdateProfile(ctx context.Context, p domain.ProfileUpdate) (*domain.User, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, p)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuth) ChangePassword(ctx context.Context, p domain.PasswordChange) error {
	if m.passwordFn != nil {
		return m.passwordFn(ctx, p)
	}
	return nil
}

type mockCatalog struct {
	listFn   func(ctx context.Context, page domain.Page) ([]domain.Product, error)
	getFn    func(ctx context.Context, id string) (*domain.Product, error)
	createFn func(ctx context.Context, in domain.BookInput) (*domain.Product, error)
	updateFn func(ctx context.Context, id string, in domain.BookInput) (*domain.Product, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockCatalog) ListBooks(ctx context.Context, page domain.Page) ([]domain.Product, error) {
	if m.listFn != nil {
		return m.listFn(ctx, page)
	}
	return nil, nil
}

func (m *mockCatalog) GetBook(ctx context.Context, id string) (*domain.Product, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockCatalog) CreateBook(ctx context.Context, in domain.BookInput) (*domain.Product, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &domain.Product{ID: "new", Title: in.Title, Price: in.Price}, nil
}

func (m *mockCatalog) UpdateBook(ctx context.Context, id string, in domain.BookInput) (*domain.Product, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, in)
	}
	return &domain.Product{ID: id, Title: in.Title, Price: in.Price}, nil
}

func (m *mockCatalog) DeleteBook(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockShipping struct {
	lookupFn     func(ctx context.Context, cep string) (*domain.PostalCodeInfo, error)
	createFn     func(ctx context.Context, a domain.NewAddress) (*domain.Address, error)
	listFn       func(ctx context.Context, userID string) ([]domain.Address, error)
	updateFn     func(ctx context.Context, id int64, d domain.AddressDraft) (*domain.Address, error)
	deactivateFn func(ctx context.Context, id int64) error
}

func (m *mockShipping) LookupPostalCode(ctx context.Context, cep string) (*domain.PostalCodeInfo, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, cep)
	}
	return nil, domain.ErrNotFound
}

func (m *mockShipping) CreateAddress(ctx context.Context, a domain.NewAddress) (*domain.Address, error) {
	if m.createFn != nil {
		return m.createFn(ctx, a)
	}
	return &domain.Address{ID: 1, UserID: a.UserID, Active: true}, nil
}

func (m *mockShipping) ListAddresses(ctx context.Context, userID string) ([]domain.Address, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockShipping) UpdateAddress(ctx context.Context, id int64, d domain.AddressDraft) (*domain.Address, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, d)
	}
	return &domain.Address{ID: id}, nil
}

func (m *mockShipping) DeactivateAddress(ctx context.Context, id int64) error {
	if m.deactivateFn != nil {
		return m.deactivateFn(ctx, id)
	}
	return nil
}

type mockOrders struct {
	createFn func(ctx context.Context, o domain.NewOrder) (*domain.Order, error)
	listFn   func(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error)
	getFn    func(ctx context.Context, id int64) (*domain.Order, error)
	statusFn func(ctx context.Context, id int64, s domain.OrderStatus) (*domain.Order, error)
}

func (m *mockOrders) CreateOrder(ctx context.Context, o domain.NewOrder) (*domain.Order, error) {
	if m.createFn != nil {
		return m.createFn(ctx, o)
	}
	return &domain.Order{ID: 10, Number: "PED-10", UserID: o.UserID, Status: domain.OrderPending}, nil
}

func (m *mockOrders) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f)
	}
	return nil, nil
}

func (m *mockOrders) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockOrders) UpdateOrderStatus(ctx context.Context, id int64, s domain.OrderStatus) (*domain.Order, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, id, s)
	}
	return &domain.Order{ID: id, Status: s}, nil
}

type mockPayments struct {
	processFn func(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentReceipt, error)
	getFn     func(ctx context.Context, id int64) (*domain.PaymentReceipt, error)
}

func (m *mockPayments) Process(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentReceipt, error) {
	if m.processFn != nil {
		return m.processFn(ctx, req)
	}
	return &domain.PaymentReceipt{ID: 100, OrderID: req.OrderID, Status: domain.PaymentApproved, Amount: req.Amount, Artifact: domain.CardArtifact{}}, nil
}

func (m *mockPayments) Get(ctx context.Context, id int64) (*domain.PaymentReceipt, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func storeOver(kv *memory.DB) app.VisitorStore {
	return durable.Visitors{KV: kv, Logger: discard}
}
