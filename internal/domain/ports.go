package domain

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by KV.Get implementations that prefer an error
// over the found flag. Slot treats it the same as a missing key.
var ErrKeyNotFound = errors.New("key not found")

// KV is the durable key-value slot port. Put replaces the whole value.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Slot is a typed durable value. Read never fails and yields def when
// nothing usable is stored. Write replaces the whole value.
type Slot[T any] interface {
	Read(ctx context.Context, def T) T
	Write(ctx context.Context, v T) error
	Clear(ctx context.Context) error
}

type tokenKey struct{}

// WithToken attaches the session bearer token to ctx for outgoing
// collaborator calls.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token attached by WithToken, if any.
func TokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

type idempotencyKey struct{}

// WithIdempotencyKey attaches a key that collaborators use to deduplicate a
// retried mutation.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

// IdempotencyKeyFrom returns the key attached by WithIdempotencyKey.
func IdempotencyKeyFrom(ctx context.Context) string {
	k, _ := ctx.Value(idempotencyKey{}).(string)
	return k
}

// AuthGateway is the port to the auth service.
type AuthGateway interface {
	Login(ctx context.Context, c Credentials) (*AuthResult, error)
	Register(ctx context.Context, r Registration) (*AuthResult, error)
	Refresh(ctx context.Context) (string, error)
	Me(ctx context.Context) (*User, error)
	UpdateProfile(ctx context.Context, p ProfileUpdate) (*User, error)
	ChangePassword(ctx context.Context, p PasswordChange) error
}

// CatalogGateway is the port to the catalog service.
type CatalogGateway interface {
	ListBooks(ctx context.Context, page Page) ([]Product, error)
	GetBook(ctx context.Context, id string) (*Product, error)
	CreateBook(ctx context.Context, in BookInput) (*Product, error)
	UpdateBook(ctx context.Context, id string, in BookInput) (*Product, error)
	DeleteBook(ctx context.Context, id string) error
}

// ShippingGateway is the port to the shipping service.
type ShippingGateway interface {
	LookupPostalCode(ctx context.Context, postalCode string) (*PostalCodeInfo, error)
	CreateAddress(ctx context.Context, a NewAddress) (*Address, error)
	ListAddresses(ctx context.Context, userID string) ([]Address, error)
	UpdateAddress(ctx context.Context, id int64, d AddressDraft) (*Address, error)
	DeactivateAddress(ctx context.Context, id int64) error
}

// OrderGateway is the port to the order service.
type OrderGateway interface {
	CreateOrder(ctx context.Context, o NewOrder) (*Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	GetOrder(ctx context.Context, id int64) (*Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) (*Order, error)
}

// PaymentGateway is the port to the payment service.
type PaymentGateway interface {
	Process(ctx context.Context, req PaymentRequest) (*PaymentReceipt, error)
	Get(ctx context.Context, id int64) (*PaymentReceipt, error)
}
