package app_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"bookstore/internal/app"
	"bookstore/internal/domain"
)

func TestAuthService_LoginSetsSession(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry()
	v := reg.Visitor(ctx, "v")
	svc := app.NewAuthService(&mockAuth{
		loginFn: func(ctx context.Context, c domain.Credentials) (*domain.AuthResult, error) {
			if c.Email != "jane@example.com" {
				t.Errorf("email not trimmed: %q", c.Email)
			}
			return &domain.AuthResult{User: domain.User{ID: "1", Name: "Jane", Email: c.Email}, AccessToken: "tok"}, nil
		},
	}, app.NewValidator(), discard)

	sess, err := svc.Login(ctx, v, domain.Credentials{Email: " jane@example.com ", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !sess.Authenticated() || v.Session.Current().Token != "tok" {
		t.Fatalf("session not set: %+v", sess)
	}
}

func TestAuthService_LoginValidation(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry()
	v := reg.Visitor(ctx, "v")
	svc := app.NewAuthService(&mockAuth{}, app.NewValidator(), discard)

	_, err := svc.Login(ctx, v, domain.Credentials{Email: "nope"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 2 {
		t.Fatalf("expected 2 field errors, got %v", err)
	}
}

func TestAuthService_IncompleteResponse(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry()
	v := reg.Visitor(ctx, "v")
	svc := app.NewAuthService(&mockAuth{
		loginFn: func(ctx context.Context, c domain.Credentials) (*domain.AuthResult, error) {
			return &domain.AuthResult{User: domain.User{ID: "1"}}, nil
		},
	}, app.NewValidator(), discard)

	if _, err := svc.Login(ctx, v, domain.Credentials{Email: "a@b.co", Password: "x"}); !errors.Is(err, app.ErrIncompleteAuthResponse) {
		t.Fatalf("expected ErrIncompleteAuthResponse, got %v", err)
	}
	if v.Session.Current().Authenticated() {
		t.Fatal("user without token must not be stored")
	}
}

func TestAuthService_UnauthorizedClearsSession(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry()
	v := reg.Visitor(ctx, "v")
	_ = v.Session.Set(ctx, domain.User{ID: "1", Name: "Jane", Email: "j@x.co"}, "stale")
	svc := app.NewAuthService(&mockAuth{}, app.NewValidator(), discard)

	if _, err := svc.Profile(ctx, v); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if v.Session.Current().Authenticated() {
		t.Fatal("session should be cleared")
	}
	if _, err := svc.Profile(ctx, v); !errors.Is(err, app.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

// sessionStore serves every visitor the same session slot.
type sessionStore struct {
	app.VisitorStore
	session *mockSlot[domain.Session]
}

func (s sessionStore) SessionSlot(string) domain.Slot[domain.Session] { return s.session }

func TestAuthService_ProfileLogsUnpersistedSession(t *testing.T) {
	ctx := context.Background()
	slot := &mockSlot[domain.Session]{}
	reg, kv := newRegistry()
	reg = app.NewRegistry(sessionStore{VisitorStore: storeOver(kv), session: slot}, domain.DefaultShippingFee)
	v := reg.Visitor(ctx, "v")
	if err := v.Session.Set(ctx, domain.User{ID: "1", Name: "Jane", Email: "j@x.co"}, "tok"); err != nil {
		t.Fatal(err)
	}
	slot.writeFn = func(domain.Session) error { return errQuota }

	var logs bytes.Buffer
	svc := app.NewAuthService(&mockAuth{
		meFn: func(ctx context.Context) (*domain.User, error) {
			return &domain.User{ID: "1", Name: "Jane Roe", Email: "j@x.co"}, nil
		},
	}, app.NewValidator(), slog.New(slog.NewTextHandler(&logs, nil)))

	u, err := svc.Profile(ctx, v)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if u.Name != "Jane Roe" || v.Session.Current().User.Name != "Jane Roe" {
		t.Fatalf("session user not refreshed: %+v", v.Session.Current())
	}
	if !strings.Contains(logs.String(), "session not persisted") || !strings.Contains(logs.String(), errQuota.Error()) {
		t.Fatalf("expected a persistence warning, got %q", logs.String())
	}
}

func TestAuthService_RefreshKeepsUser(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry()
	v := reg.Visitor(ctx, "v")
	_ = v.Session.Set(ctx, domain.User{ID: "1", Name: "Jane", Email: "j@x.co"}, "old")
	svc := app.NewAuthService(&mockAuth{
		refreshFn: func(ctx context.Context) (string, error) {
			if domain.TokenFrom(ctx) != "old" {
				t.Errorf("refresh sent %q", domain.TokenFrom(ctx))
			}
			return "new", nil
		},
	}, app.NewValidator(), discard)

	sess, err := svc.Refresh(ctx, v)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Token != "new" || sess.User.ID != "1" {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestCatalogService_HiddenCategory(t *testing.T) {
	ctx := context.Background()
	gate := app.NewSettingsService(ctx, &mockSlot[domain.PublicSettings]{stored: true, value: domain.PublicSettings{
		Categories: domain.Configured("TECNICO"),
	}}, discard)
	catalog := &mockCatalog{
		listFn: func(ctx context.Context, page domain.Page) ([]domain.Product, error) {
			if page != domain.DefaultPage {
				t.Errorf("page = %+v", page)
			}
			return []domain.Product{
				book("1", "10", "FICCAO"),
				{ID: "2", Title: "Go in Practice", Author: "Butcher", Price: money("99"), Category: "TECNICO"},
				{ID: "3", Title: "SQL", Author: "Date", Price: money("80"), Category: "TECNICO"},
			}, nil
		},
		getFn: func(ctx context.Context, id string) (*domain.Product, error) {
			p := book(id, "10", "FICCAO")
			return &p, nil
		},
	}
	svc := app.NewCatalogService(catalog, gate, app.NewValidator(), discard)

	books, err := svc.List(ctx, app.BookFilter{})
	if err != nil || len(books) != 2 {
		t.Fatalf("List = %v, %v", books, err)
	}
	books, _ = svc.List(ctx, app.BookFilter{Search: "butch"})
	if len(books) != 1 || books[0].ID != "2" {
		t.Fatalf("search = %v", books)
	}
	books, _ = svc.List(ctx, app.BookFilter{Category: "FICCAO"})
	if len(books) != 0 {
		t.Fatalf("hidden category listed: %v", books)
	}

	if _, err := svc.Get(ctx, "1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for hidden book, got %v", err)
	}
}

func TestCatalogService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	gate := app.NewSettingsService(ctx, &mockSlot[domain.PublicSettings]{}, discard)
	svc := app.NewCatalogService(&mockCatalog{}, gate, app.NewValidator(), discard)

	_, err := svc.Create(ctx, domain.BookInput{Title: "T", Author: "A", Category: "FICCAO"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields[0].Field != "price" {
		t.Fatalf("expected price error, got %v", err)
	}
	if _, err := svc.Create(ctx, domain.BookInput{Title: "T", Author: "A", Category: "FICCAO", Price: money("1")}); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestOrderService_Cancel(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry()
	v := reg.Visitor(ctx, "v")
	_ = v.Session.Set(ctx, domain.User{ID: "u1", Name: "Jane", Email: "j@x.co"}, "tok")

	orders := map[int64]domain.Order{
		1: {ID: 1, UserID: "u1", Status: domain.OrderPending},
		2: {ID: 2, UserID: "u1", Status: domain.OrderShipped},
		3: {ID: 3, UserID: "someone-else", Status: domain.OrderPending},
	}
	gw := &mockOrders{
		getFn: func(ctx context.Context, id int64) (*domain.Order, error) {
			o, ok := orders[id]
			if !ok {
				return nil, domain.ErrNotFound
			}
			return &o, nil
		},
	}
	svc := app.NewOrderService(gw, &mockPayments{}, discard)

	o, err := svc.Cancel(ctx, v, 1)
	if err != nil || o.Status != domain.OrderCancelled {
		t.Fatalf("Cancel(1) = %+v, %v", o, err)
	}
	if _, err := svc.Cancel(ctx, v, 2); !errors.Is(err, app.ErrOrderNotCancellable) {
		t.Fatalf("Cancel(2): %v", err)
	}
	if _, err := svc.Cancel(ctx, v, 3); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Cancel(3): %v", err)
	}
}

func TestOrderService_HistoryFiltersByUser(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry()
	v := reg.Visitor(ctx, "v")
	svc := app.NewOrderService(&mockOrders{
		listFn: func(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
			if f.UserID != "u1" {
				t.Errorf("filter = %+v", f)
			}
			return []domain.Order{{ID: 1}}, nil
		},
	}, &mockPayments{}, discard)

	if _, err := svc.History(ctx, v); !errors.Is(err, app.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	_ = v.Session.Set(ctx, domain.User{ID: "u1", Name: "Jane", Email: "j@x.co"}, "tok")
	orders, err := svc.History(ctx, v)
	if err != nil || len(orders) != 1 {
		t.Fatalf("History = %v, %v", orders, err)
	}
}

func TestParseOrderStatus(t *testing.T) {
	if s, err := app.ParseOrderStatus(" Enviado "); err != nil || s != domain.OrderShipped {
		t.Fatalf("ParseOrderStatus = %q, %v", s, err)
	}
	if _, err := app.ParseOrderStatus("lost"); !errors.Is(err, app.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestShippingService_Lookup(t *testing.T) {
	ctx := context.Background()
	svc := app.NewShippingService(&mockShipping{
		lookupFn: func(ctx context.Context, cep string) (*domain.PostalCodeInfo, error) {
			if cep != "01310100" {
				t.Errorf("cep = %q", cep)
			}
			return &domain.PostalCodeInfo{PostalCode: "01310-100", Street: "Avenida Paulista", Neighborhood: "Bela Vista", City: "São Paulo", State: "SP"}, nil
		},
	}, discard)

	d, err := svc.Lookup(ctx, "01310-100", domain.AddressDraft{Name: "Casa", Number: "1000"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Street != "Avenida Paulista" || d.Name != "Casa" || d.Number != "1000" {
		t.Fatalf("unexpected draft %+v", d)
	}
	if _, err := svc.Lookup(ctx, "123", domain.AddressDraft{}); !errors.Is(err, app.ErrInvalidPostalCode) {
		t.Fatalf("expected ErrInvalidPostalCode, got %v", err)
	}
}
