package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"

	"bookstore/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// newTestClient serves h and returns a client for it. The server is closed
// when the test ends.
func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New("test", srv.URL, WithHTTPClient(srv.Client()), WithLogger(discard), WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, u := range []string{"", "  ", "ftp://x", "://bad"} {
		if _, err := New("svc", u); err == nil {
			t.Errorf("New(%q) succeeded, want error", u)
		}
	}
}

func TestDoSendsBearerAndIdempotencyKey(t *testing.T) {
	var gotAuth, gotKey, gotType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		gotType = r.Header.Get("Content-Type")
		writeJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
	})

	ctx := domain.WithToken(context.Background(), "tok-1")
	ctx = domain.WithIdempotencyKey(ctx, "attempt:order")
	var out map[string]string
	if err := c.do(ctx, http.MethodPost, "/x", nil, map[string]int{"a": 1}, &out); err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotKey != "attempt:order" {
		t.Errorf("Idempotency-Key = %q", gotKey)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if out["ok"] != "yes" {
		t.Errorf("decoded %v", out)
	}
}

func TestDoOmitsHeadersWithoutSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get("Authorization"); h != "" {
			t.Errorf("unexpected Authorization %q", h)
		}
		if h := r.Header.Get("Idempotency-Key"); h != "" {
			t.Errorf("unexpected Idempotency-Key on GET %q", h)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := domain.WithIdempotencyKey(context.Background(), "k")
	if err := c.do(ctx, http.MethodGet, "/x", nil, nil, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
}

func TestDoMapsStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   map[string]string{"detail": "Could not validate credentials"},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, domain.ErrUnauthorized) {
					t.Errorf("err = %v, want ErrUnauthorized", err)
				}
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   map[string]string{"detail": "Livro não encontrado"},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, domain.ErrNotFound) {
					t.Errorf("err = %v, want ErrNotFound", err)
				}
			},
		},
		{
			name:   "field list",
			status: http.StatusUnprocessableEntity,
			body: map[string]any{"detail": []map[string]any{
				{"loc": []any{"body", "cep"}, "msg": "CEP inválido", "type": "value_error"},
				{"loc": []any{"body", "items", 0, "quantidade"}, "msg": "deve ser maior que 0"},
			}},
			check: func(t *testing.T, err error) {
				var rerr *domain.RemoteError
				if !errors.As(err, &rerr) {
					t.Fatalf("err = %v, want RemoteError", err)
				}
				if rerr.Status != http.StatusUnprocessableEntity || len(rerr.Fields) != 2 {
					t.Fatalf("got %+v", rerr)
				}
				if got := domain.UserMessage(err); got != "cep: CEP inválido; quantidade: deve ser maior que 0" {
					t.Errorf("UserMessage = %q", got)
				}
			},
		},
		{
			name:   "detail string",
			status: http.StatusBadRequest,
			body:   map[string]string{"detail": "Estoque insuficiente"},
			check: func(t *testing.T, err error) {
				if got := domain.UserMessage(err); got != "Estoque insuficiente" {
					t.Errorf("UserMessage = %q", got)
				}
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   "boom",
			check: func(t *testing.T, err error) {
				var rerr *domain.RemoteError
				if !errors.As(err, &rerr) || rerr.Status != http.StatusInternalServerError {
					t.Fatalf("err = %v", err)
				}
				if got := domain.UserMessage(err); got != domain.GenericMessage {
					t.Errorf("UserMessage = %q", got)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			err := c.do(context.Background(), http.MethodPost, "/x", nil, map[string]string{}, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
		})
	}
}

func TestDoRejectsMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "not-closed"`)
	})
	var out map[string]any
	err := c.do(context.Background(), http.MethodGet, "/x", nil, nil, &out)
	if !errors.Is(err, domain.ErrUnexpectedResponse) {
		t.Fatalf("err = %v, want ErrUnexpectedResponse", err)
	}
}

func TestDoEmptyBodyWhenOneExpected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	var out map[string]any
	err := c.do(context.Background(), http.MethodGet, "/x", nil, nil, &out)
	if !errors.Is(err, domain.ErrUnexpectedResponse) {
		t.Fatalf("err = %v, want ErrUnexpectedResponse", err)
	}
}

func TestDoTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New("down", url, WithLogger(discard), WithHTTPClient(&http.Client{Transport: &http.Transport{DisableKeepAlives: true}}))
	if err != nil {
		t.Fatal(err)
	}
	err = c.do(context.Background(), http.MethodGet, "/x", nil, nil, nil)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestDoTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New("slow", srv.URL, WithHTTPClient(srv.Client()), WithLogger(discard), WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	err = c.do(context.Background(), http.MethodGet, "/x", nil, nil, nil)
	if !errors.Is(err, domain.ErrUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want ErrUnavailable wrapping DeadlineExceeded", err)
	}
}

func TestWireID(t *testing.T) {
	b, _ := json.Marshal(struct {
		A wireID `json:"a"`
		B wireID `json:"b"`
	}{A: "42", B: "abc"})
	if string(b) != `{"a":42,"b":"abc"}` {
		t.Errorf("marshal = %s", b)
	}

	var got struct {
		A wireID `json:"a"`
		B wireID `json:"b"`
		C wireID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":7,"b":"x-1","c":null}`), &got); err != nil {
		t.Fatal(err)
	}
	if got.A != "7" || got.B != "x-1" || got.C != "" {
		t.Errorf("unmarshal = %+v", got)
	}
	if err := json.Unmarshal([]byte(`{"a":1.5}`), &got); err == nil {
		t.Error("fractional id accepted")
	}
}

func TestWireTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2024-03-01T10:20:30Z"`, time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC)},
		{`"2024-03-01T10:20:30.123456"`, time.Date(2024, 3, 1, 10, 20, 30, 123456000, time.UTC)},
		{`"2024-03-01"`, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{`null`, time.Time{}},
		{`""`, time.Time{}},
	}
	for _, tt := range tests {
		var wt wireTime
		if err := json.Unmarshal([]byte(tt.in), &wt); err != nil {
			t.Errorf("%s: %v", tt.in, err)
			continue
		}
		if !wt.Equal(tt.want) {
			t.Errorf("%s = %v, want %v", tt.in, wt.Time, tt.want)
		}
	}
	var wt wireTime
	if err := json.Unmarshal([]byte(`"yesterday"`), &wt); err == nil {
		t.Error("accepted free text")
	}
}
