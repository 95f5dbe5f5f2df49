package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"bookstore/internal/domain"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "structured remote list",
			err: fmt.Errorf("create order: %w", &domain.RemoteError{
				Service: "orders", Status: 422,
				Fields: []domain.FieldError{
					{Field: "valor_frete", Message: "field required"},
					{Field: "items", Message: "ensure this value has at least 1 items"},
				},
			}),
			want: "valor_frete: field required; items: ensure this value has at least 1 items",
		},
		{
			name: "remote detail",
			err:  &domain.RemoteError{Service: "orders", Status: 400, Detail: "Livro sem estoque"},
			want: "Livro sem estoque",
		},
		{
			name: "remote 5xx detail hidden",
			err:  &domain.RemoteError{Service: "orders", Status: 500, Detail: "Traceback..."},
			want: domain.GenericMessage,
		},
		{
			name: "declined with message",
			err:  &domain.DeclinedError{Receipt: domain.PaymentReceipt{Message: "Saldo insuficiente"}},
			want: "Saldo insuficiente",
		},
		{
			name: "transport",
			err:  fmt.Errorf("post: %w", domain.ErrUnavailable),
			want: domain.GenericMessage,
		},
		{
			name: "unexpected",
			err:  errors.New("boom"),
			want: domain.GenericMessage,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, domain.UserMessage(tc.err))
		})
	}
}

func TestSessionFlags(t *testing.T) {
	assert.False(t, domain.NewSession(nil, "tok").Authenticated())
	assert.False(t, domain.NewSession(&domain.User{ID: "1"}, "").Authenticated())

	s := domain.NewSession(&domain.User{ID: "1", Name: "Jane", Email: "jane@example.com", Role: "ADMIN"}, "tok")
	assert.True(t, s.Authenticated())
	assert.True(t, s.Admin())
	assert.True(t, s.Complete())

	s = domain.NewSession(&domain.User{ID: "1", Name: " ", Email: "jane@example.com"}, "tok")
	assert.False(t, s.Complete())
	assert.False(t, s.Admin())
}
