package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bookstore/internal/domain"
)

// ShippingClient implements domain.ShippingGateway.
type ShippingClient struct {
	api *Client
}

// NewShippingClient returns a shipping gateway over c.
func NewShippingClient(c *Client) *ShippingClient {
	return &ShippingClient{api: c}
}

type viaCEPWire struct {
	CEP         string `json:"cep"`
	Logradouro  string `json:"logradouro"`
	Complemento string `json:"complemento"`
	Bairro      string `json:"bairro"`
	Localidade  string `json:"localidade"`
	UF          string `json:"uf"`
	Erro        bool   `json:"erro"`
}

type addressWire struct {
	ID          int64  `json:"id"`
	UsuarioID   wireID `json:"usuario_id"`
	CEP         string `json:"cep"`
	Logradouro  string `json:"logradouro"`
	Numero      string `json:"numero"`
	Complemento string `json:"complemento"`
	Bairro      string `json:"bairro"`
	Cidade      string `json:"cidade"`
	Estado      string `json:"estado"`
	Apelido     string `json:"apelido"`
	Principal   bool   `json:"principal"`
	Ativo       *bool  `json:"ativo"`
}

func (a addressWire) toDomain() (domain.Address, bool) {
	out := domain.Address{
		ID:           a.ID,
		UserID:       string(a.UsuarioID),
		PostalCode:   a.CEP,
		Street:       a.Logradouro,
		Number:       a.Numero,
		Complement:   a.Complemento,
		Neighborhood: a.Bairro,
		City:         a.Cidade,
		State:        a.Estado,
		Label:        a.Apelido,
		Primary:      a.Principal,
		Active:       a.Ativo == nil || *a.Ativo,
	}
	return out, out.ID > 0
}

type addressBody struct {
	UsuarioID   wireID `json:"usuario_id,omitempty"`
	CEP         string `json:"cep"`
	Logradouro  string `json:"logradouro"`
	Numero      string `json:"numero"`
	Complemento string `json:"complemento,omitempty"`
	Bairro      string `json:"bairro"`
	Cidade      string `json:"cidade"`
	Estado      string `json:"estado"`
	Apelido     string `json:"apelido,omitempty"`
}

func newAddressBody(d domain.AddressDraft) addressBody {
	return addressBody{
		CEP:         digitsOnly(d.PostalCode),
		Logradouro:  strings.TrimSpace(d.Street),
		Numero:      strings.TrimSpace(d.Number),
		Complemento: strings.TrimSpace(d.Complement),
		Bairro:      strings.TrimSpace(d.Neighborhood),
		Cidade:      strings.TrimSpace(d.City),
		Estado:      strings.ToUpper(strings.TrimSpace(d.State)),
	}
}

// LookupPostalCode resolves a CEP through the shipping service's ViaCEP
// proxy.
func (c *ShippingClient) LookupPostalCode(ctx context.Context, postalCode string) (*domain.PostalCodeInfo, error) {
	var res viaCEPWire
	if err := c.api.do(ctx, http.MethodGet, "/viacep/"+url.PathEscape(digitsOnly(postalCode)), nil, nil, &res); err != nil {
		return nil, err
	}
	if res.Erro {
		return nil, domain.ErrNotFound
	}
	if res.Localidade == "" || res.UF == "" {
		return nil, c.api.unexpected("postal code without city or state")
	}
	return &domain.PostalCodeInfo{
		PostalCode:   digitsOnly(res.CEP),
		Street:       res.Logradouro,
		Complement:   res.Complemento,
		Neighborhood: res.Bairro,
		City:         res.Localidade,
		State:        res.UF,
	}, nil
}

// CreateAddress saves a new shipping address.
func (c *ShippingClient) CreateAddress(ctx context.Context, a domain.NewAddress) (*domain.Address, error) {
	body := newAddressBody(a.Draft)
	body.UsuarioID = wireID(a.UserID)
	body.Apelido = firstNonEmpty(a.Label, a.Draft.Name)
	var res addressWire
	if err := c.api.do(ctx, http.MethodPost, "/enderecos", nil, body, &res); err != nil {
		return nil, err
	}
	return c.address(res)
}

// ListAddresses returns every address of the user, active or not.
func (c *ShippingClient) ListAddresses(ctx context.Context, userID string) ([]domain.Address, error) {
	var res struct {
		Enderecos []addressWire `json:"enderecos"`
		Total     int           `json:"total"`
	}
	if err := c.api.do(ctx, http.MethodGet, "/enderecos/usuario/"+url.PathEscape(userID), nil, nil, &res); err != nil {
		return nil, err
	}
	out := make([]domain.Address, 0, len(res.Enderecos))
	for _, w := range res.Enderecos {
		a, ok := w.toDomain()
		if !ok {
			c.api.logger.Warn("dropping malformed address", "service", c.api.service)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// UpdateAddress replaces the fields of a saved address.
func (c *ShippingClient) UpdateAddress(ctx context.Context, id int64, d domain.AddressDraft) (*domain.Address, error) {
	body := newAddressBody(d)
	body.Apelido = strings.TrimSpace(d.Name)
	var res addressWire
	if err := c.api.do(ctx, http.MethodPut, "/enderecos/"+strconv.FormatInt(id, 10), nil, body, &res); err != nil {
		return nil, err
	}
	return c.address(res)
}

// DeactivateAddress soft-deletes an address.
func (c *ShippingClient) DeactivateAddress(ctx context.Context, id int64) error {
	return c.api.do(ctx, http.MethodDelete, "/enderecos/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

func (c *ShippingClient) address(res addressWire) (*domain.Address, error) {
	a, ok := res.toDomain()
	if !ok {
		return nil, c.api.unexpected("address without id")
	}
	return &a, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
