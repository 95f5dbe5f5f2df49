package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"bookstore/internal/domain"
)

// maxOrderPage is the largest page the order service serves.
const maxOrderPage = 100

// OrderClient implements domain.OrderGateway.
type OrderClient struct {
	api *Client
}

// NewOrderClient returns an order gateway over c.
func NewOrderClient(c *Client) *OrderClient {
	return &OrderClient{api: c}
}

type orderItemWire struct {
	LivroID       wireID          `json:"livro_id"`
	LivroTitulo   string          `json:"livro_titulo"`
	Quantidade    int             `json:"quantidade"`
	PrecoUnitario decimal.Decimal `json:"preco_unitario"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

type orderWire struct {
	ID                int64           `json:"id"`
	UsuarioID         wireID          `json:"usuario_id"`
	EnderecoEntregaID int64           `json:"endereco_entrega_id"`
	NumeroPedido      string          `json:"numero_pedido"`
	Status            string          `json:"status"`
	ValorTotal        decimal.Decimal `json:"valor_total"`
	ValorFrete        decimal.Decimal `json:"valor_frete"`
	Observacoes       string          `json:"observacoes"`
	DataCriacao       wireTime        `json:"data_criacao"`
	DataAtualizacao   wireTime        `json:"data_atualizacao"`
	Items             []orderItemWire `json:"items"`
}

func (o orderWire) toDomain() (domain.Order, bool) {
	out := domain.Order{
		ID:          o.ID,
		Number:      o.NumeroPedido,
		UserID:      string(o.UsuarioID),
		AddressID:   o.EnderecoEntregaID,
		Status:      domain.OrderStatus(o.Status),
		Total:       o.ValorTotal,
		ShippingFee: o.ValorFrete,
		Notes:       o.Observacoes,
		CreatedAt:   o.DataCriacao.Time,
		UpdatedAt:   o.DataAtualizacao.Time,
		Items:       make([]domain.OrderItem, len(o.Items)),
	}
	for i, it := range o.Items {
		sub := it.Subtotal
		if sub.IsZero() {
			sub = it.PrecoUnitario.Mul(decimal.NewFromInt(int64(it.Quantidade)))
		}
		out.Items[i] = domain.OrderItem{
			ProductID: string(it.LivroID),
			Title:     it.LivroTitulo,
			Quantity:  it.Quantidade,
			UnitPrice: it.PrecoUnitario,
			Subtotal:  sub,
		}
	}
	return out, out.ID > 0 && o.Status != ""
}

type orderItemBody struct {
	LivroID       wireID      `json:"livro_id"`
	Quantidade    int         `json:"quantidade"`
	PrecoUnitario json.Number `json:"preco_unitario"`
}

type orderBody struct {
	UsuarioID         wireID          `json:"usuario_id"`
	EnderecoEntregaID int64           `json:"endereco_entrega_id"`
	ValorFrete        json.Number     `json:"valor_frete"`
	Observacoes       string          `json:"observacoes,omitempty"`
	Items             []orderItemBody `json:"items"`
}

// CreateOrder places an order for the given lines.
func (c *OrderClient) CreateOrder(ctx context.Context, o domain.NewOrder) (*domain.Order, error) {
	body := orderBody{
		UsuarioID:         wireID(o.UserID),
		EnderecoEntregaID: o.AddressID,
		ValorFrete:        money(o.ShippingFee),
		Observacoes:       o.Notes,
		Items:             make([]orderItemBody, len(o.Items)),
	}
	for i, it := range o.Items {
		body.Items[i] = orderItemBody{
			LivroID:       wireID(it.ProductID),
			Quantidade:    it.Quantity,
			PrecoUnitario: money(it.UnitPrice),
		}
	}
	var res orderWire
	if err := c.api.do(ctx, http.MethodPost, "/pedidos", nil, body, &res); err != nil {
		return nil, err
	}
	return c.order(res)
}

// ListOrders returns the first page of orders matching f.
func (c *OrderClient) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("page_size", strconv.Itoa(maxOrderPage))
	if f.UserID != "" {
		q.Set("usuario_id", f.UserID)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	var res struct {
		Items   []orderWire `json:"items"`
		Pedidos []orderWire `json:"pedidos"`
	}
	if err := c.api.do(ctx, http.MethodGet, "/pedidos", q, nil, &res); err != nil {
		return nil, err
	}
	items := res.Items
	if items == nil {
		items = res.Pedidos
	}
	out := make([]domain.Order, 0, len(items))
	for _, w := range items {
		o, ok := w.toDomain()
		if !ok {
			c.api.logger.Warn("dropping malformed order", "service", c.api.service, "id", w.ID)
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// GetOrder returns one order.
func (c *OrderClient) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var res orderWire
	if err := c.api.do(ctx, http.MethodGet, "/pedidos/"+strconv.FormatInt(id, 10), nil, nil, &res); err != nil {
		return nil, err
	}
	return c.order(res)
}

// UpdateOrderStatus moves an order to status.
func (c *OrderClient) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error) {
	var res orderWire
	body := map[string]string{"status": string(status)}
	if err := c.api.do(ctx, http.MethodPatch, "/pedidos/"+strconv.FormatInt(id, 10)+"/status", nil, body, &res); err != nil {
		return nil, err
	}
	return c.order(res)
}

func (c *OrderClient) order(res orderWire) (*domain.Order, error) {
	o, ok := res.toDomain()
	if !ok {
		return nil, c.api.unexpected("order without id or status")
	}
	return &o, nil
}
