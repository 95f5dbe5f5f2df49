package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle status reported by the order service.
type OrderStatus string

// Order statuses used by the order service.
const (
	OrderPending    OrderStatus = "pendente"
	OrderProcessing OrderStatus = "processando"
	OrderConfirmed  OrderStatus = "confirmado"
	OrderShipped    OrderStatus = "enviado"
	OrderDelivered  OrderStatus = "entregue"
	OrderCancelled  OrderStatus = "cancelado"
	OrderReturned   OrderStatus = "devolvido"
)

// AllOrderStatuses lists the statuses an admin may set.
var AllOrderStatuses = []OrderStatus{
	OrderPending, OrderConfirmed, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled, OrderReturned,
}

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Order is an order record owned by the order service.
type Order struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	UserID      string          `json:"userId"`
	AddressID   int64           `json:"addressId"`
	Status      OrderStatus     `json:"status"`
	Total       decimal.Decimal `json:"total"`
	ShippingFee decimal.Decimal `json:"shippingFee"`
	Notes       string          `json:"notes,omitempty"`
	Items       []OrderItem     `json:"items"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// NewOrder is the create-order request.
type NewOrder struct {
	UserID      string
	AddressID   int64
	ShippingFee decimal.Decimal
	Items       []OrderItem
	Notes       string
}

// OrderItemsFrom converts cart entries into order lines.
func OrderItemsFrom(entries []CartEntry) []OrderItem {
	items := make([]OrderItem, len(entries))
	for i, e := range entries {
		items[i] = OrderItem{
			ProductID: e.Product.ID,
			Title:     e.Product.Title,
			Quantity:  e.Quantity,
			UnitPrice: e.Product.Price,
			Subtotal:  e.LineTotal(),
		}
	}
	return items
}

// OrderFilter narrows an order listing.
type OrderFilter struct {
	UserID string
	Status OrderStatus
}
