package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the processor's verdict on a payment.
type PaymentStatus string

// Payment statuses reported by the payment service.
const (
	PaymentPending    PaymentStatus = "pendente"
	PaymentProcessing PaymentStatus = "processando"
	PaymentApproved   PaymentStatus = "aprovado"
	PaymentDeclined   PaymentStatus = "recusado"
	PaymentCancelled  PaymentStatus = "cancelado"
	PaymentRefunded   PaymentStatus = "estornado"
)

// Failed reports whether the status ends the payment without charging.
func (s PaymentStatus) Failed() bool {
	return s == PaymentDeclined || s == PaymentCancelled
}

// PaymentRequest asks the payment service to charge an order.
type PaymentRequest struct {
	UserID  string
	OrderID int64
	Amount  decimal.Decimal
	Method  PaymentMethod
	// Card is read when Method is MethodCard.
	Card CardDetails
	// Document is the CPF/CNPJ digits, read when Method is MethodBoleto.
	Document string
}

// PaymentArtifact is the method-specific part of a payment receipt.
type PaymentArtifact interface {
	Method() PaymentMethod
}

// CardArtifact carries nothing beyond the common receipt fields.
type CardArtifact struct{}

// Method implements PaymentArtifact.
func (CardArtifact) Method() PaymentMethod { return MethodCard }

// PixArtifact carries the QR payload the customer pays with.
type PixArtifact struct {
	QRCode string `json:"qrCode"`
}

// Method implements PaymentArtifact.
func (PixArtifact) Method() PaymentMethod { return MethodPix }

// BoletoArtifact carries what is printed on the payment slip.
type BoletoArtifact struct {
	Barcode   string    `json:"barcode"`
	DigitLine string    `json:"digitLine"`
	DueDate   time.Time `json:"dueDate"`
}

// Method implements PaymentArtifact.
func (BoletoArtifact) Method() PaymentMethod { return MethodBoleto }

// PaymentReceipt is the validated payment service response.
type PaymentReceipt struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"orderId"`
	Status          PaymentStatus   `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionCode string          `json:"transactionCode"`
	Message         string          `json:"message,omitempty"`
	Artifact        PaymentArtifact `json:"artifact"`
	ProcessedAt     time.Time       `json:"processedAt"`
}
