package domain

import "fmt"

// PaymentMethod selects how an order is paid.
type PaymentMethod string

// Supported payment methods.
const (
	MethodCard   PaymentMethod = "card"
	MethodPix    PaymentMethod = "pix"
	MethodBoleto PaymentMethod = "boleto"
)

// AllPaymentMethods lists the methods in selector order.
var AllPaymentMethods = []PaymentMethod{MethodCard, MethodPix, MethodBoleto}

// AllPaymentMethodNames returns AllPaymentMethods as strings.
func AllPaymentMethodNames() []string {
	out := make([]string, len(AllPaymentMethods))
	for i, m := range AllPaymentMethods {
		out[i] = string(m)
	}
	return out
}

// ParsePaymentMethod validates s as a payment method.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	for _, m := range AllPaymentMethods {
		if NormalizeKey(s) == string(m) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// AddressDraft is the shipping address form of one checkout attempt.
type AddressDraft struct {
	Name         string `json:"name" validate:"nonblank"`
	PostalCode   string `json:"postalCode" validate:"nonblank"`
	Street       string `json:"street" validate:"nonblank"`
	Number       string `json:"number" validate:"nonblank"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood" validate:"nonblank"`
	City         string `json:"city" validate:"nonblank"`
	State        string `json:"state" validate:"nonblank"`
}

// CardDetails are the card form fields.
type CardDetails struct {
	Holder       string `json:"holder" validate:"holder"`
	Number       string `json:"number" validate:"cardnumber"`
	Expiry       string `json:"expiry" validate:"expiry"`
	CVV          string `json:"cvv" validate:"cvv"`
	Installments int    `json:"installments" validate:"omitempty,min=1,max=12"`
}

// PaymentDraft is the payment form of one checkout attempt. Only the fields
// of the selected method are read.
type PaymentDraft struct {
	Method   PaymentMethod `json:"method"`
	Card     CardDetails   `json:"card"`
	Document string        `json:"document"`
}

// CheckoutState is a step of a single checkout attempt.
type CheckoutState int

// Checkout states in the order an attempt moves through them.
const (
	StateEditing CheckoutState = iota
	StateValidating
	StateSubmittingAddress
	StateSubmittingOrder
	StateSubmittingPayment
	StateSuccess
	StateFailed
)

func (s CheckoutState) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateValidating:
		return "validating"
	case StateSubmittingAddress:
		return "submitting_address"
	case StateSubmittingOrder:
		return "submitting_order"
	case StateSubmittingPayment:
		return "submitting_payment"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("CheckoutState(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s CheckoutState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Blocker names one reason checkout submission is disabled.
type Blocker string

// Reasons checkout submission can be disabled.
const (
	BlockEmptyCart         Blocker = "empty_cart"
	BlockNoSession         Blocker = "no_session"
	BlockIncompleteProfile Blocker = "incomplete_profile"
	BlockInvalidAddress    Blocker = "invalid_address"
	BlockInvalidPayment    Blocker = "invalid_payment"
	BlockMethodDisabled    Blocker = "method_disabled"
	BlockInFlight          Blocker = "in_flight"
)
