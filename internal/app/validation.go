package app

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"bookstore/internal/domain"
)

var (
	expiryPattern = regexp.MustCompile(`^\d{2}/\d{2}$`)
	cvvPattern    = regexp.MustCompile(`^\d{3,4}$`)
	cardPattern   = regexp.MustCompile(`^\d{13,19}$`)
)

// Validator checks forms and payloads against their struct tags.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a validator with the storefront rules registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	if err := RegisterCustomValidators(v); err != nil {
		panic(err)
	}
	return &Validator{v: v}
}

// RegisterCustomValidators registers the storefront form rules on v.
func RegisterCustomValidators(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"nonblank":   validateNonBlank,
		"holder":     validateHolder,
		"cardnumber": validateCardNumber,
		"expiry":     validateExpiry,
		"cvv":        validateCVV,
		"cpfcnpj":    validateCPFOrCNPJ,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

func validateNonBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// validateHolder requires more than four characters once trimmed.
func validateHolder(fl validator.FieldLevel) bool {
	return len([]rune(strings.TrimSpace(fl.Field().String()))) > 4
}

func validateCardNumber(fl validator.FieldLevel) bool {
	return cardPattern.MatchString(strings.Join(strings.Fields(fl.Field().String()), ""))
}

func validateExpiry(fl validator.FieldLevel) bool {
	return expiryPattern.MatchString(fl.Field().String())
}

func validateCVV(fl validator.FieldLevel) bool {
	return cvvPattern.MatchString(fl.Field().String())
}

// validateCPFOrCNPJ accepts 11 (CPF) or 14 (CNPJ) digits after stripping
// everything else.
func validateCPFOrCNPJ(fl validator.FieldLevel) bool {
	n := len(Digits(fl.Field().String()))
	return n == 11 || n == 14
}

// Digits strips every non-digit from s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Struct validates s and returns a *domain.ValidationError on failure.
func (v *Validator) Struct(s any) error {
	if err := v.v.Struct(s); err != nil {
		return toValidationError(err, "")
	}
	return nil
}

// Address reports the failing fields of an address draft.
func (v *Validator) Address(d domain.AddressDraft) []domain.FieldError {
	return fieldsOf(v.v.Struct(d), "address")
}

// Payment reports the failing fields of a payment draft for its method.
func (v *Validator) Payment(p domain.PaymentDraft) []domain.FieldError {
	switch p.Method {
	case domain.MethodCard:
		return fieldsOf(v.v.Struct(p.Card), "card")
	case domain.MethodPix:
		return nil
	case domain.MethodBoleto:
		if err := v.v.Var(p.Document, "cpfcnpj"); err != nil {
			return []domain.FieldError{{Field: "document", Message: "must be a CPF (11 digits) or CNPJ (14 digits)"}}
		}
		return nil
	default:
		return []domain.FieldError{{Field: "method", Message: "must be one of: " + strings.Join(domain.AllPaymentMethodNames(), " ")}}
	}
}

func fieldsOf(err error, prefix string) []domain.FieldError {
	if err == nil {
		return nil
	}
	var verr *domain.ValidationError
	if errors.As(toValidationError(err, prefix), &verr) {
		return verr.Fields
	}
	return []domain.FieldError{{Message: err.Error()}}
}

func toValidationError(err error, prefix string) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	fields := make([]domain.FieldError, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Field()
		if prefix != "" {
			field = prefix + "." + field
		}
		fields = append(fields, domain.FieldError{Field: field, Message: formatSingleValidationError(e)})
	}
	return &domain.ValidationError{Fields: fields}
}

func formatSingleValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "nonblank":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "eqfield":
		return fmt.Sprintf("must match %s", e.Param())
	case "nefield":
		return fmt.Sprintf("must differ from %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "holder":
		return "must be the full name on the card"
	case "cardnumber":
		return "must be 13 to 19 digits"
	case "expiry":
		return "must be MM/YY"
	case "cvv":
		return "must be 3 or 4 digits"
	case "cpfcnpj":
		return "must be a CPF (11 digits) or CNPJ (14 digits)"
	default:
		return fmt.Sprintf("failed validation: %s", e.Tag())
	}
}
