package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates the requested record does not exist or is hidden.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates a collaborator rejected the bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the session lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrUnavailable indicates a transport failure reaching a collaborator.
	ErrUnavailable = errors.New("service unavailable")
	// ErrUnexpectedResponse indicates a collaborator answered with a shape
	// that could not be validated.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// GenericMessage is shown when no more specific message is available.
const GenericMessage = "Something went wrong. Please try again."

// FieldError is one entry of a structured validation error list.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// JoinFieldErrors renders a list as "field: message; field: message".
func JoinFieldErrors(errs []FieldError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}

// ValidationError is a local form validation failure.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed: " + JoinFieldErrors(e.Fields)
}

// RemoteError is a non-success answer from a collaborator.
type RemoteError struct {
	Service string
	Status  int
	Detail  string
	Fields  []FieldError
}

func (e *RemoteError) Error() string {
	msg := e.Detail
	if len(e.Fields) > 0 {
		msg = JoinFieldErrors(e.Fields)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, msg)
}

// DeclinedError is a payment the processor refused.
type DeclinedError struct {
	Receipt PaymentReceipt
}

func (e *DeclinedError) Error() string {
	if e.Receipt.Message != "" {
		return "payment declined: " + e.Receipt.Message
	}
	return "payment declined"
}

// UserMessage picks the most specific user-facing message for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		return JoinFieldErrors(verr.Fields)
	}
	var rerr *RemoteError
	if errors.As(err, &rerr) {
		if len(rerr.Fields) > 0 {
			return JoinFieldErrors(rerr.Fields)
		}
		if rerr.Status >= 400 && rerr.Status < 500 && rerr.Detail != "" {
			return rerr.Detail
		}
		return GenericMessage
	}
	var derr *DeclinedError
	if errors.As(err, &derr) {
		if derr.Receipt.Message != "" {
			return derr.Receipt.Message
		}
		return "Payment was declined."
	}
	if errors.Is(err, ErrUnauthorized) {
		return "Your session has expired. Please sign in again."
	}
	return GenericMessage
}
