package app

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bookstore/internal/domain"
)

// ErrCheckoutInFlight is returned when the visitor already has a checkout
// attempt running.
var ErrCheckoutInFlight = errors.New("a checkout is already in progress")

// BlockedError lists every reason a checkout cannot be submitted.
type BlockedError struct {
	Blockers []domain.Blocker
	Fields   []domain.FieldError
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("checkout blocked: %v", e.Blockers)
}

// Checkout outcomes reported to the recorder.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeBlocked = "blocked"
)

// CheckoutRecorder observes checkout attempts.
type CheckoutRecorder interface {
	ObserveStep(step string, d time.Duration, err error)
	ObserveOutcome(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStep(string, time.Duration, error) {}
func (nopRecorder) ObserveOutcome(string)                    {}

// CheckoutConfig tunes the orchestrator.
type CheckoutConfig struct {
	// StepTimeout bounds each collaborator call. Zero means no bound beyond
	// the caller's context.
	StepTimeout time.Duration
	// Compensate undoes earlier steps when a later one fails: the address is
	// deactivated when the order fails and the order is cancelled when the
	// payment fails.
	Compensate bool
	// SuccessRedirect is where the storefront goes after a paid order.
	SuccessRedirect string
	// BoletoDueDays is used when the payment service returns no due date.
	BoletoDueDays int
}

// CheckoutForm carries the drafts of one attempt.
type CheckoutForm struct {
	Address domain.AddressDraft `json:"address"`
	Payment domain.PaymentDraft `json:"payment"`
	Notes   string              `json:"notes,omitempty"`
}

// CheckoutResult is the outcome of one checkout attempt.
type CheckoutResult struct {
	Attempt    string                 `json:"attempt"`
	State      domain.CheckoutState   `json:"state"`
	FailedStep string                 `json:"failedStep,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Fields     []domain.FieldError    `json:"fields,omitempty"`
	Blockers   []domain.Blocker       `json:"blockers,omitempty"`
	AddressID  int64                  `json:"addressId,omitempty"`
	Order      *domain.Order          `json:"order,omitempty"`
	Payment    *domain.PaymentReceipt `json:"payment,omitempty"`
	Redirect   string                 `json:"redirect,omitempty"`
	HasSlip    bool                   `json:"hasSlip"`
	Warnings   []string               `json:"warnings,omitempty"`

	Slip template.HTML `json:"-"`
}

// CheckoutService is the checkout orchestrator. It validates the drafts and
// then runs address, order and payment creation in strict sequence.
type CheckoutService struct {
	shipping  domain.ShippingGateway
	orders    domain.OrderGateway
	payments  domain.PaymentGateway
	gate      *SettingsService
	validator *Validator
	slips     *SlipRenderer
	recorder  CheckoutRecorder
	cfg       CheckoutConfig
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

// CheckoutDeps are the collaborators of the orchestrator.
type CheckoutDeps struct {
	Shipping  domain.ShippingGateway
	Orders    domain.OrderGateway
	Payments  domain.PaymentGateway
	Gate      *SettingsService
	Validator *Validator
	Slips     *SlipRenderer
	Recorder  CheckoutRecorder
	Logger    *slog.Logger
}

// NewCheckoutService creates a CheckoutService.
func NewCheckoutService(deps CheckoutDeps, cfg CheckoutConfig) *CheckoutService {
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/account/orders"
	}
	if cfg.BoletoDueDays <= 0 {
		cfg.BoletoDueDays = 3
	}
	return &CheckoutService{
		shipping:  deps.Shipping,
		orders:    deps.Orders,
		payments:  deps.Payments,
		gate:      deps.Gate,
		validator: deps.Validator,
		slips:     deps.Slips,
		recorder:  deps.Recorder,
		cfg:       cfg,
		logger:    deps.Logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Methods lists the payment methods the selector offers.
func (s *CheckoutService) Methods() []domain.PaymentMethod {
	return s.gate.EnabledPaymentMethods()
}

// Blockers reports every condition that keeps the form from being
// submitted, along with the failing form fields.
func (s *CheckoutService) Blockers(v *Visitor, form CheckoutForm) ([]domain.Blocker, []domain.FieldError) {
	var (
		blockers []domain.Blocker
		fields   []domain.FieldError
	)
	if v.Cart.Count() == 0 {
		blockers = append(blockers, domain.BlockEmptyCart)
	}
	sess := v.Session.Current()
	switch {
	case !sess.Authenticated():
		blockers = append(blockers, domain.BlockNoSession)
	case !sess.Complete():
		blockers = append(blockers, domain.BlockIncompleteProfile)
	}
	if errs := s.validator.Address(form.Address); len(errs) > 0 {
		blockers = append(blockers, domain.BlockInvalidAddress)
		fields = append(fields, errs...)
	}
	if errs := s.validator.Payment(form.Payment); len(errs) > 0 {
		blockers = append(blockers, domain.BlockInvalidPayment)
		fields = append(fields, errs...)
	}
	if form.Payment.Method != "" && !s.gate.IsPaymentMethodEnabled(form.Payment.Method) {
		blockers = append(blockers, domain.BlockMethodDisabled)
	}
	if v.CheckoutInFlight() {
		blockers = append(blockers, domain.BlockInFlight)
	}
	return blockers, fields
}

// Submit runs one checkout attempt for v. The returned result is always set
// unless the error is ErrCheckoutInFlight; the error is non-nil whenever the
// attempt did not end in success.
func (s *CheckoutService) Submit(ctx context.Context, v *Visitor, form CheckoutForm) (*CheckoutResult, error) {
	blockers, fields := s.Blockers(v, form)
	if !v.checkout.CompareAndSwap(false, true) {
		return nil, ErrCheckoutInFlight
	}
	defer v.checkout.Store(false)

	res := &CheckoutResult{Attempt: s.newID(), State: domain.StateValidating}
	logger := s.logger.With("visitor", v.ID, "attempt", res.Attempt)

	if len(blockers) > 0 {
		err := &BlockedError{Blockers: blockers, Fields: fields}
		res.State = domain.StateEditing
		res.Blockers = blockers
		res.Fields = fields
		res.Message = domain.UserMessage(&domain.ValidationError{Fields: fields})
		if len(fields) == 0 {
			res.Message = "Checkout is not available yet."
		}
		s.recorder.ObserveOutcome(OutcomeBlocked)
		logger.Info("checkout blocked", "blockers", blockers)
		return res, err
	}

	sess := v.Session.Current()
	summary := v.Cart.Summary()
	authed := v.Session.Context(ctx)

	// Address.
	res.State = domain.StateSubmittingAddress
	var addr *domain.Address
	err := s.step(authed, res.Attempt, "address", func(ctx context.Context) (err error) {
		addr, err = s.shipping.CreateAddress(ctx, domain.NewAddress{
			UserID: sess.User.ID,
			Draft:  form.Address,
			Label:  form.Address.Name,
		})
		return err
	})
	if err != nil {
		return s.fail(ctx, v, res, "address", err, logger)
	}
	res.AddressID = addr.ID

	// Order.
	res.State = domain.StateSubmittingOrder
	var order *domain.Order
	err = s.step(authed, res.Attempt, "order", func(ctx context.Context) (err error) {
		order, err = s.orders.CreateOrder(ctx, domain.NewOrder{
			UserID:      sess.User.ID,
			AddressID:   addr.ID,
			ShippingFee: summary.Shipping,
			Items:       domain.OrderItemsFrom(summary.Items),
			Notes:       form.Notes,
		})
		return err
	})
	if err != nil {
		if s.cfg.Compensate {
			s.compensate(authed, res.Attempt, "deactivate_address", logger, func(ctx context.Context) error {
				return s.shipping.DeactivateAddress(ctx, addr.ID)
			})
		}
		return s.fail(ctx, v, res, "order", err, logger)
	}
	res.Order = order

	// Payment.
	res.State = domain.StateSubmittingPayment
	var receipt *domain.PaymentReceipt
	err = s.step(authed, res.Attempt, "payment", func(ctx context.Context) (err error) {
		receipt, err = s.payments.Process(ctx, domain.PaymentRequest{
			UserID:   sess.User.ID,
			OrderID:  order.ID,
			Amount:   summary.Total,
			Method:   form.Payment.Method,
			Card:     form.Payment.Card,
			Document: Digits(form.Payment.Document),
		})
		if err == nil && receipt.Status.Failed() {
			err = &domain.DeclinedError{Receipt: *receipt}
		}
		return err
	})
	if receipt != nil {
		res.Payment = receipt
	}
	if err != nil {
		if s.cfg.Compensate {
			s.compensate(authed, res.Attempt, "cancel_order", logger, func(ctx context.Context) error {
				_, err := s.orders.UpdateOrderStatus(ctx, order.ID, domain.OrderCancelled)
				return err
			})
		}
		return s.fail(ctx, v, res, "payment", err, logger)
	}

	if boleto, ok := receipt.Artifact.(domain.BoletoArtifact); ok && s.slips != nil {
		slip, err := s.slips.Render(s.slipData(sess, form, order, receipt, boleto))
		if err != nil {
			logger.Error("render boleto slip", "error", err)
			res.Warnings = append(res.Warnings, "The payment slip could not be generated. Use the digit line instead.")
		} else {
			res.Slip = slip
			res.HasSlip = true
		}
	}

	if err := v.Cart.RemoveOrdered(ctx, summary.Items); err != nil {
		logger.Warn("cart cleared in memory only", "error", err)
		res.Warnings = append(res.Warnings, "Your cart could not be saved.")
	}
	res.State = domain.StateSuccess
	res.Redirect = s.cfg.SuccessRedirect
	v.setLastCheckout(res)
	s.recorder.ObserveOutcome(OutcomeSuccess)
	logger.Info("checkout succeeded", "order_id", order.ID, "payment_status", receipt.Status)
	return res, nil
}

// step runs fn under the step timeout with an idempotency key derived from
// the attempt.
func (s *CheckoutService) step(ctx context.Context, attempt, name string, fn func(context.Context) error) error {
	ctx = domain.WithIdempotencyKey(ctx, attempt+":"+name)
	if s.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.StepTimeout)
		defer cancel()
	}
	start := s.now()
	err := fn(ctx)
	s.recorder.ObserveStep(name, s.now().Sub(start), err)
	return err
}

// compensate runs an undo action detached from the request's cancellation.
func (s *CheckoutService) compensate(ctx context.Context, attempt, name string, logger *slog.Logger, fn func(context.Context) error) {
	if err := s.step(context.WithoutCancel(ctx), attempt, name, fn); err != nil {
		logger.Error("compensation failed", "action", name, "error", err)
		return
	}
	logger.Info("compensation applied", "action", name)
}

func (s *CheckoutService) fail(ctx context.Context, v *Visitor, res *CheckoutResult, step string, err error, logger *slog.Logger) (*CheckoutResult, error) {
	err = ExpireOnUnauthorized(ctx, v, err, logger)
	res.State = domain.StateFailed
	res.FailedStep = step
	res.Message = domain.UserMessage(err)

	var rerr *domain.RemoteError
	if errors.As(err, &rerr) {
		res.Fields = rerr.Fields
	}
	var derr *domain.DeclinedError
	if errors.As(err, &derr) {
		logger.Info("payment declined", "step", step, "status", derr.Receipt.Status)
	} else {
		logger.Error("checkout step failed", "step", step, "error", err)
	}
	v.setLastCheckout(res)
	s.recorder.ObserveOutcome(OutcomeFailed)
	return res, fmt.Errorf("checkout %s: %w", step, err)
}

func (s *CheckoutService) slipData(sess domain.Session, form CheckoutForm, order *domain.Order, receipt *domain.PaymentReceipt, b domain.BoletoArtifact) SlipData {
	processed := receipt.ProcessedAt
	if processed.IsZero() {
		processed = s.now()
	}
	due := b.DueDate
	if due.IsZero() {
		due = processed.AddDate(0, 0, s.cfg.BoletoDueDays)
	}
	docDate := order.CreatedAt
	if docDate.IsZero() {
		docDate = processed
	}
	amount := receipt.Amount
	if amount.IsZero() {
		amount = order.Total
	}
	a := form.Address
	return SlipData{
		PayerName:      sess.User.Name,
		PayerDocument:  Digits(form.Payment.Document),
		PayerAddress:   fmt.Sprintf("%s, %s - %s, %s/%s - CEP %s", a.Street, a.Number, a.Neighborhood, a.City, a.State, a.PostalCode),
		Amount:         amount,
		DueDate:        due,
		DigitLine:      b.DigitLine,
		Barcode:        b.Barcode,
		DocumentNumber: order.Number,
		DocumentDate:   docDate,
		ProcessedAt:    processed,
	}
}
