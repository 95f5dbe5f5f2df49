package adapthttp

import (
	"errors"
	"net/http"

	"bookstore/internal/app"
	"bookstore/internal/domain"
)

func (s *Server) methods() []domain.PaymentMethod {
	m := s.checkout.Methods()
	if m == nil {
		m = []domain.PaymentMethod{}
	}
	return m
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"methods":  s.methods(),
			"cart":     cartView(v.Cart),
			"session":  sessionView(v.Session.Current()),
			"inFlight": v.CheckoutInFlight(),
		})
	case http.MethodPost:
		s.submitCheckout(w, r, v)
	default:
		methodNotAllowed(w)
	}
}

// submitCheckout runs one attempt. Every attempt that started answers with
// its result; the status reflects how it ended.
func (s *Server) submitCheckout(w http.ResponseWriter, r *http.Request, v *app.Visitor) {
	var form app.CheckoutForm
	if err := parseJSON(r, &form); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.checkout.Submit(r.Context(), v, form)
	if res == nil {
		if err == nil {
			err = errors.New("checkout returned no result")
		}
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		if status >= 500 {
			loggerFrom(r.Context(), s.logger).Error("checkout failed",
				"attempt", res.Attempt, "step", res.FailedStep, "error", err)
		}
	}
	writeJSON(w, status, res)
}

func (s *Server) handleCheckoutMethods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"methods": s.methods()})
}

// handleCheckoutValidate reports what keeps a form from being submitted
// without starting an attempt.
func (s *Server) handleCheckoutValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var form app.CheckoutForm
	if err := parseJSON(r, &form); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	blockers, fields := s.checkout.Blockers(visitorFrom(r.Context()), form)
	if blockers == nil {
		blockers = []domain.Blocker{}
	}
	if fields == nil {
		fields = []domain.FieldError{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":    len(blockers) == 0,
		"blockers": blockers,
		"fields":   fields,
	})
}

func (s *Server) handleCheckoutLast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	last := visitorFrom(r.Context()).LastCheckout()
	if last == nil {
		writeError(w, http.StatusNotFound, errors.New("no checkout attempt yet"))
		return
	}
	writeJSON(w, http.StatusOK, last)
}

// handleCheckoutSlip serves the printable boleto slip of the last attempt.
func (s *Server) handleCheckoutSlip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	last := visitorFrom(r.Context()).LastCheckout()
	if last == nil || !last.HasSlip {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(last.Slip))
}

func (s *Server) handlePostalCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	draft, err := s.shipping.Lookup(r.Context(), r.PathValue("cep"), domain.AddressDraft{})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleAddresses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	addrs, err := s.shipping.Addresses(r.Context(), visitorFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if addrs == nil {
		addrs = []domain.Address{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": addrs})
}

func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	v := visitorFrom(r.Context())
	switch r.Method {
	case http.MethodPut:
		var req domain.AddressDraft
		if err := parseJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		a, err := s.shipping.UpdateAddress(r.Context(), v, id, req)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	case http.MethodDelete:
		if err := s.shipping.RemoveAddress(r.Context(), v, id); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}
