package adapthttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"

	"bookstore/internal/app"
	"bookstore/internal/domain"
)

// errInvalidID is returned for a path id that is not a positive integer.
var errInvalidID = errors.New("invalid id")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error    string              `json:"error"`
	Fields   []domain.FieldError `json:"fields,omitempty"`
	Blockers []domain.Blocker    `json:"blockers,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := errorBody{Error: errorMessage(status, err)}

	var verr *domain.ValidationError
	var rerr *domain.RemoteError
	var berr *app.BlockedError
	switch {
	case errors.As(err, &berr):
		body.Blockers = berr.Blockers
		body.Fields = berr.Fields
	case errors.As(err, &verr):
		body.Fields = verr.Fields
	case errors.As(err, &rerr):
		body.Fields = rerr.Fields
	}
	writeJSON(w, status, body)
}

// errorMessage prefers the user-facing message. Local 4xx errors that have
// no specific user message are shown as is.
func errorMessage(status int, err error) string {
	msg := domain.UserMessage(err)
	if msg == domain.GenericMessage && status < 500 {
		return err.Error()
	}
	return msg
}

// statusFor maps an application or collaborator error to an HTTP status.
func statusFor(err error) int {
	var (
		verr *domain.ValidationError
		rerr *domain.RemoteError
		derr *domain.DeclinedError
		berr *app.BlockedError
	)
	switch {
	case errors.As(err, &berr), errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &derr):
		return http.StatusPaymentRequired
	case errors.Is(err, app.ErrNotAuthenticated), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrCheckoutInFlight), errors.Is(err, app.ErrOrderNotCancellable):
		return http.StatusConflict
	case errors.Is(err, app.ErrInvalidPrice), errors.Is(err, app.ErrInvalidPostalCode),
		errors.Is(err, app.ErrInvalidStatus), errors.Is(err, errInvalidID):
		return http.StatusBadRequest
	case errors.As(err, &rerr):
		if rerr.Status >= 400 && rerr.Status < 500 {
			return rerr.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUnexpectedResponse), errors.Is(err, app.ErrIncompleteAuthResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		loggerFrom(r.Context(), s.logger).Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, err)
}

// kept logs a PersistError and drops it: the change stays applied in
// memory. Any other error is returned.
func (s *Server) kept(r *http.Request, err error) error {
	var perr *app.PersistError
	if errors.As(err, &perr) {
		loggerFrom(r.Context(), s.logger).Warn("state not persisted", "key", perr.Key, "error", perr.Err)
		return nil
	}
	return err
}

func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func intQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func pathID(r *http.Request) (int64, error) {
	n, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidID, r.PathValue("id"))
	}
	return n, nil
}

func pageQuery(r *http.Request) domain.Page {
	return domain.Page{
		Number: intQuery(r, "page", domain.DefaultPage.Number),
		Size:   intQuery(r, "page_size", domain.DefaultPage.Size),
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func spaFromDisk(dir string) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))
	indexPath := path.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqPath := path.Clean(r.URL.Path)
		if reqPath == "/" {
			http.ServeFile(w, r, indexPath)
			return
		}

		staticPath := path.Join(dir, reqPath)
		if st, err := os.Stat(staticPath); err == nil && !st.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}

		http.ServeFile(w, r, indexPath)
	})
}
