package adapthttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"bookstore/internal/app"
	"bookstore/internal/domain"
)

type contextKey string

const (
	visitorContextKey   contextKey = "visitor"
	requestIDContextKey contextKey = "request_id"
	loggerContextKey    contextKey = "logger"
)

// visitorFrom returns the visitor attached by withVisitor.
func visitorFrom(ctx context.Context) *app.Visitor {
	v, _ := ctx.Value(visitorContextKey).(*app.Visitor)
	return v
}

// RequestIDFrom returns the request id attached to ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

func loggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return l
	}
	return fallback
}

// withVisitor identifies the browser by its visitor cookie, issuing a new
// id when the cookie is missing or malformed.
func (s *Server) withVisitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(s.cookie.Name); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     s.cookie.Name,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.cookie.Secure,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   int(s.cookie.MaxAge / time.Second),
			})
		}

		v := s.visitors.Visitor(r.Context(), id)
		// Collaborator calls made while serving the request carry the
		// visitor's bearer token, when signed in.
		ctx := v.Session.Context(r.Context())
		ctx = context.WithValue(ctx, visitorContextKey, v)
		ctx = context.WithValue(ctx, loggerContextKey, loggerFrom(ctx, s.logger).With("visitor", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireSession rejects visitors that are not signed in.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !visitorFrom(r.Context()).Session.Current().Authenticated() {
			writeError(w, http.StatusUnauthorized, app.ErrNotAuthenticated)
			return
		}
		next(w, r)
	}
}

// requireAdmin rejects visitors without the admin role.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireSession(func(w http.ResponseWriter, r *http.Request) {
		if !visitorFrom(r.Context()).Session.Current().Admin() {
			writeError(w, http.StatusForbidden, domain.ErrForbidden)
			return
		}
		next(w, r)
	})
}

// withRequestID propagates X-Request-ID, generating one when absent, and
// attaches a request-scoped logger.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		ctx = context.WithValue(ctx, loggerContextKey, s.logger.With("request_id", requestID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		loggerFrom(r.Context(), s.logger).Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// statusRecorder captures the response status for logs and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

// Flush lets server-sent events through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
