package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// DefaultIdentityHeader carries the authenticated user id set by the
// upstream auth proxy.
const DefaultIdentityHeader = "X-User-Id"

const requestIDHeader = "X-Request-Id"

type contextKey int

const (
	userIDKey contextKey = iota
	requestIDKey
)

// WithUserID stores the authenticated user id on ctx.
func WithUserID(ctx context.Context, uid int64) context.Context {
	return context.WithValue(ctx, userIDKey, uid)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	uid, ok := ctx.Value(userIDKey).(int64)
	return uid, ok
}

// RequestIDFromContext returns the request id assigned by the server.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// HeaderIdentity trusts header to carry a positive numeric user id. Requests
// without one are rejected with 401.
func HeaderIdentity(header string) mux.MiddlewareFunc {
	if header == "" {
		header = DefaultIdentityHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(header)), 10, 64)
			if err != nil || uid <= 0 {
				respondError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
		})
	}
}

// requestID reuses an inbound X-Request-Id or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// observe logs each request and feeds the HTTP metrics, labelled by route
// template so ids do not explode label cardinality.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		if s.metrics != nil {
			s.metrics.ObserveRequest(route, r.Method, rec.status, elapsed)
		}
		s.log.Debug("request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration", elapsed.String(),
			"request_id", RequestIDFromContext(r.Context()))
	})
}
