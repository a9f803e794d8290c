package httpx

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

func NewRouter(log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, accessLog(log), middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

type ctxKey int

const userKey ctxKey = iota

// UserHeader carries the authenticated user id, set by the auth gateway in front of the API.
const UserHeader = "X-User-ID"

func headerUser(r *http.Request) (int64, bool) {
	v := strings.TrimSpace(r.Header.Get(UserHeader))
	id, err := strconv.ParseInt(v, 10, 64)
	return id, err == nil && id > 0
}

// RequireUser rejects requests without a valid user id header.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := headerUser(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Message: "authentication required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, id)))
	})
}

// OptionalUser attaches the user id when present and lets anonymous requests through.
func OptionalUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := headerUser(r); ok {
			r = r.WithContext(context.WithValue(r.Context(), userKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userKey).(int64)
	return id, ok
}

func userPtr(ctx context.Context) *int64 {
	if id, ok := UserID(ctx); ok {
		return &id
	}
	return nil
}

// RequireAdmin guards back-office routes with a shared token. An empty token
// disables them.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.Header.Get("X-Admin-Token") != token {
				writeError(w, r, zap.NewNop(), apperr.Unauthorized("admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
