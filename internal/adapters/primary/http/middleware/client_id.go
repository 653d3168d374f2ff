package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/repair-desk/internal/infrastructure/logging"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const clientIDKey contextKey = "desk_client_id"

// ClientCookieConfig controls the cookie that identifies a desk client.
type ClientCookieConfig struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// ClientID assigns every browser a stable client id. Each id owns one
// workspace, the way each browser owned its own local storage.
func ClientID(cfg ClientCookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := clientIDFromCookie(r, cfg.Name)
			if !ok {
				id = uuid.New()
			}

			// Refresh on every request so active clients never expire.
			http.SetCookie(w, &http.Cookie{
				Name:     cfg.Name,
				Value:    id.String(),
				Path:     "/",
				MaxAge:   int(cfg.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := context.WithValue(r.Context(), clientIDKey, id)
			ctx = logging.WithClientID(ctx, id.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIDFromCookie(r *http.Request, name string) (uuid.UUID, bool) {
	cookie, err := r.Cookie(name)
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// GetClientID returns the client id set by ClientID.
func GetClientID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(clientIDKey).(uuid.UUID)
	return id, ok
}

// WithClientID stores a client id in ctx. Handlers in tests use it to skip
// the cookie round trip.
func WithClientID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, clientIDKey, id)
}
