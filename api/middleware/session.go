package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/lunebox/storefront-backend/api/responses"
	"github.com/lunebox/storefront-backend/pkg/config"
	pkgerrors "github.com/lunebox/storefront-backend/pkg/errors"
	"github.com/lunebox/storefront-backend/pkg/logger"
)

type sessionManager interface {
	Issue(ctx context.Context) (string, string, error)
	Resolve(token string) (string, error)
	Touch(ctx context.Context, sessionID string) error
}

// Session binds every request to a shopper session. A valid token in
// the cookie (or Authorization header for non-browser clients) resolves
// to its session; anything else gets a fresh anonymous session minted
// on the spot. Handlers downstream always see a session ID.
func Session(manager sessionManager, cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sessionID := resolveToken(manager, r, cfg.CookieName)
			if sessionID == "" {
				id, token, err := manager.Issue(ctx)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "start session"))
					return
				}
				sessionID = id
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(cfg.TTL / time.Second),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			} else if err := manager.Touch(ctx, sessionID); err != nil && logg != nil {
				logg.Warn(ctx, "session liveness refresh failed")
			}

			ctx = WithSessionID(ctx, sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveToken(manager sessionManager, r *http.Request, cookieName string) string {
	var token string
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	} else if cookie, err := r.Cookie(cookieName); err == nil {
		token = cookie.Value
	}
	if token == "" {
		return ""
	}
	sessionID, err := manager.Resolve(token)
	if err != nil {
		return ""
	}
	return sessionID
}
