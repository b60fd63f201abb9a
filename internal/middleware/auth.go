package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/itchan-dev/usuarios/internal/domain"
	internal_errors "github.com/itchan-dev/usuarios/internal/errors"
	"github.com/itchan-dev/usuarios/internal/utils"
	jwt_internal "github.com/itchan-dev/usuarios/internal/utils/jwt"
)

// TokenVerifier checks a session token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (jwt_internal.Claims, error)
}

// Key to store the user id in the request context
type key int

const userIdKey key = 0

const accessTokenCookie = "accessToken"

type Auth struct {
	verifier TokenVerifier
}

func NewAuth(verifier TokenVerifier) *Auth {
	return &Auth{verifier: verifier}
}

// NeedAuth rejects requests without a valid token with 401. The token is read
// from the accessToken cookie first, then from an Authorization: Bearer header.
func (a *Auth) NeedAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				utils.WriteErrorAndStatusCode(w, internal_errors.Unauthorized("Please sign-in"), "Invalid token")
				return
			}

			claims, err := a.verifier.Verify(token)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), userIdKey, claims.UserId)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(accessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		return strings.TrimSpace(token)
	}
	return ""
}

// GetUserIdFromContext returns the authenticated user id, or "" outside NeedAuth.
func GetUserIdFromContext(r *http.Request) domain.UserId {
	userId, _ := r.Context().Value(userIdKey).(domain.UserId)
	return userId
}
