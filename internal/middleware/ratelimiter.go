package middleware

import (
	"net/http"

	internal_errors "github.com/itchan-dev/usuarios/internal/errors"
	"github.com/itchan-dev/usuarios/internal/logger"
	"github.com/itchan-dev/usuarios/internal/middleware/ratelimiter"
	"github.com/itchan-dev/usuarios/internal/utils"
)

// RateLimit rejects with 429 once identity has used up its bucket.
func RateLimit(rl *ratelimiter.UserRateLimiter, getIdentity func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := getIdentity(r)
			if err != nil {
				logger.Log.Warn("can't identify client for rate limiting", "error", err)
				utils.WriteErrorAndStatusCode(w, &internal_errors.ErrorWithStatusCode{Message: "Bad request", StatusCode: http.StatusBadRequest}, "Bad request")
				return
			}
			if !rl.Allow(identity) {
				w.Header().Set("Retry-After", "1")
				utils.WriteErrorAndStatusCode(w, &internal_errors.ErrorWithStatusCode{Message: "Rate limit exceeded", StatusCode: http.StatusTooManyRequests}, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetIP(r *http.Request) (string, error) {
	return utils.GetIP(r)
}
