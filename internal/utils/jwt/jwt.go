package jwt

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/itchan-dev/usuarios/internal/domain"
	internal_errors "github.com/itchan-dev/usuarios/internal/errors"
	"github.com/itchan-dev/usuarios/internal/logger"
)

var (
	ErrMissingKey = errors.New("jwt secret key is empty")
	ErrSigning    = errors.New("can't create token")
)

// Claims is what a verified session token says about its bearer.
type Claims struct {
	UserId    domain.UserId
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	Uid domain.UserId `json:"uid"`
	jwt.RegisteredClaims
}

type Jwt struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// New fails when secretKey is empty: without a key no token can be issued,
// so the process should not start.
func New(secretKey string, ttl time.Duration) (*Jwt, error) {
	if secretKey == "" {
		return nil, ErrMissingKey
	}
	return &Jwt{secretKey: []byte(secretKey), ttl: ttl, now: time.Now}, nil
}

func (j *Jwt) TTL() time.Duration {
	return j.ttl
}

// NewToken signs an HS256 token for userId that expires ttl after now.
func (j *Jwt) NewToken(userId domain.UserId) (string, error) {
	now := j.now()
	claims := tokenClaims{
		Uid: userId,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userId,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		logger.Log.Error("failed to sign token", "user_id", userId, "error", err)
		return "", fmt.Errorf("%w: %w", ErrSigning, err)
	}
	return tokenString, nil
}

// Verify checks signature, algorithm and expiry. Expiry is compared with the
// clock at verification time.
func (j *Jwt) Verify(tokenString string) (Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return j.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, &internal_errors.ErrorWithStatusCode{Message: "Token expired", StatusCode: http.StatusUnauthorized}
		}
		logger.Log.Debug("token rejected", "error", err)
		return Claims{}, &internal_errors.ErrorWithStatusCode{Message: "Invalid token", StatusCode: http.StatusUnauthorized}
	}
	if !token.Valid || claims.Uid == "" {
		return Claims{}, &internal_errors.ErrorWithStatusCode{Message: "Invalid token", StatusCode: http.StatusUnauthorized}
	}

	out := Claims{UserId: claims.Uid, ExpiresAt: claims.ExpiresAt.Time}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
