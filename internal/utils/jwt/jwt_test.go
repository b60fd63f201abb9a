package jwt

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	internal_errors "github.com/itchan-dev/usuarios/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secretKey = "testJwtKey"

var issuedAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newAt(t *testing.T, key string, ttl time.Duration, now time.Time) *Jwt {
	t.Helper()
	j, err := New(key, ttl)
	require.NoError(t, err)
	j.now = func() time.Time { return now }
	return j
}

func TestNewMissingKey(t *testing.T) {
	_, err := New("", time.Hour)
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestNewTokenExpiresAfterTTL(t *testing.T) {
	j := newAt(t, secretKey, time.Hour, issuedAt)
	token, err := j.NewToken("user-1")
	require.NoError(t, err)

	claims, err := j.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserId)
	assert.True(t, claims.IssuedAt.Equal(issuedAt))
	assert.True(t, claims.ExpiresAt.Equal(issuedAt.Add(time.Hour)))
}

func TestNewTokenDeterministic(t *testing.T) {
	j := newAt(t, secretKey, time.Hour, issuedAt)
	first, err := j.NewToken("user-1")
	require.NoError(t, err)
	second, err := j.NewToken("user-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	j.now = func() time.Time { return issuedAt.Add(time.Second) }
	third, err := j.NewToken("user-1")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestVerifyExpired(t *testing.T) {
	token, err := newAt(t, secretKey, time.Hour, issuedAt).NewToken("user-1")
	require.NoError(t, err)

	later := newAt(t, secretKey, time.Hour, issuedAt.Add(time.Hour+time.Second))
	_, err = later.Verify(token)
	require.Error(t, err)
	e, ok := err.(*internal_errors.ErrorWithStatusCode)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, e.StatusCode)
	assert.Equal(t, "Token expired", e.Message)

	earlier := newAt(t, secretKey, time.Hour, issuedAt.Add(59*time.Minute))
	_, err = earlier.Verify(token)
	assert.NoError(t, err)
}

func TestVerifyInvalidSecretKey(t *testing.T) {
	token, err := newAt(t, secretKey, time.Hour, issuedAt).NewToken("user-1")
	require.NoError(t, err)

	_, err = newAt(t, "invalidSecret", time.Hour, issuedAt).Verify(token)
	assert.Equal(t, http.StatusUnauthorized, internal_errors.StatusCode(err))
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	claims := tokenClaims{
		Uid: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newAt(t, secretKey, time.Hour, issuedAt).Verify(unsigned)
	assert.Equal(t, http.StatusUnauthorized, internal_errors.StatusCode(err))
}

func TestVerifyRequiresExpiry(t *testing.T) {
	claims := tokenClaims{Uid: "user-1"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
	require.NoError(t, err)

	_, err = newAt(t, secretKey, time.Hour, issuedAt).Verify(token)
	assert.Error(t, err)
}

func TestVerifyGarbage(t *testing.T) {
	_, err := newAt(t, secretKey, time.Hour, issuedAt).Verify("not.a.token")
	assert.Error(t, err)
}
