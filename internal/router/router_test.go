package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/itchan-dev/usuarios/internal/api"
	"github.com/itchan-dev/usuarios/internal/config"
	"github.com/itchan-dev/usuarios/internal/logger"
	"github.com/itchan-dev/usuarios/internal/setup"
	"github.com/itchan-dev/usuarios/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Silence()
	os.Exit(m.Run())
}

type capturedMail struct {
	to, body string
}

type MockEmail struct {
	mu   sync.Mutex
	sent []capturedMail
	err  error
}

func (m *MockEmail) Send(ctx context.Context, recipientEmail, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, capturedMail{recipientEmail, body})
	return nil
}

func (m *MockEmail) last(t *testing.T) capturedMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

func testConfig() *config.Config {
	return &config.Config{
		Public: config.Public{
			JwtTTL:  time.Hour,
			Storage: config.Storage{Driver: config.DriverMemory},
			Cors:    config.Cors{Origin: "http://localhost:3000"},
		},
		Private: config.Private{JwtKey: "test_secret"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (http.Handler, *MockEmail) {
	t.Helper()
	mailer := &MockEmail{}
	deps, err := setup.NewDependencies(cfg, memory.New(), mailer)
	require.NoError(t, err)
	t.Cleanup(func() { deps.Close() })
	return New(deps), mailer
}

func do(t *testing.T, h http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

var secretPattern = regexp.MustCompile(`[0-9a-f]{16}`)

func TestAccountLifecycle(t *testing.T) {
	h, mailer := newTestServer(t, testConfig())

	rr := do(t, h, http.MethodPost, "/registro", api.RegisterRequest{Name: "Ana", Email: "ana@x.com", Password: "s3cret"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/registro", api.RegisterRequest{Name: "Ana", Email: "ana@x.com", Password: "other"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/login", api.LoginRequest{Email: "ana@x.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, http.MethodPost, "/login", api.LoginRequest{Email: "nobody@x.com", Password: "s3cret"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPost, "/login", api.LoginRequest{Email: "ana@x.com", Password: "s3cret"})
	require.Equal(t, http.StatusOK, rr.Code)
	var login api.LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	rr = do(t, h, http.MethodGet, "/perfil", nil, "Authorization", "Bearer "+login.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	var me api.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, "ana@x.com", me.Email)
	assert.Equal(t, "Ana", me.Name)

	rr = do(t, h, http.MethodGet, "/usuarios", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "$2a$")
	var users []api.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, me.Id, users[0].Id)

	rr = do(t, h, http.MethodPut, "/recuperar", api.RecoverRequest{Email: "nobody@x.com"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPut, "/recuperar", api.RecoverRequest{Email: "ana@x.com"})
	require.Equal(t, http.StatusOK, rr.Code)
	mail := mailer.last(t)
	assert.Equal(t, "ana@x.com", mail.to)
	secret := secretPattern.FindString(mail.body)
	require.Len(t, secret, 16)

	rr = do(t, h, http.MethodPost, "/login", api.LoginRequest{Email: "ana@x.com", Password: "s3cret"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "old password must stop working")

	rr = do(t, h, http.MethodPost, "/login", api.LoginRequest{Email: "ana@x.com", Password: secret})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRecoverMailFailureKeepsPassword(t *testing.T) {
	h, mailer := newTestServer(t, testConfig())

	rr := do(t, h, http.MethodPost, "/registro", api.RegisterRequest{Name: "Ana", Email: "ana@x.com", Password: "s3cret"})
	require.Equal(t, http.StatusCreated, rr.Code)

	mailer.err = assert.AnError
	rr = do(t, h, http.MethodPut, "/recuperar", api.RecoverRequest{Email: "ana@x.com"})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = do(t, h, http.MethodPost, "/login", api.LoginRequest{Email: "ana@x.com", Password: "s3cret"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestProfileNeedsToken(t *testing.T) {
	h, _ := newTestServer(t, testConfig())

	rr := do(t, h, http.MethodGet, "/perfil", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, http.MethodGet, "/perfil", nil, "Authorization", "Bearer nonsense")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRateLimitedLogin(t *testing.T) {
	cfg := testConfig()
	cfg.Public.RateLimit = config.RateLimit{RPS: 0.001, Burst: 2}
	h, _ := newTestServer(t, cfg)

	body := api.LoginRequest{Email: "nobody@x.com", Password: "x"}
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/login", body).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/login", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodPost, "/login", body).Code)

	// registration is not limited
	rr := do(t, h, http.MethodPost, "/registro", api.RegisterRequest{Name: "Ana", Email: "ana@x.com", Password: "s3cret"})
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestAmbientRoutes(t *testing.T) {
	h, _ := newTestServer(t, testConfig())

	rr := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))

	do(t, h, http.MethodGet, "/usuarios", nil)
	rr = do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `path="/usuarios"`)

	rr = do(t, h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHTTPSDeployment(t *testing.T) {
	cfg := testConfig()
	cfg.Public.HTTPS = config.HTTPS{Enabled: true, HSTSMaxAge: time.Hour}
	h, _ := newTestServer(t, cfg)

	rr := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, "max-age=3600; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))

	rr = do(t, h, http.MethodPost, "/registro", api.RegisterRequest{Name: "Ana", Email: "ana@x.com", Password: "s3cret"})
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = do(t, h, http.MethodPost, "/login", api.LoginRequest{Email: "ana@x.com", Password: "s3cret"})
	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
}

func TestCORS(t *testing.T) {
	h, _ := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestMissingJwtKey(t *testing.T) {
	cfg := testConfig()
	cfg.Private.JwtKey = ""
	_, err := setup.NewDependencies(cfg, memory.New(), &MockEmail{})
	assert.Error(t, err)
}
