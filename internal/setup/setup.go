package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/itchan-dev/usuarios/internal/config"
	"github.com/itchan-dev/usuarios/internal/handler"
	"github.com/itchan-dev/usuarios/internal/logger"
	"github.com/itchan-dev/usuarios/internal/middleware"
	"github.com/itchan-dev/usuarios/internal/middleware/metrics"
	"github.com/itchan-dev/usuarios/internal/middleware/ratelimiter"
	"github.com/itchan-dev/usuarios/internal/service"
	"github.com/itchan-dev/usuarios/internal/storage/memory"
	"github.com/itchan-dev/usuarios/internal/storage/mongo"
	"github.com/itchan-dev/usuarios/internal/storage/pg"
	"github.com/itchan-dev/usuarios/internal/utils/email"
	"github.com/itchan-dev/usuarios/internal/utils/hasher"
	"github.com/itchan-dev/usuarios/internal/utils/jwt"
)

const (
	connectTimeout     = 15 * time.Second
	rateLimitIdleAfter = time.Hour
)

// Storage is an account directory the process owns: it can be pinged by the
// health check and closed on shutdown.
type Storage interface {
	service.AuthStorage
	Ping(ctx context.Context) error
	Cleanup() error
}

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Config         *config.Config
	Storage        Storage
	Handler        *handler.Handler
	AuthMiddleware *middleware.Auth
	Metrics        *metrics.Metrics
	// RateLimiter is nil when rate limiting is disabled.
	RateLimiter *ratelimiter.UserRateLimiter
}

// SetupDependencies opens the configured directory and wires everything else
// around it.
func SetupDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mailer := email.New(cfg.Public.Email, cfg.Private.Email)
	deps, err := NewDependencies(cfg, storage, mailer)
	if err != nil {
		storage.Cleanup()
		return nil, err
	}
	return deps, nil
}

// NewDependencies wires the service, handler and middleware around an
// already opened storage and notifier.
func NewDependencies(cfg *config.Config, storage Storage, notifier service.Email) (*Dependencies, error) {
	jwtService, err := jwt.New(cfg.JwtKey(), cfg.JwtTTL())
	if err != nil {
		return nil, err
	}

	auth := service.NewAuth(storage, hasher.New(hasher.DefaultCost), notifier, jwtService)

	deps := &Dependencies{
		Config:         cfg,
		Storage:        storage,
		Handler:        handler.New(auth, storage, cfg),
		AuthMiddleware: middleware.NewAuth(jwtService),
		Metrics:        metrics.New(),
	}
	if rl := cfg.Public.RateLimit; rl.RPS > 0 {
		deps.RateLimiter = ratelimiter.New(rl.RPS, rl.Burst, rateLimitIdleAfter)
	}
	return deps, nil
}

// Close releases the storage connection and background workers.
func (d *Dependencies) Close() error {
	if d.RateLimiter != nil {
		d.RateLimiter.Stop()
	}
	return d.Storage.Cleanup()
}

func openStorage(ctx context.Context, cfg *config.Config) (Storage, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Public.Storage.Driver {
	case config.DriverPostgres:
		logger.Log.Info("using postgres storage")
		return pg.New(ctx, cfg.Private.DatabaseURL)
	case config.DriverMongo:
		logger.Log.Info("using mongo storage", "database", cfg.Public.Storage.MongoDatabase)
		return mongo.New(ctx, cfg.Private.MongoURI, cfg.Public.Storage.MongoDatabase)
	case config.DriverMemory:
		logger.Log.Warn("using in-memory storage, accounts are lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Public.Storage.Driver)
	}
}
