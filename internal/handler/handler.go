package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/itchan-dev/usuarios/internal/config"
	"github.com/itchan-dev/usuarios/internal/logger"
	"github.com/itchan-dev/usuarios/internal/service"
	"github.com/itchan-dev/usuarios/internal/utils"
)

const healthTimeout = 2 * time.Second

// HealthChecker reports whether the account directory is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	auth   service.AuthService
	health HealthChecker
	cfg    *config.Config
}

func New(auth service.AuthService, health HealthChecker, cfg *config.Config) *Handler {
	return &Handler{auth: auth, health: health, cfg: cfg}
}

// Health returns 200 when the directory answers a ping and 503 otherwise.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.health.Ping(ctx); err != nil {
		logger.Log.Warn("health check failed", "error", err)
		utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
