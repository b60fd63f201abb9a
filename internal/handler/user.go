package handler

import (
	"net/http"

	"github.com/itchan-dev/usuarios/internal/api"
	internal_errors "github.com/itchan-dev/usuarios/internal/errors"
	"github.com/itchan-dev/usuarios/internal/middleware"
	"github.com/itchan-dev/usuarios/internal/utils"
)

// Users lists every registered account. Password hashes never reach the
// response since api.User has no field for them.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.Users(r.Context())
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err, "Error listing users")
		return
	}
	utils.WriteJSON(w, http.StatusOK, api.NewUsers(users))
}

// Me returns the account of the authenticated caller.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userId := middleware.GetUserIdFromContext(r)
	if userId == "" {
		utils.WriteErrorAndStatusCode(w, internal_errors.Unauthorized("Please sign-in"), "Error loading profile")
		return
	}

	user, err := h.auth.User(r.Context(), userId)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err, "Error loading profile")
		return
	}
	utils.WriteJSON(w, http.StatusOK, api.NewUser(user))
}
