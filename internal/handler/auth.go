package handler

import (
	"net/http"

	"github.com/itchan-dev/usuarios/internal/api"
	"github.com/itchan-dev/usuarios/internal/domain"
	"github.com/itchan-dev/usuarios/internal/utils"
)

const accessTokenCookie = "accessToken"

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body api.RegisterRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err, "Error registering user")
		return
	}

	creds := domain.Credentials{Email: body.Email, Password: body.Password}
	if _, err := h.auth.Register(r.Context(), body.Name, creds); err != nil {
		utils.WriteErrorAndStatusCode(w, err, "Error registering user")
		return
	}

	utils.WriteJSON(w, http.StatusCreated, api.MessageResponse{Message: "User registered successfully"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body api.LoginRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err, "Error logging in")
		return
	}

	token, err := h.auth.Login(r.Context(), domain.Credentials{Email: body.Email, Password: body.Password})
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err, "Error logging in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     accessTokenCookie,
		Value:    token,
		MaxAge:   int(h.cfg.JwtTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.Public.HTTPS.Enabled,
		SameSite: http.SameSiteLaxMode,
	})
	utils.WriteJSON(w, http.StatusOK, api.LoginResponse{Message: "Logged in successfully", Token: token})
}

func (h *Handler) Recover(w http.ResponseWriter, r *http.Request) {
	var body api.RecoverRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err, "Error recovering password")
		return
	}

	if err := h.auth.Recover(r.Context(), body.Email); err != nil {
		utils.WriteErrorAndStatusCode(w, err, "Error recovering password")
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: "Recovery email sent"})
}
