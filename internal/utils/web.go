package utils

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/itchan-dev/usuarios/internal/api"
	"github.com/itchan-dev/usuarios/internal/errors"
	"github.com/itchan-dev/usuarios/internal/logger"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// WriteErrorAndStatusCode renders err as a JSON error body. Classified errors
// keep their status, message and detail. Anything else becomes a 500 with
// fallback as the message; the raw error is only logged.
func WriteErrorAndStatusCode(w http.ResponseWriter, err error, fallback string) {
	status := errors.StatusCode(err)
	if status == http.StatusInternalServerError {
		logger.Log.Error(fallback, "error", err)
		WriteJSON(w, status, api.ErrorResponse{Error: fallback})
		return
	}

	var e *errors.ErrorWithStatusCode
	if !stderrors.As(err, &e) {
		e = &errors.ErrorWithStatusCode{Message: err.Error()}
	}
	WriteJSON(w, status, api.ErrorResponse{Error: e.Message, Detail: e.Detail})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Log.Error("failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// DecodeValidate reads a JSON body into body and runs its validate tags.
func DecodeValidate(r io.ReadCloser, body any) error {
	defer r.Close()
	if err := json.NewDecoder(io.LimitReader(r, maxBodyBytes)).Decode(body); err != nil {
		logger.Log.Debug("invalid json body", "error", err)
		return &errors.ErrorWithStatusCode{Message: "Body is invalid json", StatusCode: http.StatusBadRequest}
	}
	if err := validate.Struct(body); err != nil {
		logger.Log.Debug("body failed validation", "error", err)
		return &errors.ErrorWithStatusCode{Message: "Required fields missing or invalid", StatusCode: http.StatusBadRequest, Detail: validationDetail(err)}
	}
	return nil
}

func validationDetail(err error) string {
	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrors) == 0 {
		return ""
	}
	fe := fieldErrors[0]
	return fmt.Sprintf("field %s failed on %s", fe.Field(), fe.Tag())
}

// GetIP extracts the client IP from RemoteAddr. Forwarding headers are not
// trusted.
func GetIP(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("invalid IP address: %s", ip)
	}
	return ip, nil
}
