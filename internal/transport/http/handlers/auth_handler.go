package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vedran77/chatwave/internal/service"
	"github.com/vedran77/chatwave/pkg/validator"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateRegister(input.Name, input.Email, input.Password); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	resp, err := h.authService.Register(r.Context(), input)
	if err != nil {
		writeServiceError(w, err, "register")
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateLogin(input.Email, input.Password); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	resp, err := h.authService.Login(r.Context(), input)
	if err != nil {
		writeServiceError(w, err, "login")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type otpRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var input otpRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateOTPRequest(input.Email); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	if err := h.authService.RequestOTP(r.Context(), input.Email); err != nil {
		writeServiceError(w, err, "request otp")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent to your email."})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var input otpRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := h.authService.VerifyOTP(r.Context(), input.Email, input.OTP); err != nil {
		writeServiceError(w, err, "verify otp")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP verified."})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var input otpRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateResetPassword(input.Email, input.OTP, input.NewPassword); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	if err := h.authService.ResetPassword(r.Context(), input.Email, input.OTP, input.NewPassword); err != nil {
		writeServiceError(w, err, "reset password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset successful."})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":   "VALIDATION_ERROR",
			"fields": errs,
		},
	})
}

// writeServiceError maps service error codes to HTTP statuses. Anything that
// is not a *service.Error is logged and reported as an internal error.
func writeServiceError(w http.ResponseWriter, err error, op string) {
	code := service.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case service.CodeInvalidRequest, service.CodeInvalidParticipants:
		status = http.StatusBadRequest
	case service.CodeUnauthenticated:
		status = http.StatusUnauthorized
	case service.CodeForbidden:
		status = http.StatusForbidden
	case service.CodeNotFound:
		status = http.StatusNotFound
	case service.CodeConflict:
		status = http.StatusConflict
	case service.CodeUpstreamUnavailable:
		status = http.StatusBadGateway
	default:
		slog.Error("request failed", "op", op, "error", err)
		writeError(w, status, "INTERNAL", "Something went wrong")
		return
	}
	writeError(w, status, string(code), err.Error())
}
