package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/service"
	"github.com/vedran77/chatwave/internal/transport/http/middleware"
)

type UserHandler struct {
	authService  *service.AuthService
	blockService *service.BlockService
}

func NewUserHandler(authService *service.AuthService, blockService *service.BlockService) *UserHandler {
	return &UserHandler{authService: authService, blockService: blockService}
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	users, err := h.authService.Search(r.Context(), r.URL.Query().Get("search"), userID)
	if err != nil {
		writeServiceError(w, err, "search users")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

type blockRequest struct {
	UserID uuid.UUID `json:"userId"`
}

func (h *UserHandler) ToggleBlock(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input blockRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	status, err := h.blockService.Toggle(r.Context(), userID, input.UserID)
	if err != nil {
		writeServiceError(w, err, "toggle block")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *UserHandler) BlockStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	raw := r.URL.Query().Get("userId")
	if raw == "" {
		writeServiceError(w, service.ErrUserIDRequired, "block status")
		return
	}
	targetID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}

	status, err := h.blockService.Status(r.Context(), userID, targetID)
	if err != nil {
		writeServiceError(w, err, "block status")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

type updateProfileRequest struct {
	Pic string `json:"pic"`
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	user, err := h.authService.UpdateProfile(r.Context(), userID, input.Pic)
	if err != nil {
		writeServiceError(w, err, "update profile")
		return
	}

	writeJSON(w, http.StatusOK, user)
}
