package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/service"
	"github.com/vedran77/chatwave/internal/transport/http/middleware"
	"github.com/vedran77/chatwave/pkg/validator"
)

type ChatHandler struct {
	convService *service.ConversationService
}

func NewChatHandler(convService *service.ConversationService) *ChatHandler {
	return &ChatHandler{convService: convService}
}

type accessChatRequest struct {
	UserID uuid.UUID `json:"userId"`
}

// Access returns the one-to-one chat with another user, creating it if needed.
func (h *ChatHandler) Access(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input accessChatRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	conv, err := h.convService.AccessDirect(r.Context(), userID, input.UserID)
	if err != nil {
		writeServiceError(w, err, "access chat")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	convs, err := h.convService.ListForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "list chats")
		return
	}

	writeJSON(w, http.StatusOK, convs)
}

func (h *ChatHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateGroupInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateGroup(input.Name, len(input.Users)); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	conv, err := h.convService.CreateGroup(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, err, "create group")
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}
