package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vedran77/chatwave/internal/service"
	"github.com/vedran77/chatwave/internal/transport/http/middleware"
)

type MessageHandler struct {
	dispatchService *service.DispatchService
	convService     *service.ConversationService
}

func NewMessageHandler(dispatchService *service.DispatchService, convService *service.ConversationService) *MessageHandler {
	return &MessageHandler{dispatchService: dispatchService, convService: convService}
}

type sendMessageRequest struct {
	Content   string    `json:"content"`
	ChatID    uuid.UUID `json:"chatId"`
	MediaURL  string    `json:"mediaUrl"`
	MediaType string    `json:"mediaType"`
}

// sendTimeout bounds a dispatch started over HTTP. The dispatch is detached
// from the request so a client hanging up cannot cut a broadcast fan-out short.
const sendTimeout = 30 * time.Second

// Send is the HTTP entry into the dispatch engine. Recipients are notified
// over their sockets the same way as for a socket send; the response carries
// every stored message, the target chat's first.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), sendTimeout)
	defer cancel()

	msgs, err := h.dispatchService.Send(ctx, service.SendInput{
		SenderID:       userID,
		ConversationID: input.ChatID,
		Content:        input.Content,
		MediaURL:       input.MediaURL,
		MediaType:      input.MediaType,
	})
	if err != nil {
		writeServiceError(w, err, "send message")
		return
	}

	writeJSON(w, http.StatusCreated, msgs)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	chatID, err := uuid.Parse(chi.URLParam(r, "chatId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid chat ID")
		return
	}

	messages, err := h.convService.Messages(r.Context(), userID, chatID)
	if err != nil {
		writeServiceError(w, err, "list messages")
		return
	}

	writeJSON(w, http.StatusOK, messages)
}
