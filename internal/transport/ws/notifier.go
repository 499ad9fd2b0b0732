package ws

import (
	"github.com/vedran77/chatwave/internal/domain"
)

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// NotifyDispatched delivers messages sent outside the gateway exactly like
// a socket send: recipients get "message received" in their personal rooms.
func (n *HubNotifier) NotifyDispatched(msgs []*domain.Message) {
	n.hub.DeliverMessages(msgs)
}
