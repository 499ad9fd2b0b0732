package domain

import (
	"time"

	"github.com/google/uuid"
)

// DirectConversationName is stored on one-to-one conversations created
// implicitly. Clients render the counterpart's name instead.
const DirectConversationName = "sender"

type Conversation struct {
	ID              uuid.UUID   `json:"_id"`
	Name            string      `json:"chatName"`
	IsGroup         bool        `json:"isGroupChat"`
	IsBroadcast     bool        `json:"isBroadcast"`
	Participants    []uuid.UUID `json:"users"`
	AdminID         *uuid.UUID  `json:"groupAdmin,omitempty"`
	LatestMessageID *uuid.UUID  `json:"latestMessage,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// Counterpart returns the first participant that is not userID.
func (c *Conversation) Counterpart(userID uuid.UUID) (uuid.UUID, bool) {
	for _, id := range c.Participants {
		if id != userID {
			return id, true
		}
	}
	return uuid.Nil, false
}

// IsTwoParty reports whether the conversation is subject to pairwise
// blocking rules.
func (c *Conversation) IsTwoParty() bool {
	return !c.IsBroadcast && len(c.Participants) == 2
}

// DirectKey is the canonical identity of a one-to-one conversation between
// two users, independent of argument order.
func DirectKey(a, b uuid.UUID) string {
	lo, hi := a.String(), b.String()
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo + ":" + hi
}
