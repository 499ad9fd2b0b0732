package domain

import (
	"time"

	"github.com/google/uuid"
)

// Block records that BlockerID has blocked BlockedID. The relation is
// directional: the reverse pair is a separate record.
type Block struct {
	BlockerID uuid.UUID `json:"blocker"`
	BlockedID uuid.UUID `json:"blocked"`
	CreatedAt time.Time `json:"created_at"`
}

// BlockSet splits the relations involving one user into the users they
// blocked and the users that blocked them.
type BlockSet struct {
	Blocked   map[uuid.UUID]struct{}
	BlockedBy map[uuid.UUID]struct{}
}

func NewBlockSet(userID uuid.UUID, blocks []Block) BlockSet {
	set := BlockSet{
		Blocked:   make(map[uuid.UUID]struct{}),
		BlockedBy: make(map[uuid.UUID]struct{}),
	}
	for _, b := range blocks {
		if b.BlockerID == userID {
			set.Blocked[b.BlockedID] = struct{}{}
		}
		if b.BlockedID == userID {
			set.BlockedBy[b.BlockerID] = struct{}{}
		}
	}
	return set
}

func (s BlockSet) HasBlocked(other uuid.UUID) bool {
	_, ok := s.Blocked[other]
	return ok
}

func (s BlockSet) IsBlockedBy(other uuid.UUID) bool {
	_, ok := s.BlockedBy[other]
	return ok
}

// Separated reports whether either side has blocked the other.
func (s BlockSet) Separated(other uuid.UUID) bool {
	return s.HasBlocked(other) || s.IsBlockedBy(other)
}
