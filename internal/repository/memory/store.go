// Package memory keeps every repository in process memory. It backs tests
// and the STORE_DRIVER=memory development mode; nothing survives a restart.
package memory

type Store struct {
	Users         *UserRepo
	Blocks        *BlockRepo
	Conversations *ConversationRepo
	Messages      *MessageRepo
	Resets        *PasswordResetRepo
}

func NewStore() *Store {
	users := NewUserRepo()
	return &Store{
		Users:         users,
		Blocks:        NewBlockRepo(),
		Conversations: NewConversationRepo(),
		Messages:      NewMessageRepo(users),
		Resets:        NewPasswordResetRepo(),
	}
}
