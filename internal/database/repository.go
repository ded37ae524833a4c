package database

import "time"

// ChatRepository is the durable store for rooms, messages, accounts and user
// sessions. In-memory state in the chat server is authoritative; everything
// written here is best-effort relative to it.
type ChatRepository interface {
	Ping() error
	Close() error
	CreateAccount(params CreateAccountParams) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	GetAccountByExternalId(externalId string) (Account, error)
	CreateRoom(params CreateRoomParams) error
	ListRooms() ([]Room, error)
	SaveMessage(msg Message) error
	GetRecentMessages(roomName string, limit int) ([]Message, error)
	UpsertUserSession(session UserSession) error
	DeleteOldData(messageCutoff, sessionCutoff time.Time) (int64, int64, error)
}
