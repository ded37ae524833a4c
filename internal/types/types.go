package types

import (
	"time"
)

// User is the identity attached to a connection. It is re-derived from the
// identity verifier on every new connection and immutable for the
// connection's lifetime.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// System is the synthetic author of server-generated room messages.
var System = User{
	ID:          "system",
	DisplayName: "Sistema",
}

// RoomInfo is the public listing entry for a room.
type RoomInfo struct {
	Name        string    `json:"name"`
	MemberCount int       `json:"member_count"`
	IsPrivate   bool      `json:"is_private"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// RoomUser is one entry in a room's member list.
type RoomUser struct {
	User     User      `json:"user"`
	JoinedAt time.Time `json:"joined_at"`
}

// Message is the broadcast envelope for a room message. Timestamp is always
// assigned by the server at broadcast time.
type Message struct {
	ID           string    `json:"id"`
	RoomName     string    `json:"room_name"`
	Text         string    `json:"text"`
	User         User      `json:"user"`
	Timestamp    time.Time `json:"timestamp"`
	ConnectionID string    `json:"connection_id,omitempty"`
	IsSystem     bool      `json:"is_system,omitempty"`
}
