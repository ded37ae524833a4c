package database

import "time"

type Account struct {
	Id           int
	ExternalId   string
	DisplayName  string
	Email        string
	PasswordHash string
	AvatarURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	Id           string
	Name         string
	Description  string
	CreatedBy    string
	IsPrivate    bool
	PasswordHash string
	CreatedAt    time.Time
	LastActivity time.Time
	MessageCount int
	UserCount    int
}

type Message struct {
	Id        string
	RoomName  string
	UserId    string
	Content   string
	CreatedAt time.Time
}

type UserSession struct {
	UserId       string
	DisplayName  string
	Email        string
	AvatarURL    string
	ConnectionId string
	LastActivity time.Time
}

type CreateAccountParams struct {
	ExternalId   string
	DisplayName  string
	Email        string
	PasswordHash string
	AvatarURL    string
}

type CreateRoomParams struct {
	Id           string
	Name         string
	Description  string
	CreatedBy    string
	IsPrivate    bool
	PasswordHash string
	CreatedAt    time.Time
}
