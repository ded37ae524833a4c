package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/psantanna/webchat/internal/types"
)

type BaseEvent struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientEvent is the inbound envelope. Exactly one of the request fields is
// expected to be set.
type ClientEvent struct {
	BaseEvent
	CreateRoom   *CreateRoomRequest   `json:"create_room,omitempty"`
	Join         *JoinRoomRequest     `json:"join_room,omitempty"`
	Leave        *LeaveRoomRequest    `json:"leave_room,omitempty"`
	Publish      *RoomMessageRequest  `json:"room_message,omitempty"`
	GetRooms     *GetRoomsRequest     `json:"get_rooms,omitempty"`
	GetRoomUsers *GetRoomUsersRequest `json:"get_room_users,omitempty"`
	Typing       *TypingRequest       `json:"typing,omitempty"`
	Ping         *PingRequest         `json:"ping,omitempty"`
}

type CreateRoomRequest struct {
	RoomName  string `json:"room_name"`
	IsPrivate bool   `json:"is_private,omitempty"`
	Password  string `json:"password,omitempty"`
}

type JoinRoomRequest struct {
	RoomName string `json:"room_name"`
	Password string `json:"password,omitempty"`
}

type LeaveRoomRequest struct {
	RoomName string `json:"room_name"`
}

type RoomMessageRequest struct {
	RoomName string `json:"room_name"`
	Text     string `json:"text"`
}

type GetRoomsRequest struct{}

type GetRoomUsersRequest struct {
	RoomName string `json:"room_name"`
}

type TypingRequest struct {
	RoomName string `json:"room_name"`
	IsTyping bool   `json:"is_typing"`
}

type PingRequest struct{}

// ServerEvent is the outbound envelope: a requester-scoped response, a room
// message, or a broadcast notification.
type ServerEvent struct {
	BaseEvent
	Response     *Response      `json:"response,omitempty"`
	Message      *types.Message `json:"message,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`
}

// Response acknowledges (or rejects) the inbound event carrying the same id.
// Action names the acknowledgment kind; Error is a human-readable message
// and is only set on failures.
type Response struct {
	ResponseCode int    `json:"response_code"`
	Action       string `json:"action,omitempty"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type Notification struct {
	UserJoined *UserJoinedRoom `json:"user_joined_room,omitempty"`
	UserLeft   *UserLeftRoom   `json:"user_left_room,omitempty"`
	Typing     *UserTyping     `json:"user_typing,omitempty"`
	Rooms      *AvailableRooms `json:"available_rooms,omitempty"`
	RoomUsers  *RoomUsers      `json:"room_users,omitempty"`
	History    *RoomHistory    `json:"room_history,omitempty"`
	Pong       *Pong           `json:"pong,omitempty"`
}

type UserJoinedRoom struct {
	RoomName  string     `json:"room_name"`
	User      types.User `json:"user"`
	UserCount int        `json:"user_count"`
}

type UserLeftRoom struct {
	RoomName  string     `json:"room_name"`
	User      types.User `json:"user"`
	UserCount int        `json:"user_count"`
}

type UserTyping struct {
	RoomName string     `json:"room_name"`
	User     types.User `json:"user"`
	IsTyping bool       `json:"is_typing"`
}

type AvailableRooms struct {
	Rooms []types.RoomInfo `json:"rooms"`
}

type RoomUsers struct {
	RoomName string           `json:"room_name"`
	Users    []types.RoomUser `json:"users"`
}

type RoomHistory struct {
	RoomName string          `json:"room_name"`
	Messages []types.Message `json:"messages"`
}

type Pong struct{}

// Ack action names, the outbound event vocabulary for responses.
const (
	actionRoomCreated    = "room_created"
	actionRoomJoined     = "room_joined"
	actionRoomLeft       = "room_left"
	actionRoomError      = "room_error"
	actionAvailableRooms = "available_rooms"
	actionRoomUsers      = "room_users"
)

func okResponse(id int, action string, data any) *ServerEvent {
	return &ServerEvent{
		BaseEvent: BaseEvent{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Action:       action,
			Data:         data,
		},
	}
}

func createdResponse(id int, action string, data any) *ServerEvent {
	return &ServerEvent{
		BaseEvent: BaseEvent{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusCreated,
			Action:       action,
			Data:         data,
		},
	}
}

func notification(n *Notification) *ServerEvent {
	return &ServerEvent{
		BaseEvent:    BaseEvent{Timestamp: Now()},
		Notification: n,
	}
}

// roomError converts a registry or validation failure into the single
// requester-scoped error event. Private-room join failures share one generic
// message so a wrong password does not confirm a room's existence.
func roomError(id int, err error) *ServerEvent {
	code := http.StatusBadRequest
	message := err.Error()

	switch {
	case errors.Is(err, ErrRoomNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrWrongPassword):
		code = http.StatusForbidden
		message = "unable to join room"
	case errors.Is(err, ErrNotMember), errors.Is(err, ErrNotInRoom):
		code = http.StatusForbidden
	case errors.Is(err, ErrRoomFull), errors.Is(err, ErrRoomCapacity):
		code = http.StatusTooManyRequests
	case errors.Is(err, ErrRateLimited):
		code = http.StatusTooManyRequests
		message = "you are sending messages too quickly, wait a moment"
	}

	return &ServerEvent{
		BaseEvent: BaseEvent{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Action:       actionRoomError,
			Error:        message,
		},
	}
}

func errInvalidEvent(id int) *ServerEvent {
	msg := &ServerEvent{
		BaseEvent: BaseEvent{Timestamp: Now()},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Action:       actionRoomError,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func errInternal(id int) *ServerEvent {
	return &ServerEvent{
		BaseEvent: BaseEvent{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Action:       actionRoomError,
			Error:        "internal server error",
		},
	}
}

// systemMessage builds a synthetic server-authored room message.
func systemMessage(roomName, text string) *ServerEvent {
	return &ServerEvent{
		BaseEvent: BaseEvent{Timestamp: Now()},
		Message: &types.Message{
			ID:        generateMessageId(),
			RoomName:  roomName,
			Text:      text,
			User:      types.System,
			Timestamp: Now(),
			IsSystem:  true,
		},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
