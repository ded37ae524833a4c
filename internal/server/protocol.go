package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/psantanna/webchat/internal/database"
	"github.com/psantanna/webchat/internal/stats"
	"github.com/psantanna/webchat/internal/types"
)

var errRoomNameRequired = errors.New("room name is required")

// RegisterClient records a freshly authenticated connection and greets it.
// On error the caller must close the transport; nothing has been registered.
func (cs *ChatServer) RegisterClient(c *Client) error {
	rec, err := cs.connections.Register(c.connId, c.user, c)
	if err != nil {
		return err
	}

	cs.stats.Incr(stats.ActiveConnections)
	cs.log.Printf("connection %q registered for %q", c.connId, c.user.DisplayName)

	c.queueMessage(notification(&Notification{
		Rooms: &AvailableRooms{Rooms: cs.rooms.ListPublic()},
	}))
	c.queueMessage(systemMessage("", fmt.Sprintf("Bem-vindo ao chat, %s!", c.user.DisplayName)))

	cs.persistSession(rec)

	return nil
}

// dispatch routes one inbound event. It runs on the client's read pump, so
// events from a single connection are handled strictly in arrival order. A
// handler panic is confined to the offending event.
func (cs *ChatServer) dispatch(c *Client, ev *ClientEvent) {
	defer func() {
		if r := recover(); r != nil {
			cs.log.Printf("panic handling event from connection %q: %v", c.connId, r)
			c.queueMessage(errInternal(ev.Id))
		}
	}()

	cs.connections.Touch(c.connId)

	switch {
	case ev.CreateRoom != nil:
		cs.handleCreateRoom(c, ev)
	case ev.Join != nil:
		cs.handleJoinRoom(c, ev)
	case ev.Leave != nil:
		cs.handleLeaveRoom(c, ev)
	case ev.Publish != nil:
		cs.handleRoomMessage(c, ev)
	case ev.GetRooms != nil:
		cs.handleGetRooms(c, ev)
	case ev.GetRoomUsers != nil:
		cs.handleGetRoomUsers(c, ev)
	case ev.Typing != nil:
		cs.handleTyping(c, ev)
	case ev.Ping != nil:
		cs.handlePing(c, ev)
	default:
		c.queueMessage(errInvalidEvent(ev.Id))
	}
}

func (cs *ChatServer) handleCreateRoom(c *Client, ev *ClientEvent) {
	st, created := cs.createRoom(c, ev)
	if !created {
		return
	}

	cs.writer.enqueue("room", func() error {
		return cs.db.CreateRoom(database.CreateRoomParams{
			Id:           st.Id,
			Name:         st.Name,
			CreatedBy:    st.CreatedBy,
			IsPrivate:    st.IsPrivate,
			PasswordHash: st.PasswordHash,
			CreatedAt:    st.CreatedAt,
		})
	})

	go cs.sendHistory(c, st.Name)
}

// createRoom is the locked section of room creation: registry insert,
// listing broadcast, and the creator's implicit join. The lock is released
// by defer so a panicking collaborator cannot wedge the server.
func (cs *ChatServer) createRoom(c *Client, ev *ClientEvent) (RoomState, bool) {
	req := ev.CreateRoom

	cs.mu.Lock()
	defer cs.mu.Unlock()

	st, err := cs.rooms.Create(req.RoomName, c.user.ID, req.IsPrivate, req.Password)
	if err != nil {
		c.queueMessage(roomError(ev.Id, err))
		return RoomState{}, false
	}

	cs.stats.Incr(stats.ActiveRooms)
	cs.log.Printf("room %q created by %q", st.Name, c.user.DisplayName)
	c.queueMessage(createdResponse(ev.Id, actionRoomCreated, roomInfo(st)))

	if !st.IsPrivate {
		cs.broadcastAllLocked(notification(&Notification{
			Rooms: &AvailableRooms{Rooms: cs.rooms.ListPublic()},
		}), c)
	}

	// Creation implies joining; the creator lands in the new room.
	cs.joinRoomLocked(c, ev.Id, st.Name, req.Password)

	return st, true
}

func (cs *ChatServer) handleJoinRoom(c *Client, ev *ClientEvent) {
	req := ev.Join
	if req.RoomName == "" {
		c.queueMessage(roomError(ev.Id, errRoomNameRequired))
		return
	}

	if cs.joinRoom(c, ev.Id, req.RoomName, req.Password) {
		go cs.sendHistory(c, req.RoomName)
	}
}

func (cs *ChatServer) joinRoom(c *Client, eventId int, roomName, password string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	return cs.joinRoomLocked(c, eventId, roomName, password)
}

// joinRoomLocked performs the join under cs.mu. Joining while in another
// room switches: the old room's member-count update still goes out, but the
// departing user gets no leave ack and no departure message is posted.
func (cs *ChatServer) joinRoomLocked(c *Client, eventId int, roomName, password string) bool {
	current := cs.connections.CurrentRoom(c.connId)
	if current == roomName {
		st, ok := cs.rooms.Get(roomName)
		if !ok {
			c.queueMessage(roomError(eventId, ErrRoomNotFound))
			return false
		}
		c.queueMessage(okResponse(eventId, actionRoomJoined, roomInfo(st)))
		return true
	}

	st, err := cs.rooms.Join(roomName, c.connId, password)
	if err != nil {
		c.queueMessage(roomError(eventId, err))
		return false
	}

	if current != "" {
		cs.leaveRoomLocked(c, current, leaveOpts{suppressAck: true, suppressFarewell: true})
	}
	cs.connections.SetCurrentRoom(c.connId, roomName)

	c.queueMessage(okResponse(eventId, actionRoomJoined, roomInfo(st)))
	cs.broadcastRoomLocked(roomName, notification(&Notification{
		UserJoined: &UserJoinedRoom{RoomName: roomName, User: c.user, UserCount: st.MemberCount},
	}), c)
	cs.broadcastRoomLocked(roomName, notification(&Notification{
		RoomUsers: &RoomUsers{RoomName: roomName, Users: cs.resolveRoomUsers(roomName)},
	}), nil)
	cs.broadcastRoomLocked(roomName, systemMessage(roomName, fmt.Sprintf("%s entrou na sala", c.user.DisplayName)), nil)

	return true
}

func (cs *ChatServer) handleLeaveRoom(c *Client, ev *ClientEvent) {
	req := ev.Leave
	if req.RoomName == "" {
		c.queueMessage(roomError(ev.Id, errRoomNameRequired))
		return
	}

	if err := cs.leaveRoom(c, req.RoomName, leaveOpts{eventId: ev.Id}); err != nil {
		c.queueMessage(roomError(ev.Id, err))
	}
}

func (cs *ChatServer) leaveRoom(c *Client, roomName string, opts leaveOpts) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	return cs.leaveRoomLocked(c, roomName, opts)
}

type leaveOpts struct {
	eventId          int
	suppressAck      bool
	suppressFarewell bool
}

// leaveRoomLocked removes the connection from a room and notifies the
// remaining members. An empty non-default room is deleted on the spot so a
// departing last member never leaves a ghost room in the listing.
func (cs *ChatServer) leaveRoomLocked(c *Client, roomName string, opts leaveOpts) error {
	st, err := cs.rooms.Leave(roomName, c.connId)
	if err != nil {
		return err
	}

	if cs.connections.CurrentRoom(c.connId) == roomName {
		cs.connections.SetCurrentRoom(c.connId, "")
	}

	if !opts.suppressAck {
		c.queueMessage(okResponse(opts.eventId, actionRoomLeft, roomInfo(st)))
	}

	cs.broadcastRoomLocked(roomName, notification(&Notification{
		UserLeft: &UserLeftRoom{RoomName: roomName, User: c.user, UserCount: st.MemberCount},
	}), c)
	if !opts.suppressFarewell {
		cs.broadcastRoomLocked(roomName, systemMessage(roomName, fmt.Sprintf("%s saiu da sala", c.user.DisplayName)), c)
	}

	if st.MemberCount == 0 && !st.IsDefault && cs.rooms.Remove(roomName) {
		cs.stats.Decr(stats.ActiveRooms)
		cs.log.Printf("deleted empty room %q", roomName)
		cs.broadcastAllLocked(notification(&Notification{
			Rooms: &AvailableRooms{Rooms: cs.rooms.ListPublic()},
		}), nil)
	}

	return nil
}

func (cs *ChatServer) handleRoomMessage(c *Client, ev *ClientEvent) {
	req := ev.Publish
	if req.RoomName == "" {
		c.queueMessage(roomError(ev.Id, errRoomNameRequired))
		return
	}

	if cs.connections.CurrentRoom(c.connId) != req.RoomName {
		c.queueMessage(roomError(ev.Id, ErrNotInRoom))
		return
	}

	if !cs.limiter.Allow(c.user.ID) {
		cs.stats.Incr(stats.MessagesRateLimited)
		c.queueMessage(roomError(ev.Id, ErrRateLimited))
		return
	}

	if err := validateMessage(req.Text); err != nil {
		c.queueMessage(roomError(ev.Id, err))
		return
	}
	text := sanitizeMessage(req.Text)

	msg, err := cs.publishMessage(c, req.RoomName, text)
	if err != nil {
		c.queueMessage(roomError(ev.Id, err))
		return
	}

	cs.stats.Incr(stats.MessagesTotal)

	cs.writer.enqueue("message", func() error {
		return cs.db.SaveMessage(database.Message{
			Id:        msg.ID,
			RoomName:  msg.RoomName,
			UserId:    msg.User.ID,
			Content:   msg.Text,
			CreatedAt: msg.Timestamp,
		})
	})
}

// publishMessage re-checks membership under the lock and fans the message
// out to the whole room, sender included.
func (cs *ChatServer) publishMessage(c *Client, roomName, text string) (*types.Message, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.connections.CurrentRoom(c.connId) != roomName {
		return nil, ErrNotInRoom
	}
	if _, ok := cs.rooms.RecordMessage(roomName); !ok {
		return nil, ErrRoomNotFound
	}

	msg := &types.Message{
		ID:           generateMessageId(),
		RoomName:     roomName,
		Text:         text,
		User:         c.user,
		Timestamp:    Now(),
		ConnectionID: c.connId,
	}
	cs.broadcastRoomLocked(roomName, &ServerEvent{
		BaseEvent: BaseEvent{Timestamp: msg.Timestamp},
		Message:   msg,
	}, nil)

	return msg, nil
}

func (cs *ChatServer) handleGetRooms(c *Client, ev *ClientEvent) {
	c.queueMessage(okResponse(ev.Id, actionAvailableRooms, &AvailableRooms{
		Rooms: cs.rooms.ListPublic(),
	}))
}

func (cs *ChatServer) handleGetRoomUsers(c *Client, ev *ClientEvent) {
	req := ev.GetRoomUsers
	if req.RoomName == "" {
		c.queueMessage(roomError(ev.Id, errRoomNameRequired))
		return
	}

	if _, ok := cs.rooms.Get(req.RoomName); !ok {
		c.queueMessage(roomError(ev.Id, ErrRoomNotFound))
		return
	}

	c.queueMessage(okResponse(ev.Id, actionRoomUsers, &RoomUsers{
		RoomName: req.RoomName,
		Users:    cs.resolveRoomUsers(req.RoomName),
	}))
}

func (cs *ChatServer) handleTyping(c *Client, ev *ClientEvent) {
	req := ev.Typing
	if req.RoomName == "" {
		c.queueMessage(roomError(ev.Id, errRoomNameRequired))
		return
	}

	if !cs.rooms.IsMember(req.RoomName, c.connId) {
		c.queueMessage(roomError(ev.Id, ErrNotMember))
		return
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.broadcastRoomLocked(req.RoomName, notification(&Notification{
		Typing: &UserTyping{RoomName: req.RoomName, User: c.user, IsTyping: req.IsTyping},
	}), c)
}

func (cs *ChatServer) handlePing(c *Client, ev *ClientEvent) {
	c.queueMessage(notification(&Notification{Pong: &Pong{}}))
}

// handleDisconnect tears down a connection's server-side state. It is
// idempotent: the read pump and the janitor can both reach it for the same
// connection, and only the first caller finds the record.
func (cs *ChatServer) handleDisconnect(c *Client, reason string) {
	rec, ok := cs.unregister(c)
	if !ok {
		return
	}

	cs.stats.Decr(stats.ActiveConnections)
	cs.log.Printf("connection %q closed (%s) after %s", c.connId, reason,
		cs.now().Sub(rec.ConnectedAt).Round(time.Second))

	rec.LastActivity = cs.now()
	cs.persistSession(rec)
}

// unregister removes the connection record and its room membership under
// the lock.
func (cs *ChatServer) unregister(c *Client) (ConnectionRecord, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	rec, ok := cs.connections.Unregister(c.connId)
	if !ok {
		return ConnectionRecord{}, false
	}

	if rec.CurrentRoom != "" {
		cs.leaveRoomLocked(c, rec.CurrentRoom, leaveOpts{suppressAck: true})
	}

	return rec, true
}

// sendHistory loads the recent backlog off the lock and delivers it to the
// requester only. A store failure degrades to an empty history.
func (cs *ChatServer) sendHistory(c *Client, roomName string) {
	dbMsgs, err := cs.db.GetRecentMessages(roomName, historyLimit)
	if err != nil {
		cs.log.Printf("load history for room %q: %v", roomName, err)
		return
	}
	if len(dbMsgs) == 0 {
		return
	}

	msgs := make([]types.Message, 0, len(dbMsgs))
	for _, m := range dbMsgs {
		msgs = append(msgs, types.Message{
			ID:        m.Id,
			RoomName:  m.RoomName,
			Text:      m.Content,
			User:      types.User{ID: m.UserId},
			Timestamp: m.CreatedAt,
			IsSystem:  m.UserId == systemUserId,
		})
	}

	c.queueMessage(notification(&Notification{
		History: &RoomHistory{RoomName: roomName, Messages: msgs},
	}))
}

func (cs *ChatServer) persistSession(rec ConnectionRecord) {
	cs.writer.enqueue("user session", func() error {
		return cs.db.UpsertUserSession(database.UserSession{
			UserId:       rec.User.ID,
			DisplayName:  rec.User.DisplayName,
			Email:        rec.User.Email,
			AvatarURL:    rec.User.AvatarURL,
			ConnectionId: rec.Id,
			LastActivity: rec.LastActivity,
		})
	})
}

func roomInfo(st RoomState) types.RoomInfo {
	return types.RoomInfo{
		Name:        st.Name,
		MemberCount: st.MemberCount,
		IsPrivate:   st.IsPrivate,
		CreatedBy:   st.CreatedBy,
		CreatedAt:   st.CreatedAt,
	}
}
