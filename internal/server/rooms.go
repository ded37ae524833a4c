package server

import (
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/psantanna/webchat/internal/database"
	"github.com/psantanna/webchat/internal/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	minRoomNameLen = 2
	maxRoomNameLen = 30
	maxActiveRooms = 100
	maxRoomMembers = 50
)

// systemUserId marks rooms created by the process itself rather than a user.
const systemUserId = "system"

// room is the registry's internal representation. Member user data is not
// duplicated here; a member is a connection id plus its join instant, and
// the live record lives in the ConnectionRegistry.
type room struct {
	name         string
	id           string
	createdBy    string
	createdAt    time.Time
	isPrivate    bool
	passwordHash string
	isDefault    bool
	members      map[string]time.Time
	messageCount int
	lastActivity time.Time
}

// RoomState is a point-in-time copy of a room's metadata handed out by the
// registry. MemberCount is always derived from the member set. PasswordHash
// is carried for the durable write only and never serialized to clients.
type RoomState struct {
	Name         string
	Id           string
	CreatedBy    string
	CreatedAt    time.Time
	IsPrivate    bool
	IsDefault    bool
	PasswordHash string
	MemberCount  int
	MessageCount int
	LastActivity time.Time
}

type RoomMember struct {
	ConnectionId string
	JoinedAt     time.Time
}

// RoomRegistry is the authoritative in-memory table of rooms. A single
// mutex serializes every mutation of the name index and of any room's
// membership.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*room
	now   func() time.Time
}

// NewRoomRegistry seeds the fixed default rooms, which are exempt from
// emptiness-based deletion so there is always at least one room to join.
func NewRoomRegistry(defaultRooms []string) *RoomRegistry {
	rr := &RoomRegistry{
		rooms: make(map[string]*room),
		now:   time.Now,
	}

	for _, name := range defaultRooms {
		now := rr.now()
		rr.rooms[name] = &room{
			name:         name,
			id:           generateRoomId(),
			createdBy:    systemUserId,
			createdAt:    now,
			isDefault:    true,
			members:      make(map[string]time.Time),
			lastActivity: now,
		}
	}

	return rr
}

func (r *room) state() RoomState {
	return RoomState{
		Name:         r.name,
		Id:           r.id,
		CreatedBy:    r.createdBy,
		CreatedAt:    r.createdAt,
		IsPrivate:    r.isPrivate,
		IsDefault:    r.isDefault,
		PasswordHash: r.passwordHash,
		MemberCount:  len(r.members),
		MessageCount: r.messageCount,
		LastActivity: r.lastActivity,
	}
}

// validRoomName bounds the name length in runes, not bytes, so accented
// names are measured the way users count them.
func validRoomName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= minRoomNameLen && n <= maxRoomNameLen
}

// Create adds a room with empty membership. Name uniqueness is
// case-sensitive exact match.
func (rr *RoomRegistry) Create(name, creatorUserId string, isPrivate bool, password string) (RoomState, error) {
	if !validRoomName(name) {
		return RoomState{}, ErrInvalidRoomName
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()

	if _, ok := rr.rooms[name]; ok {
		return RoomState{}, ErrDuplicateRoom
	}
	if len(rr.rooms) >= maxActiveRooms {
		return RoomState{}, ErrRoomCapacity
	}

	var passwordHash string
	if isPrivate {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return RoomState{}, err
		}
		passwordHash = string(hash)
	}

	now := rr.now()
	newRoom := &room{
		name:         name,
		id:           generateRoomId(),
		createdBy:    creatorUserId,
		createdAt:    now,
		isPrivate:    isPrivate,
		passwordHash: passwordHash,
		members:      make(map[string]time.Time),
		lastActivity: now,
	}
	rr.rooms[name] = newRoom

	return newRoom.state(), nil
}

// Restore re-creates a persisted room in memory with its stable id and
// empty membership. Used at startup to reconcile with the durable store;
// default rooms and duplicates are left untouched.
func (rr *RoomRegistry) Restore(dbRoom database.Room) bool {
	if !validRoomName(dbRoom.Name) {
		return false
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()

	if _, ok := rr.rooms[dbRoom.Name]; ok {
		return false
	}
	if len(rr.rooms) >= maxActiveRooms {
		return false
	}

	rr.rooms[dbRoom.Name] = &room{
		name:         dbRoom.Name,
		id:           dbRoom.Id,
		createdBy:    dbRoom.CreatedBy,
		createdAt:    dbRoom.CreatedAt,
		isPrivate:    dbRoom.IsPrivate,
		passwordHash: dbRoom.PasswordHash,
		members:      make(map[string]time.Time),
		messageCount: dbRoom.MessageCount,
		lastActivity: rr.now(),
	}

	return true
}

func (rr *RoomRegistry) Join(name, connId, password string) (RoomState, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	r, ok := rr.rooms[name]
	if !ok {
		return RoomState{}, ErrRoomNotFound
	}

	if r.isPrivate {
		if err := bcrypt.CompareHashAndPassword([]byte(r.passwordHash), []byte(password)); err != nil {
			return RoomState{}, ErrWrongPassword
		}
	}

	if _, member := r.members[connId]; member {
		return r.state(), nil
	}

	if len(r.members) >= maxRoomMembers {
		return RoomState{}, ErrRoomFull
	}

	r.members[connId] = rr.now()
	r.lastActivity = rr.now()

	return r.state(), nil
}

func (rr *RoomRegistry) Leave(name, connId string) (RoomState, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	r, ok := rr.rooms[name]
	if !ok {
		return RoomState{}, ErrNotMember
	}
	if _, member := r.members[connId]; !member {
		return RoomState{}, ErrNotMember
	}

	delete(r.members, connId)
	r.lastActivity = rr.now()

	return r.state(), nil
}

func (rr *RoomRegistry) Get(name string) (RoomState, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	if r, ok := rr.rooms[name]; ok {
		return r.state(), true
	}
	return RoomState{}, false
}

func (rr *RoomRegistry) Members(name string) ([]RoomMember, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	r, ok := rr.rooms[name]
	if !ok {
		return nil, false
	}

	members := make([]RoomMember, 0, len(r.members))
	for connId, joinedAt := range r.members {
		members = append(members, RoomMember{ConnectionId: connId, JoinedAt: joinedAt})
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})

	return members, true
}

func (rr *RoomRegistry) IsMember(name, connId string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	r, ok := rr.rooms[name]
	if !ok {
		return false
	}
	_, member := r.members[connId]

	return member
}

// ListPublic returns the room listing, newest first. Private rooms appear
// flagged; their passwords are never exposed.
func (rr *RoomRegistry) ListPublic() []types.RoomInfo {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	infos := make([]types.RoomInfo, 0, len(rr.rooms))
	for _, r := range rr.rooms {
		infos = append(infos, types.RoomInfo{
			Name:        r.name,
			MemberCount: len(r.members),
			IsPrivate:   r.isPrivate,
			CreatedBy:   r.createdBy,
			CreatedAt:   r.createdAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})

	return infos
}

// Remove deletes a room from the index. Default rooms are never removed.
// Deletion is caller-driven so the caller controls notification ordering.
func (rr *RoomRegistry) Remove(name string) bool {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	r, ok := rr.rooms[name]
	if !ok || r.isDefault {
		return false
	}
	delete(rr.rooms, name)

	return true
}

// RecordMessage bumps the monotonic message counter and activity stamp.
func (rr *RoomRegistry) RecordMessage(name string) (RoomState, bool) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	r, ok := rr.rooms[name]
	if !ok {
		return RoomState{}, false
	}
	r.messageCount++
	r.lastActivity = rr.now()

	return r.state(), true
}

// SweepEmpty removes non-default rooms with no members whose last activity
// is older than the cutoff, returning the removed names.
func (rr *RoomRegistry) SweepEmpty(cutoff time.Time) []string {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	var removed []string
	for name, r := range rr.rooms {
		if r.isDefault || len(r.members) > 0 {
			continue
		}
		if r.lastActivity.Before(cutoff) {
			delete(rr.rooms, name)
			removed = append(removed, name)
		}
	}

	return removed
}

func (rr *RoomRegistry) Count() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	return len(rr.rooms)
}
