package server

import (
	"sync"
	"time"

	"github.com/psantanna/webchat/internal/types"
)

// ConnectionRecord tracks one live transport session. Exactly one record per
// connection; a user with two connections has two independent records.
type ConnectionRecord struct {
	Id           string
	User         types.User
	ConnectedAt  time.Time
	LastActivity time.Time
	CurrentRoom  string

	client *Client
}

// ConnectionRegistry is the exclusive owner of connection records. All field
// mutation happens under its lock; accessors hand out copies.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]*ConnectionRecord
	now   func() time.Time
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*ConnectionRecord),
		now:   time.Now,
	}
}

// Register creates the record for a freshly authenticated connection. A
// structurally invalid identity is rejected and the caller must terminate
// the transport.
func (cr *ConnectionRegistry) Register(connId string, user types.User, c *Client) (ConnectionRecord, error) {
	if user.ID == "" || user.DisplayName == "" || user.Email == "" {
		return ConnectionRecord{}, ErrInvalidIdentity
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()

	now := cr.now()
	rec := &ConnectionRecord{
		Id:           connId,
		User:         user,
		ConnectedAt:  now,
		LastActivity: now,
		client:       c,
	}
	cr.conns[connId] = rec

	return *rec, nil
}

// Touch updates lastActivity. A missing connection is tolerated: the record
// may already be gone by the time a late event is processed.
func (cr *ConnectionRegistry) Touch(connId string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if rec, ok := cr.conns[connId]; ok {
		rec.LastActivity = cr.now()
	}
}

func (cr *ConnectionRegistry) SetCurrentRoom(connId, roomName string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if rec, ok := cr.conns[connId]; ok {
		rec.CurrentRoom = roomName
	}
}

func (cr *ConnectionRegistry) CurrentRoom(connId string) string {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	if rec, ok := cr.conns[connId]; ok {
		return rec.CurrentRoom
	}
	return ""
}

func (cr *ConnectionRegistry) Get(connId string) (ConnectionRecord, bool) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	if rec, ok := cr.conns[connId]; ok {
		return *rec, true
	}
	return ConnectionRecord{}, false
}

func (cr *ConnectionRegistry) Unregister(connId string) (ConnectionRecord, bool) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	rec, ok := cr.conns[connId]
	if !ok {
		return ConnectionRecord{}, false
	}
	delete(cr.conns, connId)

	return *rec, true
}

// Snapshot returns copies of every record for stats and online-user queries.
func (cr *ConnectionRegistry) Snapshot() []ConnectionRecord {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	records := make([]ConnectionRecord, 0, len(cr.conns))
	for _, rec := range cr.conns {
		records = append(records, *rec)
	}
	return records
}

func (cr *ConnectionRegistry) Count() int {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	return len(cr.conns)
}

// HasUser reports whether any live connection belongs to the user.
func (cr *ConnectionRegistry) HasUser(userId string) bool {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	for _, rec := range cr.conns {
		if rec.User.ID == userId {
			return true
		}
	}
	return false
}

func (cr *ConnectionRegistry) client(connId string) *Client {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	if rec, ok := cr.conns[connId]; ok {
		return rec.client
	}
	return nil
}

func (cr *ConnectionRegistry) clients() []*Client {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	clients := make([]*Client, 0, len(cr.conns))
	for _, rec := range cr.conns {
		if rec.client != nil {
			clients = append(clients, rec.client)
		}
	}
	return clients
}

// idleClients returns the clients whose lastActivity is before the cutoff,
// for janitor eviction.
func (cr *ConnectionRegistry) idleClients(cutoff time.Time) []*Client {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	var idle []*Client
	for _, rec := range cr.conns {
		if rec.LastActivity.Before(cutoff) && rec.client != nil {
			idle = append(idle, rec.client)
		}
	}
	return idle
}
