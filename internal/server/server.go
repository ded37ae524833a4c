package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/psantanna/webchat/internal/database"
	"github.com/psantanna/webchat/internal/stats"
	"github.com/psantanna/webchat/internal/types"
)

const (
	janitorInterval     = 5 * time.Minute
	inactivityThreshold = 30 * time.Minute
	emptyRoomGrace      = 5 * time.Minute
	persistQueueSize    = 1024
	historyLimit        = 50
)

// ChatServer owns the registries and runs the session protocol. All
// room-mutating handler sections and the janitor serialize on mu, so every
// member of a room observes joins, leaves and messages in application order.
type ChatServer struct {
	log         *log.Logger
	db          database.ChatRepository
	stats       stats.StatsProvider
	mu          sync.Mutex
	connections *ConnectionRegistry
	rooms       *RoomRegistry
	limiter     *MessageLimiter
	writer      *storeWriter
	now         func() time.Time
	stop        chan struct{}
	done        chan struct{}
}

func NewChatServer(logger *log.Logger, db database.ChatRepository, sp stats.StatsProvider, defaultRooms []string) (*ChatServer, error) {
	cs := &ChatServer{
		log:         logger,
		db:          db,
		stats:       sp,
		connections: NewConnectionRegistry(),
		rooms:       NewRoomRegistry(defaultRooms),
		limiter:     NewMessageLimiter(),
		writer:      newStoreWriter(logger, sp, persistQueueSize),
		now:         time.Now,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}

	for _, name := range []string{
		stats.ActiveConnections,
		stats.ActiveRooms,
		stats.MessagesTotal,
		stats.MessagesRateLimited,
		stats.ConnectionsEvicted,
		stats.PersistWritesDropped,
	} {
		sp.RegisterMetric(name)
	}

	for range defaultRooms {
		sp.Incr(stats.ActiveRooms)
	}

	go cs.writer.run()

	return cs, nil
}

// LoadPersistedRooms reconciles the in-memory registry with the durable
// store at startup: persisted rooms come back with their stable ids and
// empty membership. A store failure is logged, not fatal; memory remains
// authoritative.
func (cs *ChatServer) LoadPersistedRooms() {
	dbRooms, err := cs.db.ListRooms()
	if err != nil {
		cs.log.Println("load persisted rooms:", err)
		return
	}

	restored := 0
	for _, dbRoom := range dbRooms {
		if cs.rooms.Restore(dbRoom) {
			restored++
			cs.stats.Incr(stats.ActiveRooms)
		}
	}

	if restored > 0 {
		cs.log.Printf("restored %d persisted rooms", restored)
	}
}

// Run drives the janitor until shutdown. Request-triggered work happens on
// the clients' read pumps, not here.
func (cs *ChatServer) Run() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cs.runJanitor()
		case <-cs.stop:
			for _, c := range cs.connections.clients() {
				c.forceClose()
			}
			cs.writer.stop()
			close(cs.done)
			return
		}
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("shutting down chat server")
	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runJanitor is the only background mutation path. It uses the same lock as
// the request-triggered handlers.
func (cs *ChatServer) runJanitor() {
	now := cs.now()

	for _, c := range cs.connections.idleClients(now.Add(-inactivityThreshold)) {
		cs.log.Printf("evicting inactive connection %q (%s)", c.connId, c.user.DisplayName)
		cs.stats.Incr(stats.ConnectionsEvicted)
		cs.handleDisconnect(c, "evicted for inactivity")
		c.forceClose()
	}

	cs.mu.Lock()
	removed := cs.rooms.SweepEmpty(now.Add(-emptyRoomGrace))
	if len(removed) > 0 {
		cs.log.Printf("removed %d idle empty rooms: %v", len(removed), removed)
		for range removed {
			cs.stats.Decr(stats.ActiveRooms)
		}
		cs.broadcastAllLocked(notification(&Notification{
			Rooms: &AvailableRooms{Rooms: cs.rooms.ListPublic()},
		}), nil)
	}
	cs.mu.Unlock()

	cs.limiter.Prune(cs.connections.HasUser)
}

// broadcastRoomLocked fans an event out to every member of a room except
// skip. Callers must hold cs.mu so delivery order matches application order.
func (cs *ChatServer) broadcastRoomLocked(roomName string, ev *ServerEvent, skip *Client) {
	members, ok := cs.rooms.Members(roomName)
	if !ok {
		return
	}

	for _, member := range members {
		c := cs.connections.client(member.ConnectionId)
		if c == nil || c == skip {
			continue
		}
		c.queueMessage(ev)
	}
}

// broadcastAllLocked fans an event out to every live connection except skip.
func (cs *ChatServer) broadcastAllLocked(ev *ServerEvent, skip *Client) {
	for _, c := range cs.connections.clients() {
		if c == skip {
			continue
		}
		c.queueMessage(ev)
	}
}

// resolveRoomUsers resolves a room's member list against the live connection
// records, arena-style: membership stores connection ids only.
func (cs *ChatServer) resolveRoomUsers(roomName string) []types.RoomUser {
	members, ok := cs.rooms.Members(roomName)
	if !ok {
		return nil
	}

	users := make([]types.RoomUser, 0, len(members))
	for _, member := range members {
		rec, found := cs.connections.Get(member.ConnectionId)
		if !found {
			continue
		}
		users = append(users, types.RoomUser{User: rec.User, JoinedAt: member.JoinedAt})
	}
	return users
}
