// Package realtime routes chat events between live connections: the room
// registry, the per-connection intent dispatcher and the service notifier.
package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/metrics"
	"go.uber.org/zap"
)

// Conn is a live, authenticated client connection.
type Conn interface {
	ID() string
	UserID() uuid.UUID
	// Deliver queues a frame without blocking. It reports false when the
	// connection cannot take it.
	Deliver(data []byte) bool
	// Close terminates the connection. It must be safe to call more than once.
	Close(reason string)
	// Closed reports whether Close has been called.
	Closed() bool
}

type member struct {
	conn  Conn
	rooms map[uuid.UUID]struct{}
}

// Registry maps chat rooms to subscribed connections and back.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*member
	rooms map[uuid.UUID]map[string]Conn
	// epochs counts evictions per chat. Entries are never removed so a
	// join that checked access before an eviction can always detect it.
	epochs map[uuid.UUID]uint64
	log    *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]*member),
		rooms:  make(map[uuid.UUID]map[string]Conn),
		epochs: make(map[uuid.UUID]uint64),
		log:    log.Named("registry"),
	}
}

// Register adds a connection with no subscriptions.
func (r *Registry) Register(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c.ID()]; ok {
		return
	}
	r.conns[c.ID()] = &member{conn: c, rooms: make(map[uuid.UUID]struct{})}
	metrics.Connections.Inc()
}

// Subscribe is idempotent. It reports false for unknown connections.
func (r *Registry) Subscribe(connID string, chatID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subscribe(connID, chatID)
}

// Epoch returns the eviction counter of chatID. Read it before checking
// access and pass it to SubscribeAt.
func (r *Registry) Epoch(chatID uuid.UUID) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.epochs[chatID]
}

// SubscribeAt subscribes only if no eviction ran on chatID since epoch was
// read. It reports false when the epoch moved or the connection is unknown.
func (r *Registry) SubscribeAt(connID string, chatID uuid.UUID, epoch uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.epochs[chatID] != epoch {
		return false
	}
	return r.subscribe(connID, chatID)
}

// subscribe requires r.mu held for writing.
func (r *Registry) subscribe(connID string, chatID uuid.UUID) bool {
	m, ok := r.conns[connID]
	if !ok {
		return false
	}
	if _, ok := m.rooms[chatID]; ok {
		return true
	}
	m.rooms[chatID] = struct{}{}
	room, ok := r.rooms[chatID]
	if !ok {
		room = make(map[string]Conn)
		r.rooms[chatID] = room
	}
	room[connID] = m.conn
	metrics.Subscriptions.Inc()
	return true
}

// Unsubscribe is idempotent.
func (r *Registry) Unsubscribe(connID string, chatID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribe(connID, chatID)
}

// DropConnection removes the connection from every room and returns the
// rooms it was subscribed to.
func (r *Registry) DropConnection(connID string) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.conns[connID]
	if !ok {
		return nil
	}
	left := make([]uuid.UUID, 0, len(m.rooms))
	for chatID := range m.rooms {
		left = append(left, chatID)
		r.unsubscribe(connID, chatID)
	}
	delete(r.conns, connID)
	metrics.Connections.Dec()
	return left
}

// Broadcast hands data to every connection subscribed to chatID when the call
// starts and returns how many accepted it. Connections that cannot keep up
// are closed.
func (r *Registry) Broadcast(chatID uuid.UUID, data []byte) int {
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.rooms[chatID]))
	for _, c := range r.rooms[chatID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Deliver(data) {
			delivered++
			metrics.Deliveries.WithLabelValues("delivered").Inc()
			continue
		}
		if c.Closed() {
			// Already going away, its read loop will unregister it.
			metrics.Deliveries.WithLabelValues("closed").Inc()
			continue
		}
		metrics.Deliveries.WithLabelValues("dropped").Inc()
		r.log.Warn("slow consumer, closing connection",
			zap.String("conn_id", c.ID()), zap.Stringer("user_id", c.UserID()), zap.Stringer("chat_id", chatID))
		c.Close("send buffer full")
	}
	return delivered
}

// EvictUser unsubscribes every connection of userID from chatID.
func (r *Registry) EvictUser(chatID, userID uuid.UUID) int {
	return r.evict(chatID, func(c Conn) bool { return c.UserID() == userID })
}

// EvictUnless unsubscribes every connection of chatID whose user fails keep.
func (r *Registry) EvictUnless(chatID uuid.UUID, keep func(userID uuid.UUID) bool) int {
	return r.evict(chatID, func(c Conn) bool { return !keep(c.UserID()) })
}

// CloseRoom unsubscribes everyone from chatID.
func (r *Registry) CloseRoom(chatID uuid.UUID) int {
	return r.evict(chatID, func(Conn) bool { return true })
}

// CloseAll closes every registered connection. Each connection unregisters
// itself once its read loop exits.
func (r *Registry) CloseAll(reason string) int {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.conns))
	for _, m := range r.conns {
		conns = append(conns, m.conn)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		c.Close(reason)
	}
	return len(conns)
}

// Rooms returns the chats connID is subscribed to.
func (r *Registry) Rooms(connID string) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.conns[connID]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(m.rooms))
	for chatID := range m.rooms {
		out = append(out, chatID)
	}
	return out
}

// Subscribers returns the ids of the connections subscribed to chatID.
func (r *Registry) Subscribers(chatID uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.rooms[chatID]))
	for connID := range r.rooms[chatID] {
		out = append(out, connID)
	}
	return out
}

// Connections returns the number of registered connections.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) evict(chatID uuid.UUID, match func(Conn) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epochs[chatID]++
	n := 0
	for connID, c := range r.rooms[chatID] {
		if match(c) {
			r.unsubscribe(connID, chatID)
			n++
		}
	}
	return n
}

// unsubscribe requires r.mu held for writing.
func (r *Registry) unsubscribe(connID string, chatID uuid.UUID) {
	room, ok := r.rooms[chatID]
	if !ok {
		return
	}
	if _, ok := room[connID]; !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(r.rooms, chatID)
	}
	if m, ok := r.conns[connID]; ok {
		delete(m.rooms, chatID)
	}
	metrics.Subscriptions.Dec()
}
