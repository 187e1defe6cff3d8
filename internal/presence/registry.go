// Package presence tracks which users hold live connections and delivers
// events to them. Registry operations never fail: store errors are logged
// and sends to a closed connection are dropped.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"social-chat/internal/models"
	"social-chat/internal/websocket"
)

// Conn is a live connection handle.
type Conn interface {
	ID() string
	UserID() uint
	Send(msg *websocket.Message) error
}

type FriendLister interface {
	ListFriendIDs(ctx context.Context, userID uint) ([]uint, error)
}

// StatusStore mirrors presence outside the process so lastSeen survives restarts.
type StatusStore interface {
	SetUserStatus(ctx context.Context, userID uint, status models.PresenceStatus, lastSeen time.Time) error
	GetLastSeen(ctx context.Context, userID uint) (*time.Time, error)
}

type userPresence struct {
	conns    map[string]Conn
	status   models.PresenceStatus
	lastSeen *time.Time

	// mirrorMu orders store writes for this user.
	mirrorMu sync.Mutex
}

type Registry struct {
	mu      sync.RWMutex
	users   map[uint]*userPresence
	friends FriendLister
	store   StatusStore
	now     func() time.Time
}

// NewRegistry builds a registry; store may be nil.
func NewRegistry(friends FriendLister, store StatusStore) *Registry {
	return &Registry{
		users:   make(map[uint]*userPresence),
		friends: friends,
		store:   store,
		now:     time.Now,
	}
}

func (r *Registry) entry(userID uint) *userPresence {
	p, ok := r.users[userID]
	if !ok {
		p = &userPresence{conns: make(map[string]Conn), status: models.PresenceOffline}
		r.users[userID] = p
	}
	return p
}

// SetOnline registers conn and reports whether it is the user's first connection.
func (r *Registry) SetOnline(ctx context.Context, conn Conn) bool {
	userID := conn.UserID()

	r.mu.Lock()
	p := r.entry(userID)
	first := len(p.conns) == 0
	p.conns[conn.ID()] = conn
	if first {
		p.status = models.PresenceOnline
	}
	r.mu.Unlock()

	if first {
		r.mirror(ctx, userID, p)
	}
	return first
}

// SetOffline removes conn and reports whether it was the user's last one.
// lastSeen is recorded only on that transition.
func (r *Registry) SetOffline(ctx context.Context, conn Conn) bool {
	userID := conn.UserID()
	now := r.now()

	r.mu.Lock()
	p, ok := r.users[userID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if _, registered := p.conns[conn.ID()]; !registered {
		r.mu.Unlock()
		return false
	}
	delete(p.conns, conn.ID())
	last := len(p.conns) == 0
	if last {
		p.status = models.PresenceOffline
		p.lastSeen = &now
	}
	r.mu.Unlock()

	if last {
		r.mirror(ctx, userID, p)
	}
	return last
}

// SetStatus overrides the visible status of a user. Going offline while
// still connected hides the user from friends but keeps delivery working.
func (r *Registry) SetStatus(ctx context.Context, userID uint, status models.PresenceStatus) models.PresenceEntry {
	now := r.now()

	r.mu.Lock()
	p := r.entry(userID)
	p.status = status
	if status == models.PresenceOffline {
		p.lastSeen = &now
	}
	entry := models.PresenceEntry{UserID: userID, Status: p.status, LastSeen: p.lastSeen}
	r.mu.Unlock()

	r.mirror(ctx, userID, p)
	return entry
}

// IsOnline reports whether the user is connected and not hidden.
func (r *Registry) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.users[userID]
	return ok && len(p.conns) > 0 && p.status != models.PresenceOffline
}

// Connected reports whether the user holds any connection.
func (r *Registry) Connected(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.users[userID]
	return ok && len(p.conns) > 0
}

func (r *Registry) Status(userID uint) models.PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.users[userID]
	if !ok {
		return models.PresenceEntry{UserID: userID, Status: models.PresenceOffline}
	}
	status := p.status
	if len(p.conns) == 0 {
		status = models.PresenceOffline
	}
	return models.PresenceEntry{UserID: userID, Status: status, LastSeen: p.lastSeen}
}

// LastSeen falls back to the store for users this process has not seen.
func (r *Registry) LastSeen(ctx context.Context, userID uint) *time.Time {
	r.mu.RLock()
	p, ok := r.users[userID]
	var seen *time.Time
	if ok {
		seen = p.lastSeen
	}
	r.mu.RUnlock()

	if seen != nil || r.store == nil {
		return seen
	}

	stored, err := r.store.GetLastSeen(ctx, userID)
	if err != nil {
		slog.Warn("Failed to load last seen", "userID", userID, "error", err)
		return nil
	}
	return stored
}

// OnlineOf filters ids down to users that are online.
func (r *Registry) OnlineOf(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if r.IsOnline(id) {
			out = append(out, id)
		}
	}
	return out
}

func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.users {
		n += len(p.conns)
	}
	return n
}

// SendToUser delivers msg to every connection of userID and returns how many accepted it.
func (r *Registry) SendToUser(userID uint, msg *websocket.Message) int {
	r.mu.RLock()
	p, ok := r.users[userID]
	var conns []Conn
	if ok {
		conns = make([]Conn, 0, len(p.conns))
		for _, c := range p.conns {
			conns = append(conns, c)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range conns {
		if err := c.Send(msg); err != nil {
			slog.Debug("Dropped event for closed connection", "userID", userID, "connID", c.ID(), "type", msg.Type, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// BroadcastToFriends delivers msg to every connected accepted friend of userID.
func (r *Registry) BroadcastToFriends(ctx context.Context, userID uint, msg *websocket.Message) int {
	if r.friends == nil {
		return 0
	}
	ids, err := r.friends.ListFriendIDs(ctx, userID)
	if err != nil {
		slog.Error("Failed to list friends for broadcast", "userID", userID, "type", msg.Type, "error", err)
		return 0
	}

	delivered := 0
	for _, id := range ids {
		delivered += r.SendToUser(id, msg)
	}
	return delivered
}

// mirror writes the user's current state to the store. Writes for one
// user are serialized and each reads the state after taking its turn, so
// the last write always matches the registry.
func (r *Registry) mirror(ctx context.Context, userID uint, p *userPresence) {
	if r.store == nil {
		return
	}
	p.mirrorMu.Lock()
	defer p.mirrorMu.Unlock()

	r.mu.RLock()
	status := p.status
	at := r.now()
	if status == models.PresenceOffline && p.lastSeen != nil {
		at = *p.lastSeen
	}
	r.mu.RUnlock()

	if err := r.store.SetUserStatus(ctx, userID, status, at); err != nil {
		slog.Error("Failed to mirror presence", "userID", userID, "status", status, "error", err)
	}
}

// Refresh rewrites the store entry of every connected, visible user so
// online entries do not expire while the connection lives. It returns how
// many users it touched.
func (r *Registry) Refresh(ctx context.Context) int {
	if r.store == nil {
		return 0
	}
	r.mu.RLock()
	live := make(map[uint]*userPresence)
	for id, p := range r.users {
		if len(p.conns) > 0 && p.status != models.PresenceOffline {
			live[id] = p
		}
	}
	r.mu.RUnlock()

	for id, p := range live {
		r.mirror(ctx, id, p)
	}
	return len(live)
}

// RunRefresher calls Refresh every interval until ctx is done.
func (r *Registry) RunRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.store == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Refresh(ctx); n > 0 {
				slog.Debug("Refreshed presence", "users", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
