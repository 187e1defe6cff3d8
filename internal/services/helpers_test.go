package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"social-chat/internal/cache"
	"social-chat/internal/models"
	"social-chat/internal/repositories/postgres"
	"social-chat/internal/testutil"
	"social-chat/internal/websocket"

	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu      sync.Mutex
	events  []Event
	offline map[uint]bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{offline: map[uint]bool{}}
}

func (n *recordingNotifier) Notify(_ context.Context, ev Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return !n.offline[ev.Recipient]
}

func (n *recordingNotifier) setOffline(userID uint, offline bool) {
	n.mu.Lock()
	n.offline[userID] = offline
	n.mu.Unlock()
}

func (n *recordingNotifier) ofType(t websocket.MessageType) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Event
	for _, ev := range n.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	users    *UserService
	friends  *FriendService
	chat     *ChatService
	calls    *CallService
	notifier *recordingNotifier
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	mem := cache.NewMemoryCache(0)
	t.Cleanup(mem.Close)

	users := NewUserService(postgres.NewUserRepository(db), mem, time.Minute, "test-secret", time.Hour)
	friends := NewFriendService(postgres.NewFriendRepository(db), users)
	chat := NewChatService(postgres.NewMessageRepository(db), friends, users, nil, 50, 100)
	calls := NewCallService(friends, users, mem, time.Minute, time.Hour)

	notifier := newRecordingNotifier()
	friends.SetNotifier(notifier)
	calls.SetNotifier(notifier)

	clock := &fakeClock{now: time.Now()}
	calls.now = clock.Now

	return &fixture{db: db, users: users, friends: friends, chat: chat, calls: calls, notifier: notifier, clock: clock}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	return testutil.CreateUser(t, f.db, name)
}

func (f *fixture) befriend(t *testing.T, a, b *models.User) {
	testutil.MakeFriends(t, f.db, a.ID, b.ID)
}
