package services

import (
	"context"
	"testing"
	"time"

	"social-chat/internal/config"
	"social-chat/internal/database"
	"social-chat/internal/models"
	apperrors "social-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLoginAndParseToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.users.Register(ctx, &models.RegisterRequest{Username: "runner", Email: "Runner@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "runner@example.com", user.Email)

	_, err = f.users.Register(ctx, &models.RegisterRequest{Username: "other", Email: "runner@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperrors.New(apperrors.CodeAlreadyExists, ""))

	_, err = f.users.Login(ctx, &models.LoginRequest{Email: "runner@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	login, err := f.users.Login(ctx, &models.LoginRequest{Email: "runner@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)

	id, err := f.users.ParseToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	_, err = ParseToken(login.Token, "another-secret")
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestSearchUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	me := f.user(t, "sam")
	f.user(t, "samantha")
	f.user(t, "bob")

	_, err := f.users.Search(ctx, me.ID, "s")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	found, err := f.users.Search(ctx, me.ID, "SAM")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "samantha", found[0].Username)
}

func TestFindByIDUsesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "cached")

	first, err := f.users.FindByID(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", u.ID).Update("username", "renamed").Error)

	second, err := f.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Username, second.Username)

	_, err = f.users.FindByID(ctx, 4242)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRedisServicePresenceAndRateLimit(t *testing.T) {
	client, err := database.NewRedisConnection(config.RedisConfig{URI: "redis://localhost:6379/15", PoolSize: 2})
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	svc := NewRedisService(client)
	seen := time.Unix(time.Now().Unix(), 0)

	require.NoError(t, svc.SetUserStatus(ctx, 901, models.PresenceOnline, seen))
	online, err := svc.IsUserOnline(ctx, 901)
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, svc.SetUserStatus(ctx, 901, models.PresenceOffline, seen))
	online, err = svc.IsUserOnline(ctx, 901)
	require.NoError(t, err)
	assert.False(t, online)

	got, err := svc.GetLastSeen(ctx, 901)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(seen))

	key := "test:ratelimit:" + time.Now().Format(time.RFC3339Nano)
	for i := 0; i < 3; i++ {
		ok, err := svc.CheckRateLimit(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := svc.CheckRateLimit(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeyedMutexReleasesKeys(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("1:2")
	assert.Equal(t, 1, k.size())
	unlock()
	assert.Zero(t, k.size())
}

func TestNotifiersFanOut(t *testing.T) {
	online := newRecordingNotifier()
	offline := newRecordingNotifier()
	offline.setOffline(1, true)

	delivered := Notifiers{offline, nil, online}.Notify(context.Background(), Event{Type: "x", Recipient: 1})
	assert.True(t, delivered)
	assert.Len(t, offline.events, 1)
	assert.Len(t, online.events, 1)

	assert.False(t, Notifiers{offline}.Notify(context.Background(), Event{Recipient: 1}))
}
