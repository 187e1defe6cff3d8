package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"social-chat/internal/models"
	"social-chat/internal/testutil"
	apperrors "social-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)

	alice := &models.User{Username: "alice", Email: "alice@example.com", Password: "x"}
	require.NoError(t, repo.Create(ctx, alice))
	assert.NotZero(t, alice.ID)

	err := repo.Create(ctx, &models.User{Username: "alice2", Email: "alice@example.com"})
	assert.ErrorIs(t, err, apperrors.New(apperrors.CodeAlreadyExists, ""))

	found, err := repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, found.ID)

	_, err = repo.FindByID(ctx, 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	testutil.CreateUser(t, db, "alicia")
	testutil.CreateUser(t, db, "bob")
	users, err := repo.Search(ctx, "ALI", alice.ID, 20)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alicia", users[0].Username)
}

func TestFriendRepositoryRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewFriendRepository(db)
	a := testutil.CreateUser(t, db, "a")
	b := testutil.CreateUser(t, db, "b")

	req := &models.FriendRequest{SenderID: b.ID, RecipientID: a.ID, Message: "hey"}
	require.NoError(t, repo.CreateRequest(ctx, req))

	// reversed direction hits the same canonical pair
	err := repo.CreateRequest(ctx, &models.FriendRequest{SenderID: a.ID, RecipientID: b.ID})
	assert.ErrorIs(t, err, apperrors.ErrRequestAlreadyPending)

	edge, err := repo.FindEdge(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipPending, edge.Status)
	assert.Less(t, edge.UserLowID, edge.UserHighID)

	incoming, err := repo.ListIncomingRequests(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	require.NotNil(t, incoming[0].Sender)
	assert.Equal(t, "b", incoming[0].Sender.Username)

	accepted, err := repo.RespondRequest(ctx, req, true, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipAccepted, accepted.Status)

	_, err = repo.RespondRequest(ctx, req, false, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	aFriends, err := repo.ListFriendIDs(ctx, a.ID)
	require.NoError(t, err)
	bFriends, err := repo.ListFriendIDs(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{b.ID}, aFriends)
	assert.Equal(t, []uint{a.ID}, bFriends)

	users, err := repo.ListFriends(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, b.ID, users[0].ID)
}

func TestFriendRepositoryRejectRemovesPendingEdge(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewFriendRepository(db)
	a := testutil.CreateUser(t, db, "a")
	b := testutil.CreateUser(t, db, "b")

	req := &models.FriendRequest{SenderID: a.ID, RecipientID: b.ID}
	require.NoError(t, repo.CreateRequest(ctx, req))

	edge, err := repo.RespondRequest(ctx, req, false, time.Now())
	require.NoError(t, err)
	assert.Nil(t, edge)

	_, err = repo.FindEdge(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	stored, err := repo.FindRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestRejected, stored.Status)
	assert.NotNil(t, stored.RespondedAt)
}

func TestFriendRepositoryBlockAndDelete(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewFriendRepository(db)
	a := testutil.CreateUser(t, db, "a")
	b := testutil.CreateUser(t, db, "b")
	c := testutil.CreateUser(t, db, "c")
	testutil.MakeFriends(t, db, a.ID, b.ID)

	require.NoError(t, repo.Block(ctx, b.ID, a.ID, time.Now()))
	edge, err := repo.FindEdge(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipBlocked, edge.Status)
	require.NotNil(t, edge.BlockedBy)
	assert.Equal(t, b.ID, *edge.BlockedBy)

	// removing never lifts a block
	require.NoError(t, repo.DeleteEdge(ctx, a.ID, b.ID, time.Now()))
	edge, err = repo.FindEdge(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipBlocked, edge.Status)

	// blocking a stranger creates the edge and rejects their request
	req := &models.FriendRequest{SenderID: c.ID, RecipientID: a.ID}
	require.NoError(t, repo.CreateRequest(ctx, req))
	require.NoError(t, repo.Block(ctx, a.ID, c.ID, time.Now()))
	stored, err := repo.FindRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestRejected, stored.Status)

	ids, err := repo.ListFriendIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMessageRepositoryAppendAssignsSequence(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewMessageRepository(db)
	key := models.PairKey(1, 2)

	now := time.Now().UTC()
	first := &models.Message{ConversationKey: key, SenderID: 1, ReceiverID: 2, Content: "one",
		Type: models.MessageTypeText, Status: models.MessageStatusSent, CreatedAt: now}
	require.NoError(t, repo.Append(ctx, first))

	// a clock step backwards must not reorder the conversation
	second := &models.Message{ConversationKey: key, SenderID: 2, ReceiverID: 1, Content: "two",
		Type: models.MessageTypeText, Status: models.MessageStatusSent, CreatedAt: now.Add(-time.Minute)}
	require.NoError(t, repo.Append(ctx, second))

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.False(t, second.CreatedAt.Before(first.CreatedAt))
}

func TestMessageRepositoryConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewMessageRepository(db)
	key := models.PairKey(1, 2)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg := &models.Message{ConversationKey: key, SenderID: 1, ReceiverID: 2, Content: "x",
				Type: models.MessageTypeText, Status: models.MessageStatusSent, CreatedAt: time.Now()}
			assert.NoError(t, repo.Append(ctx, msg))
		}()
	}
	wg.Wait()

	msgs, err := repo.All(ctx, key)
	require.NoError(t, err)
	require.Len(t, msgs, 20)
	for i, m := range msgs {
		assert.Equal(t, uint64(i+1), m.Seq)
	}
}

func seedConversation(t *testing.T, repo *MessageRepository, from, to uint, n int) []models.Message {
	t.Helper()
	out := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		msg := &models.Message{ConversationKey: models.PairKey(from, to), SenderID: from, ReceiverID: to,
			Content: "m", Type: models.MessageTypeText, Status: models.MessageStatusSent, CreatedAt: time.Now()}
		require.NoError(t, repo.Append(context.Background(), msg))
		out = append(out, *msg)
	}
	return out
}

func TestMessageRepositoryListPages(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(testutil.NewDB(t))
	seeded := seedConversation(t, repo, 1, 2, 5)
	key := models.PairKey(1, 2)

	page1, err := repo.List(ctx, key, 2, 0, 0)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, []uint64{4, 5}, []uint64{page1[0].Seq, page1[1].Seq})

	page3, err := repo.List(ctx, key, 2, 4, 0)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, uint64(1), page3[0].Seq)

	before, err := repo.List(ctx, key, 10, 0, seeded[2].ID)
	require.NoError(t, err)
	require.Len(t, before, 2)
	assert.Equal(t, uint64(2), before[1].Seq)

	_, err = repo.List(ctx, models.PairKey(7, 8), 10, 0, seeded[2].ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMessageRepositoryStatusTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(testutil.NewDB(t))
	fromFriend := seedConversation(t, repo, 2, 1, 3)
	seedConversation(t, repo, 1, 2, 2)

	n, err := repo.MarkDelivered(ctx, []uint{fromFriend[0].ID}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	unread, err := repo.UnreadCount(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	n, err = repo.MarkRead(ctx, 1, 2, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = repo.MarkRead(ctx, 1, 2, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	// read messages are never demoted
	n, err = repo.MarkDelivered(ctx, []uint{fromFriend[1].ID}, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	// the reader's own outgoing messages stay unread for the friend
	unread, err = repo.UnreadCount(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	msg, err := repo.FindByID(ctx, fromFriend[2].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusRead, msg.Status)
	assert.NotNil(t, msg.ReadAt)
	assert.NotNil(t, msg.DeliveredAt)
}

func TestMessageRepositoryConversations(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(testutil.NewDB(t))
	seedConversation(t, repo, 2, 1, 2)
	time.Sleep(5 * time.Millisecond)
	latest := seedConversation(t, repo, 3, 1, 1)
	seedConversation(t, repo, 4, 5, 1)

	msgs, err := repo.LatestPerConversation(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, latest[0].ID, msgs[0].ID)
	assert.Equal(t, uint(2), msgs[1].SenderID)
	assert.Equal(t, uint64(2), msgs[1].Seq)

	unread, err := repo.UnreadBySender(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[uint]int64{2: 2, 3: 1}, unread)

	n, err := repo.DeleteConversation(ctx, models.PairKey(1, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	msgs, err = repo.LatestPerConversation(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
