package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"social-chat/internal/models"
	apperrors "social-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendMessageValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	c := f.user(t, "carol")
	f.befriend(t, a, b)

	_, err := f.chat.AppendMessage(ctx, a.ID, b.ID, "   ", models.MessageTypeText)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = f.chat.AppendMessage(ctx, a.ID, b.ID, strings.Repeat("x", maxMessageLength+1), models.MessageTypeText)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = f.chat.AppendMessage(ctx, a.ID, b.ID, "hi", "sticker")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = f.chat.AppendMessage(ctx, a.ID, c.ID, "hi", models.MessageTypeText)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	msg, err := f.chat.AppendMessage(ctx, a.ID, b.ID, "hi", "")
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeText, msg.Type)
	assert.Equal(t, models.MessageStatusSent, msg.Status)
}

func TestBlockThenSendIsForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	f.befriend(t, a, b)

	_, err := f.chat.AppendMessage(ctx, a.ID, b.ID, "before", models.MessageTypeText)
	require.NoError(t, err)

	require.NoError(t, f.friends.BlockFriend(ctx, a.ID, b.ID))

	_, err = f.chat.AppendMessage(ctx, a.ID, b.ID, "after", models.MessageTypeText)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = f.chat.AppendMessage(ctx, b.ID, a.ID, "reply", models.MessageTypeText)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	// history stays readable
	msgs, err := f.chat.ListMessages(ctx, b.ID, a.ID, 1, 0, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	// but no read receipt leaks across the block
	_, _, err = f.chat.MarkRead(ctx, b.ID, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	unread, err := f.chat.UnreadCount(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}

func TestMessagesKeepSendOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	f.befriend(t, a, b)

	for i := 0; i < 10; i++ {
		sender, receiver := a.ID, b.ID
		if i%3 == 0 {
			sender, receiver = b.ID, a.ID
		}
		_, err := f.chat.AppendMessage(ctx, sender, receiver, fmt.Sprintf("m%d", i), models.MessageTypeText)
		require.NoError(t, err)
	}

	msgs, err := f.chat.ListMessages(ctx, a.ID, b.ID, 1, 100, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Content)
		if i > 0 {
			assert.False(t, m.CreatedAt.Before(msgs[i-1].CreatedAt))
		}
	}
}

func TestConcurrentSendersBothSides(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	f.befriend(t, a, b)

	var wg sync.WaitGroup
	for _, pair := range [][2]uint{{a.ID, b.ID}, {b.ID, a.ID}} {
		wg.Add(1)
		go func(from, to uint) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := f.chat.AppendMessage(ctx, from, to, fmt.Sprintf("%d-%d", from, i), models.MessageTypeText)
				assert.NoError(t, err)
			}
		}(pair[0], pair[1])
	}
	wg.Wait()

	msgs, err := f.chat.ListMessages(ctx, a.ID, b.ID, 1, 100, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 20)

	next := map[uint]int{}
	for i, m := range msgs {
		assert.Equal(t, uint64(i+1), m.Seq)
		assert.Equal(t, fmt.Sprintf("%d-%d", m.SenderID, next[m.SenderID]), m.Content)
		next[m.SenderID]++
	}
	assert.Zero(t, f.chat.locks.size())
}

func TestListMessagesPagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	f.befriend(t, a, b)

	var ids []uint
	for i := 0; i < 5; i++ {
		m, err := f.chat.AppendMessage(ctx, a.ID, b.ID, fmt.Sprintf("m%d", i), models.MessageTypeText)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	page1, err := f.chat.ListMessages(ctx, b.ID, a.ID, 1, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m4"}, contents(page1))

	// a page anchored at m3 is unaffected by new appends
	_, err = f.chat.AppendMessage(ctx, b.ID, a.ID, "late", models.MessageTypeText)
	require.NoError(t, err)
	page2, err := f.chat.ListMessages(ctx, b.ID, a.ID, 1, 2, ids[3])
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, contents(page2))

	page3, err := f.chat.ListMessages(ctx, b.ID, a.ID, 2, 2, ids[3])
	require.NoError(t, err)
	assert.Equal(t, []string{"m0"}, contents(page3))

	_, err = f.chat.ListMessages(ctx, a.ID, a.ID, 1, 2, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	assert.Equal(t, 50, f.chat.pageSize(0))
	assert.Equal(t, 100, f.chat.pageSize(1000))
}

func contents(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestMarkReadIsIdempotentAndOneDirectional(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "user")
	friend := f.user(t, "friend")
	f.befriend(t, u, friend)

	for i := 0; i < 3; i++ {
		_, err := f.chat.AppendMessage(ctx, friend.ID, u.ID, "to u", models.MessageTypeText)
		require.NoError(t, err)
	}
	mine, err := f.chat.AppendMessage(ctx, u.ID, friend.ID, "from u", models.MessageTypeText)
	require.NoError(t, err)

	_, n, err := f.chat.MarkRead(ctx, u.ID, friend.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, n, err = f.chat.MarkRead(ctx, u.ID, friend.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	unread, err := f.chat.UnreadCount(ctx, u.ID, friend.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	msgs, err := f.chat.ListMessages(ctx, u.ID, friend.ID, 1, 10, 0)
	require.NoError(t, err)
	for _, m := range msgs {
		if m.ID == mine.ID {
			assert.Equal(t, models.MessageStatusSent, m.Status)
			assert.Nil(t, m.ReadAt)
		} else {
			assert.Equal(t, models.MessageStatusRead, m.Status)
		}
	}
}

func TestConversationUnreadMatchesUnreadCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "user")
	f1 := f.user(t, "f1")
	f2 := f.user(t, "f2")
	f.befriend(t, u, f1)
	f.befriend(t, u, f2)

	_, err := f.chat.AppendMessage(ctx, f1.ID, u.ID, "one", models.MessageTypeText)
	require.NoError(t, err)
	_, err = f.chat.AppendMessage(ctx, f1.ID, u.ID, "two", models.MessageTypeText)
	require.NoError(t, err)
	last, err := f.chat.AppendMessage(ctx, u.ID, f2.ID, "three", models.MessageTypeText)
	require.NoError(t, err)

	convs, err := f.chat.ListConversations(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, f2.ID, convs[0].FriendID)
	assert.Equal(t, last.ID, convs[0].LastMessage.ID)
	require.NotNil(t, convs[0].Friend)
	assert.Equal(t, "f2", convs[0].Friend.Username)

	for _, c := range convs {
		expected, err := f.chat.UnreadCount(ctx, u.ID, c.FriendID)
		require.NoError(t, err)
		assert.Equal(t, expected, c.UnreadCount)
	}
	assert.Equal(t, int64(2), convs[1].UnreadCount)
}

// A requests, B accepts, A says hi, B reads it.
func TestFriendshipToReadReceiptScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a")
	b := f.user(t, "b")

	req, err := f.friends.SendFriendRequest(ctx, a.ID, b.Email, "")
	require.NoError(t, err)
	_, err = f.friends.AcceptFriendRequest(ctx, req.ID, b.ID)
	require.NoError(t, err)

	_, err = f.chat.AppendMessage(ctx, a.ID, b.ID, "hi", models.MessageTypeText)
	require.NoError(t, err)

	msgs, err := f.chat.ListMessages(ctx, b.ID, a.ID, 1, 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessageStatusSent, msgs[0].Status)

	_, _, err = f.chat.MarkRead(ctx, b.ID, a.ID)
	require.NoError(t, err)

	convs, err := f.chat.ListConversations(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, models.MessageStatusRead, convs[0].LastMessage.Status)
}

type fakeExportStore struct {
	names []string
	err   error
}

func (s *fakeExportStore) UploadExport(_ context.Context, name string, _ []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.names = append(s.names, name)
	return "https://files.example.com/" + name, nil
}

func TestExportAndClearChat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	f.befriend(t, a, b)

	_, err := f.chat.AppendMessage(ctx, a.ID, b.ID, "hello", models.MessageTypeText)
	require.NoError(t, err)

	export, err := f.chat.ExportChat(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", export.FriendName)
	assert.Len(t, export.ChatData, 1)
	assert.Empty(t, export.DownloadURL)

	store := &fakeExportStore{}
	f.chat.exports = store
	export, err = f.chat.ExportChat(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, store.names, 1)
	assert.Contains(t, export.DownloadURL, store.names[0])

	store.err = errors.New("bucket missing")
	export, err = f.chat.ExportChat(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Empty(t, export.DownloadURL)

	_, err = f.chat.ExportChat(ctx, a.ID, 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	n, err := f.chat.ClearChatHistory(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	msgs, err := f.chat.ListMessages(ctx, a.ID, b.ID, 1, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
