package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryConnectionRepository_PairIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryConnectionRepository()

	require.NoError(t, repo.CreateRequest(ctx, &models.ConnectionRequest{SenderID: "a", ReceiverID: "b", Status: models.ConnectionStatusPending}))
	err := repo.CreateRequest(ctx, &models.ConnectionRequest{SenderID: "b", ReceiverID: "a", Status: models.ConnectionStatusPending})
	assert.True(t, apperrors.IsKind(err, apperrors.KindAlreadyRequested))
}

func TestMemoryConnectionRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryConnectionRepository()

	req := &models.ConnectionRequest{SenderID: "a", ReceiverID: "b", Status: models.ConnectionStatusPending}
	require.NoError(t, repo.CreateRequest(ctx, req))
	require.NotEmpty(t, req.ID)

	received, err := repo.ListPendingReceived(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, received, 1)

	ok, err := repo.MarkAccepted(ctx, req.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkAccepted(ctx, req.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	accepted, err := repo.ListAccepted(ctx, "a")
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.NotNil(t, accepted[0].AcceptedAt)

	require.NoError(t, repo.DeleteRequest(ctx, req.ID))
	_, err = repo.GetRequestByPair(ctx, "a", "b")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
	assert.True(t, apperrors.IsKind(repo.DeleteRequest(ctx, req.ID), apperrors.KindNotFound))
}

func TestMemoryChatRepository_FindOrCreateIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryChatRepository()
	key := models.PairKey("a", "b")

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := repo.FindOrCreateSession(ctx, &models.ChatSession{PairKey: key, Participants: models.CanonicalPair("a", "b")})
			if assert.NoError(t, err) {
				ids[i] = s.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestMemoryChatRepository_AppendKeepsOrderAndSessionCache(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryChatRepository()
	s, err := repo.FindOrCreateSession(ctx, &models.ChatSession{PairKey: "a:b", Participants: []string{"a", "b"}})
	require.NoError(t, err)

	for _, body := range []string{"one", "two", "three"} {
		require.NoError(t, repo.AppendMessage(ctx, &models.Message{ChatID: s.ID, SenderID: "a", Body: body}))
	}

	msgs, err := repo.ListMessages(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].Timestamp.After(msgs[i-1].Timestamp))
		assert.Equal(t, msgs[i-1].Seq+1, msgs[i].Seq)
	}

	stored, err := repo.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastMessage)
	assert.Equal(t, "three", *stored.LastMessage)
	assert.Equal(t, "a", *stored.LastMessageSender)
	assert.Equal(t, int64(3), stored.LastMessageSeq)

	n, err := repo.MarkRead(ctx, s.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestMemoryChatRepository_AppendToMissingSession(t *testing.T) {
	err := NewMemoryChatRepository().AppendMessage(context.Background(), &models.Message{ChatID: "nope"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestNextTimestamp(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)
	assert.Equal(t, now.Truncate(time.Millisecond), nextTimestamp(now, nil))

	last := now.Add(time.Second)
	assert.Equal(t, last.Truncate(time.Millisecond).Add(time.Millisecond), nextTimestamp(now, &last))
}
