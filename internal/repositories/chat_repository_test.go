package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoChatRepository_FindOrCreateSession(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mt.Run("upsert returns the stored session", func(mt *mtest.T) {
		repo := NewMongoChatRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "chat-1"},
			{Key: "participants", Value: bson.A{"a", "b"}},
			{Key: "pair_key", Value: "a:b"},
			{Key: "created_at", Value: created},
			{Key: "updated_at", Value: created},
			{Key: "message_seq", Value: int64(0)},
		}}))

		s, err := repo.FindOrCreateSession(ctx, &models.ChatSession{
			ID:           "chat-1",
			PairKey:      "a:b",
			Participants: []string{"a", "b"},
			CreatedAt:    created,
			UpdatedAt:    created,
		})
		require.NoError(mt, err)
		assert.Equal(mt, "chat-1", s.ID)
		assert.Equal(mt, []string{"a", "b"}, s.Participants)
		assert.Nil(mt, s.LastMessage)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "findAndModify", evt.CommandName)
		assert.True(mt, evt.Command.Lookup("upsert").Boolean())
		assert.Equal(mt, "a:b", evt.Command.Lookup("query", "pair_key").StringValue())
		assert.Equal(mt, "chat-1", evt.Command.Lookup("update", "$setOnInsert", "_id").StringValue())
	})

	mt.Run("duplicate key re-reads the winner", func(mt *mtest.T) {
		repo := NewMongoChatRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code:    11000,
				Message: "E11000 duplicate key error collection: chatSessions index: uniq_pair_key",
				Name:    "DuplicateKey",
			}),
			mtest.CreateCursorResponse(0, mt.DB.Name()+"."+ChatSessionsCollection, mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "chat-winner"},
				{Key: "participants", Value: bson.A{"a", "b"}},
				{Key: "pair_key", Value: "a:b"},
				{Key: "created_at", Value: created},
				{Key: "updated_at", Value: created},
			}),
		)

		s, err := repo.FindOrCreateSession(ctx, &models.ChatSession{
			ID:           "chat-loser",
			PairKey:      "a:b",
			Participants: []string{"a", "b"},
		})
		require.NoError(mt, err)
		assert.Equal(mt, "chat-winner", s.ID)

		started := mt.GetAllStartedEvents()
		require.Len(mt, started, 2)
		assert.Equal(mt, "findAndModify", started[0].CommandName)
		assert.Equal(mt, "find", started[1].CommandName)
		assert.Equal(mt, "a:b", started[1].Command.Lookup("filter", "pair_key").StringValue())
	})

	mt.Run("other store errors are classified", func(mt *mtest.T) {
		repo := NewMongoChatRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad value",
			Name:    "BadValue",
		}))

		_, err := repo.FindOrCreateSession(ctx, &models.ChatSession{PairKey: "a:b", Participants: []string{"a", "b"}})
		assert.True(mt, apperrors.IsKind(err, apperrors.KindTransportFailure), "got %v", err)
	})
}

func TestMongoChatRepository_GetSessionNotFound(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("empty batch", func(mt *mtest.T) {
		repo := NewMongoChatRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+"."+ChatSessionsCollection, mtest.FirstBatch))

		_, err := repo.GetSession(context.Background(), "missing")
		assert.True(mt, apperrors.IsKind(err, apperrors.KindNotFound), "got %v", err)
	})
}

func TestMongoChatRepository_AppendMessage(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("seq and timestamp come from the same server update", func(mt *mtest.T) {
		repo := NewMongoChatRepository(mt.DB)
		clock := time.Date(2026, 3, 1, 9, 30, 0, int(7*time.Millisecond), time.UTC)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
				{Key: "_id", Value: "chat-1"},
				{Key: "participants", Value: bson.A{"a", "b"}},
				{Key: "pair_key", Value: "a:b"},
				{Key: "message_seq", Value: int64(5)},
				{Key: "message_clock", Value: clock},
				{Key: "last_message_seq", Value: int64(4)},
			}}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(1)}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(1)}, bson.E{Key: "nModified", Value: int32(1)}),
		)

		msg := &models.Message{ChatID: "chat-1", SenderID: "a", Body: "cipher", Type: models.MessageTypeText}
		require.NoError(mt, repo.AppendMessage(ctx, msg))
		assert.NotEmpty(mt, msg.ID)
		assert.Equal(mt, int64(5), msg.Seq)
		assert.True(mt, clock.Equal(msg.Timestamp), "timestamp %v, want %v", msg.Timestamp, clock)

		started := mt.GetAllStartedEvents()
		require.Len(mt, started, 3)
		assert.Equal(mt, "findAndModify", started[0].CommandName)
		update := started[0].Command.Lookup("update").String()
		assert.Contains(mt, update, "$$NOW")
		assert.Contains(mt, update, "message_clock")

		assert.Equal(mt, "insert", started[1].CommandName)
		assert.Equal(mt, "update", started[2].CommandName)
		set := started[2].Command.Lookup("updates").Array().Index(0).Value().Document().Lookup("u", "$set")
		assert.Equal(mt, int64(5), set.Document().Lookup("last_message_seq").Int64())
		assert.True(mt, clock.Equal(set.Document().Lookup("last_message_time").Time()))
	})

	mt.Run("unknown chat", func(mt *mtest.T) {
		repo := NewMongoChatRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		err := repo.AppendMessage(ctx, &models.Message{ChatID: "missing", SenderID: "a", Body: "x"})
		assert.True(mt, apperrors.IsKind(err, apperrors.KindNotFound), "got %v", err)
	})
}
