package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	ChatSessionsCollection = "chatSessions"
	MessagesCollection     = "messages"
)

// ChatRepository defines the interface for chat session and message operations
type ChatRepository interface {
	FindSessionByPair(ctx context.Context, pairKey string) (*models.ChatSession, error)
	// FindOrCreateSession inserts session unless one with the same pair key
	// exists, and returns whichever session is stored for the pair.
	FindOrCreateSession(ctx context.Context, session *models.ChatSession) (*models.ChatSession, error)
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)
	// AppendMessage assigns ID, Seq and Timestamp, stores the message and
	// refreshes the session's last message fields.
	AppendMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns a chat's messages ordered by timestamp, then seq.
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
	MarkRead(ctx context.Context, chatID, readerID string) (int64, error)
}

// MongoChatRepository implements ChatRepository for MongoDB
type MongoChatRepository struct {
	sessions *mongo.Collection
	messages *mongo.Collection
}

// NewMongoChatRepository creates a new MongoChatRepository
func NewMongoChatRepository(db *mongo.Database) *MongoChatRepository {
	return &MongoChatRepository{
		sessions: db.Collection(ChatSessionsCollection),
		messages: db.Collection(MessagesCollection),
	}
}

// EnsureIndexes creates the unique pair index and the message ordering index
func (r *MongoChatRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "pair_key", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_pair_key"),
	})
	if err != nil {
		return apperrors.FromStore("create session index", err)
	}
	_, err = r.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "timestamp", Value: 1}, {Key: "seq", Value: 1}},
	})
	return apperrors.FromStore("create message index", err)
}

func (r *MongoChatRepository) FindSessionByPair(ctx context.Context, pairKey string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := r.sessions.FindOne(ctx, bson.M{"pair_key": pairKey}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("chat session not found")
		}
		return nil, apperrors.FromStore("find chat session", err)
	}
	return &session, nil
}

func (r *MongoChatRepository) FindOrCreateSession(ctx context.Context, session *models.ChatSession) (*models.ChatSession, error) {
	if session.ID == "" {
		session.ID = primitive.NewObjectID().Hex()
	}
	filter := bson.M{"pair_key": session.PairKey}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":                 session.ID,
			"participants":        session.Participants,
			"created_at":          session.CreatedAt,
			"updated_at":          session.UpdatedAt,
			"last_message":        nil,
			"last_message_time":   nil,
			"last_message_sender": nil,
			"last_message_seq":    int64(0),
			"message_seq":         int64(0),
			"message_clock":       nil,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored models.ChatSession
	err := r.sessions.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	if mongo.IsDuplicateKeyError(err) {
		// Another writer won the upsert race; its document is the canonical one.
		err = r.sessions.FindOne(ctx, filter).Decode(&stored)
	}
	if err != nil {
		return nil, apperrors.FromStore("find or create chat session", err)
	}
	return &stored, nil
}

func (r *MongoChatRepository) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := r.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("chat session not found")
		}
		return nil, apperrors.FromStore("get chat session", err)
	}
	return &session, nil
}

// AppendMessage allocates the next per-chat sequence number and timestamp in
// one server-side update, inserts the message, then updates the session's
// denormalized fields. The clock is max(server now, previous clock + 1ms), so
// timestamps strictly increase with seq. The session update only applies when
// it carries a newer seq than what is stored.
func (r *MongoChatRepository) AppendMessage(ctx context.Context, msg *models.Message) error {
	var session models.ChatSession
	err := r.sessions.FindOneAndUpdate(ctx,
		bson.M{"_id": msg.ChatID},
		allocateMessageSlot,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperrors.NotFound("chat session not found")
		}
		return apperrors.FromStore("allocate message sequence", err)
	}

	msg.ID = primitive.NewObjectID().Hex()
	msg.Seq = session.MessageSeq
	if session.MessageClock != nil {
		msg.Timestamp = session.MessageClock.UTC()
	} else {
		msg.Timestamp = nextTimestamp(time.Now(), session.LastMessageTime)
	}

	if _, err := r.messages.InsertOne(ctx, msg); err != nil {
		return apperrors.FromStore("insert message", err)
	}

	_, err = r.sessions.UpdateOne(ctx,
		bson.M{"_id": msg.ChatID, "last_message_seq": bson.M{"$lt": msg.Seq}},
		bson.M{"$set": bson.M{
			"last_message":        msg.Body,
			"last_message_time":   msg.Timestamp,
			"last_message_sender": msg.SenderID,
			"last_message_seq":    msg.Seq,
			"updated_at":          msg.Timestamp,
		}},
	)
	return apperrors.FromStore("update chat session", err)
}

func (r *MongoChatRepository) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "seq", Value: 1}})
	cursor, err := r.messages.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, apperrors.FromStore("list messages", err)
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, apperrors.FromStore("decode messages", err)
	}
	return messages, nil
}

func (r *MongoChatRepository) MarkRead(ctx context.Context, chatID, readerID string) (int64, error) {
	res, err := r.messages.UpdateMany(ctx,
		bson.M{"chat_id": chatID, "sender_id": bson.M{"$ne": readerID}, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, apperrors.FromStore("mark messages read", err)
	}
	return res.ModifiedCount, nil
}

// allocateMessageSlot bumps message_seq and advances message_clock. Sessions
// written before the clock existed start from their last message time.
var allocateMessageSlot = mongo.Pipeline{
	{{Key: "$set", Value: bson.D{
		{Key: "message_seq", Value: bson.D{{Key: "$add", Value: bson.A{
			bson.D{{Key: "$ifNull", Value: bson.A{"$message_seq", 0}}}, 1,
		}}}},
		{Key: "message_clock", Value: bson.D{{Key: "$max", Value: bson.A{
			"$$NOW",
			bson.D{{Key: "$add", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$message_clock", "$last_message_time"}}}, 1,
			}}},
		}}}},
	}}},
}

// nextTimestamp returns now at millisecond precision (what MongoDB stores),
// bumped past the previous message time when the clock has not advanced.
func nextTimestamp(now time.Time, last *time.Time) time.Time {
	ts := now.UTC().Truncate(time.Millisecond)
	if last != nil && !ts.After(*last) {
		ts = last.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return ts
}
