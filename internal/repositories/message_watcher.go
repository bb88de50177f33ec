package repositories

import (
	"context"
	"log/slog"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const watchRestartDelay = 2 * time.Second

// MongoMessageWatcher follows the messages collection change stream and
// reports which chat changed. It lets several server instances share live
// subscriptions; it needs a replica set.
type MongoMessageWatcher struct {
	messages *mongo.Collection
	logger   *slog.Logger
}

func NewMongoMessageWatcher(db *mongo.Database, logger *slog.Logger) *MongoMessageWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoMessageWatcher{
		messages: db.Collection(MessagesCollection),
		logger:   logger.With("component", "message_watcher"),
	}
}

type messageChange struct {
	FullDocument struct {
		ChatID string `bson:"chat_id"`
	} `bson:"fullDocument"`
}

// Run calls onChange with the chat id of every inserted or updated message
// until ctx is done. A broken stream is reopened after a short delay.
func (w *MongoMessageWatcher) Run(ctx context.Context, onChange func(chatID string)) {
	for {
		err := w.watch(ctx, onChange)
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("message change stream stopped, restarting", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(watchRestartDelay):
		}
	}
}

func (w *MongoMessageWatcher) watch(ctx context.Context, onChange func(chatID string)) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update"}}}}}}},
		{{Key: "$project", Value: bson.D{{Key: "fullDocument.chat_id", Value: 1}}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	stream, err := w.messages.Watch(ctx, pipeline, opts)
	if err != nil {
		return apperrors.FromStore("open message change stream", err)
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var change messageChange
		if err := stream.Decode(&change); err != nil {
			w.logger.Warn("undecodable change event", "error", err)
			continue
		}
		if change.FullDocument.ChatID != "" {
			onChange(change.FullDocument.ChatID)
		}
	}
	return apperrors.FromStore("read message change stream", stream.Err())
}
