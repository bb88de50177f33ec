package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/codec"
	"github.com/anonto42/edu-connect/backend/internal/directory"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"github.com/anonto42/edu-connect/backend/internal/repositories"
	"github.com/stretchr/testify/require"
)

const (
	alice = "acc-alice"
	bob   = "acc-bob"
	carol = "acc-carol"
)

type fixture struct {
	connRepo    *repositories.MemoryConnectionRepository
	chatRepo    *repositories.MemoryChatRepository
	directory   *directory.Directory
	connections *ConnectionService
	resolver    *SessionResolver
	channel     *MessageChannel
	chat        *ChatService
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()

	learners := directory.NewMemoryPool(models.PoolLearner,
		models.ParticipantProfile{ID: alice, Name: "Alice", Email: "alice@example.com"},
		models.ParticipantProfile{ID: carol, Name: "Carol", Email: "carol@example.com"},
	)
	instructors := directory.NewMemoryPool(models.PoolInstructor,
		models.ParticipantProfile{ID: bob, Name: "Bob", Email: "bob@example.com", Avatar: "https://img/bob.png"},
	)

	f := &fixture{
		connRepo:  repositories.NewMemoryConnectionRepository(),
		chatRepo:  repositories.NewMemoryChatRepository(),
		directory: directory.New(learners, instructors, nil),
	}
	f.connections = NewConnectionService(f.connRepo, f.directory, time.Second, nil, nil)
	f.resolver = NewSessionResolver(f.chatRepo, time.Second, nil)
	f.channel = NewMessageChannel(f.chatRepo, codec.New(secret, nil), NewHub(), time.Second, SubscribeOptions{}, nil, nil)
	f.chat = NewChatService(f.connections, f.resolver, f.channel, f.directory, f.chatRepo, time.Second, nil)
	return f
}

// connect creates and accepts a request from a to the account behind email.
func (f *fixture) connect(t *testing.T, a, aName, email string) {
	t.Helper()
	ctx := context.Background()
	id, err := f.connections.SendRequest(ctx, a, aName, email)
	require.NoError(t, err)
	require.NoError(t, f.connections.AcceptRequest(ctx, id))
}

// recorder collects the lists a subscription delivers.
type recorder struct {
	mu    sync.Mutex
	lists [][]models.Message
}

func (r *recorder) onUpdate(msgs []models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists = append(r.lists, msgs)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lists)
}

func (r *recorder) last() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lists) == 0 {
		return nil
	}
	return r.lists[len(r.lists)-1]
}

func texts(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Body)
	}
	return out
}

// flakyChatRepository fails ListMessages while failing is set.
type flakyChatRepository struct {
	repositories.ChatRepository
	failing atomic.Bool
	calls   atomic.Int32
}

func (r *flakyChatRepository) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	r.calls.Add(1)
	if r.failing.Load() {
		return nil, apperrors.FromStore("list messages", errors.New("connection reset by peer"))
	}
	return r.ChatRepository.ListMessages(ctx, chatID)
}
