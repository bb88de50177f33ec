package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"github.com/google/uuid"
)

// MemoryConnectionRepository is an in-process ConnectionRepository used by
// tests and by the server when no PostgreSQL connection is configured.
type MemoryConnectionRepository struct {
	mu       sync.RWMutex
	requests map[string]models.ConnectionRequest
}

func NewMemoryConnectionRepository() *MemoryConnectionRepository {
	return &MemoryConnectionRepository{requests: make(map[string]models.ConnectionRequest)}
}

func (r *MemoryConnectionRepository) CreateRequest(ctx context.Context, req *models.ConnectionRequest) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromStore("create connection request", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	req.PairKey = models.PairKey(req.SenderID, req.ReceiverID)
	for _, existing := range r.requests {
		if existing.PairKey == req.PairKey {
			return apperrors.ErrAlreadyRequested
		}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	r.requests[req.ID] = *req
	return nil
}

func (r *MemoryConnectionRepository) GetRequestByID(ctx context.Context, id string) (*models.ConnectionRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromStore("get connection request", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, apperrors.NotFound("connection request not found")
	}
	return &req, nil
}

func (r *MemoryConnectionRepository) GetRequestByPair(ctx context.Context, accountA, accountB string) (*models.ConnectionRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromStore("get connection request by pair", err)
	}
	key := models.PairKey(accountA, accountB)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, req := range r.requests {
		if req.PairKey == key {
			return &req, nil
		}
	}
	return nil, apperrors.NotFound("no connection request between these accounts")
}

func (r *MemoryConnectionRepository) filter(ctx context.Context, op string, keep func(models.ConnectionRequest) bool) ([]models.ConnectionRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromStore(op, err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.ConnectionRequest{}
	for _, req := range r.requests {
		if keep(req) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryConnectionRepository) ListPendingReceived(ctx context.Context, accountID string) ([]models.ConnectionRequest, error) {
	return r.filter(ctx, "list received requests", func(req models.ConnectionRequest) bool {
		return req.ReceiverID == accountID && req.Status == models.ConnectionStatusPending
	})
}

func (r *MemoryConnectionRepository) ListPendingSent(ctx context.Context, accountID string) ([]models.ConnectionRequest, error) {
	return r.filter(ctx, "list sent requests", func(req models.ConnectionRequest) bool {
		return req.SenderID == accountID && req.Status == models.ConnectionStatusPending
	})
}

func (r *MemoryConnectionRepository) ListAccepted(ctx context.Context, accountID string) ([]models.ConnectionRequest, error) {
	return r.filter(ctx, "list accepted requests", func(req models.ConnectionRequest) bool {
		return (req.SenderID == accountID || req.ReceiverID == accountID) && req.Status == models.ConnectionStatusAccepted
	})
}

func (r *MemoryConnectionRepository) MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.FromStore("accept connection request", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != models.ConnectionStatusPending {
		return false, nil
	}
	req.Status = models.ConnectionStatusAccepted
	req.AcceptedAt = &at
	r.requests[id] = req
	return true, nil
}

func (r *MemoryConnectionRepository) DeleteRequest(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromStore("delete connection request", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[id]; !ok {
		return apperrors.NotFound("connection request not found")
	}
	delete(r.requests, id)
	return nil
}

// MemoryChatRepository is an in-process ChatRepository.
type MemoryChatRepository struct {
	mu       sync.Mutex
	sessions map[string]*models.ChatSession
	byPair   map[string]string
	messages map[string][]models.Message
}

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{
		sessions: make(map[string]*models.ChatSession),
		byPair:   make(map[string]string),
		messages: make(map[string][]models.Message),
	}
}

func copySession(s *models.ChatSession) *models.ChatSession {
	out := *s
	out.Participants = append([]string(nil), s.Participants...)
	return &out
}

func (r *MemoryChatRepository) FindSessionByPair(ctx context.Context, pairKey string) (*models.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromStore("find chat session", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPair[pairKey]
	if !ok {
		return nil, apperrors.NotFound("chat session not found")
	}
	return copySession(r.sessions[id]), nil
}

func (r *MemoryChatRepository) FindOrCreateSession(ctx context.Context, session *models.ChatSession) (*models.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromStore("find or create chat session", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byPair[session.PairKey]; ok {
		return copySession(r.sessions[id]), nil
	}
	stored := copySession(session)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	r.sessions[stored.ID] = stored
	r.byPair[stored.PairKey] = stored.ID
	return copySession(stored), nil
}

func (r *MemoryChatRepository) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromStore("get chat session", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("chat session not found")
	}
	return copySession(s), nil
}

func (r *MemoryChatRepository) AppendMessage(ctx context.Context, msg *models.Message) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromStore("append message", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[msg.ChatID]
	if !ok {
		return apperrors.NotFound("chat session not found")
	}

	s.MessageSeq++
	msg.ID = uuid.NewString()
	msg.Seq = s.MessageSeq
	msg.Timestamp = nextTimestamp(time.Now(), s.LastMessageTime)
	r.messages[msg.ChatID] = append(r.messages[msg.ChatID], *msg)

	body, sender, ts := msg.Body, msg.SenderID, msg.Timestamp
	s.LastMessage = &body
	s.LastMessageSender = &sender
	s.LastMessageTime = &ts
	s.LastMessageSeq = msg.Seq
	s.UpdatedAt = ts
	return nil
}

func (r *MemoryChatRepository) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromStore("list messages", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]models.Message{}, r.messages[chatID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (r *MemoryChatRepository) MarkRead(ctx context.Context, chatID, readerID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.FromStore("mark messages read", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	msgs := r.messages[chatID]
	for i := range msgs {
		if msgs[i].SenderID != readerID && !msgs[i].IsRead {
			msgs[i].IsRead = true
			n++
		}
	}
	return n, nil
}

// MemoryLearnerRepository is an in-process LearnerRepository.
type MemoryLearnerRepository struct {
	mu       sync.RWMutex
	learners map[string]models.Learner
}

func NewMemoryLearnerRepository(learners ...models.Learner) *MemoryLearnerRepository {
	r := &MemoryLearnerRepository{learners: make(map[string]models.Learner)}
	for _, l := range learners {
		r.learners[l.AccountID] = l
	}
	return r
}

func (r *MemoryLearnerRepository) CreateLearner(ctx context.Context, learner *models.Learner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.learners[learner.AccountID] = *learner
	return nil
}

func (r *MemoryLearnerRepository) GetLearnerByID(ctx context.Context, accountID string) (*models.Learner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.learners[accountID]
	if !ok {
		return nil, apperrors.NotFound("learner not found")
	}
	return &l, nil
}

func (r *MemoryLearnerRepository) GetLearnerByEmail(ctx context.Context, email string) (*models.Learner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.learners {
		if strings.EqualFold(l.Email, strings.TrimSpace(email)) {
			return &l, nil
		}
	}
	return nil, apperrors.NotFound("learner not found")
}
