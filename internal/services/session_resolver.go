package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"github.com/anonto42/edu-connect/backend/internal/repositories"
	"golang.org/x/sync/singleflight"
)

// SessionResolver maps an unordered pair of accounts to its single chat
// session, creating it on first use.
type SessionResolver struct {
	repo    repositories.ChatRepository
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	// creating coalesces concurrent first opens of the same pair within this
	// process; the repository's conditional insert covers other processes.
	creating singleflight.Group
}

func NewSessionResolver(repo repositories.ChatRepository, timeout time.Duration, logger *slog.Logger) *SessionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionResolver{
		repo:    repo,
		timeout: timeout,
		logger:  logger.With("component", "session_resolver"),
		now:     time.Now,
	}
}

// GetOrCreateSession returns the session for {accountA, accountB}. Argument
// order does not matter.
func (r *SessionResolver) GetOrCreateSession(ctx context.Context, accountA, accountB string) (*models.ChatSession, error) {
	if accountA == "" || accountB == "" {
		return nil, apperrors.InvalidArgument("both accounts are required")
	}
	if accountA == accountB {
		return nil, apperrors.InvalidArgument("a chat needs two different accounts")
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	key := models.PairKey(accountA, accountB)
	session, err := r.repo.FindSessionByPair(ctx, key)
	if err == nil {
		return session, nil
	}
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		return nil, err
	}

	// The shared attempt runs detached from any one caller so a caller that
	// gives up does not fail the others waiting on the same pair. Each caller
	// still stops waiting at its own deadline.
	ch := r.creating.DoChan(key, func() (any, error) {
		shared, cancel := withTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		now := r.now().UTC()
		created, err := r.repo.FindOrCreateSession(shared, &models.ChatSession{
			Participants: models.CanonicalPair(accountA, accountB),
			PairKey:      key,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return nil, err
		}
		r.logger.InfoContext(shared, "chat session resolved", "chat_id", created.ID, "pair", key)
		return created, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, apperrors.FromStore("resolve chat session", ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	// Callers sharing a singleflight result each get their own copy.
	shared := res.Val.(*models.ChatSession)
	out := *shared
	out.Participants = append([]string(nil), shared.Participants...)
	return &out, nil
}
