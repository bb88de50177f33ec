package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"github.com/anonto42/edu-connect/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionResolver_OrderIndependent(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	ab, err := f.resolver.GetOrCreateSession(ctx, alice, bob)
	require.NoError(t, err)
	ba, err := f.resolver.GetOrCreateSession(ctx, bob, alice)
	require.NoError(t, err)

	assert.Equal(t, ab.ID, ba.ID)
	assert.Equal(t, []string{alice, bob}, ab.Participants)
	assert.Nil(t, ab.LastMessage)
	assert.Nil(t, ab.LastMessageTime)
	assert.Nil(t, ab.LastMessageSender)
}

func TestSessionResolver_ConcurrentFirstOpen(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	const callers = 32
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := alice, bob
			if i%2 == 1 {
				a, b = b, a
			}
			s, err := f.resolver.GetOrCreateSession(ctx, a, b)
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

func TestSessionResolver_DistinctPairs(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	ab, err := f.resolver.GetOrCreateSession(ctx, alice, bob)
	require.NoError(t, err)
	ac, err := f.resolver.GetOrCreateSession(ctx, alice, carol)
	require.NoError(t, err)
	assert.NotEqual(t, ab.ID, ac.ID)
}

func TestSessionResolver_RejectsInvalidPairs(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	_, err := f.resolver.GetOrCreateSession(ctx, alice, alice)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidArgument))

	_, err = f.resolver.GetOrCreateSession(ctx, "", bob)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidArgument))
}

// slowCreateRepository holds FindOrCreateSession until release is closed or
// the call's context ends.
type slowCreateRepository struct {
	repositories.ChatRepository
	release chan struct{}
	finds   atomic.Int32
	creates atomic.Int32
}

func (r *slowCreateRepository) FindSessionByPair(ctx context.Context, pairKey string) (*models.ChatSession, error) {
	r.finds.Add(1)
	return r.ChatRepository.FindSessionByPair(ctx, pairKey)
}

func (r *slowCreateRepository) FindOrCreateSession(ctx context.Context, session *models.ChatSession) (*models.ChatSession, error) {
	r.creates.Add(1)
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, apperrors.FromStore("find or create session", ctx.Err())
	}
	return r.ChatRepository.FindOrCreateSession(ctx, session)
}

func TestSessionResolver_CallerCancelDoesNotFailOthers(t *testing.T) {
	repo := &slowCreateRepository{
		ChatRepository: repositories.NewMemoryChatRepository(),
		release:        make(chan struct{}),
	}
	resolver := NewSessionResolver(repo, time.Second, nil)

	first, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	firstErr := make(chan error, 1)
	go func() {
		_, err := resolver.GetOrCreateSession(first, alice, bob)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return repo.creates.Load() == 1 }, waitFor, tick)

	type result struct {
		session *models.ChatSession
		err     error
	}
	second := make(chan result, 1)
	go func() {
		s, err := resolver.GetOrCreateSession(context.Background(), bob, alice)
		second <- result{s, err}
	}()
	require.Eventually(t, func() bool { return repo.finds.Load() == 2 }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.True(t, apperrors.IsKind(err, apperrors.KindTimeout), "got %v", err)
	case <-time.After(waitFor):
		t.Fatal("canceled caller did not return")
	}

	close(repo.release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.NotEmpty(t, res.session.ID)
		assert.Equal(t, []string{alice, bob}, res.session.Participants)
	case <-time.After(waitFor):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), repo.creates.Load())
}
