package directory

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"github.com/anonto42/edu-connect/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPool struct{ name string }

func (p failingPool) Name() string { return p.name }
func (p failingPool) FindByID(context.Context, string) (*models.ParticipantProfile, error) {
	return nil, apperrors.FromStore("lookup", errors.New("connection refused"))
}
func (p failingPool) FindByEmail(context.Context, string) (*models.ParticipantProfile, error) {
	return nil, apperrors.FromStore("lookup", errors.New("connection refused"))
}

func newDirectory() *Directory {
	learners := NewMemoryPool(models.PoolLearner,
		models.ParticipantProfile{ID: "l1", Name: "Lena", Email: "lena@example.com"},
		models.ParticipantProfile{ID: "dup", Name: "Learner Dup", Email: "dup@example.com"},
	)
	instructors := NewMemoryPool(models.PoolInstructor,
		models.ParticipantProfile{ID: "i1", Name: "Ivan", Email: "ivan@example.com", Avatar: "https://img/ivan.png"},
		models.ParticipantProfile{ID: "dup", Name: "Instructor Dup", Email: "dup@example.com"},
	)
	return New(learners, instructors, nil)
}

func TestDirectory_ResolveProbesInOrder(t *testing.T) {
	d := newDirectory()
	ctx := context.Background()

	p, err := d.Resolve(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, models.PoolInstructor, p.Pool)
	assert.Equal(t, "https://img/ivan.png", p.Avatar)

	p, err = d.Resolve(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "Learner Dup", p.Name, "learner pool wins")

	_, err = d.Resolve(ctx, "ghost")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestDirectory_LookupByEmail(t *testing.T) {
	d := newDirectory()

	p, err := d.LookupByEmail(context.Background(), " IVAN@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "i1", p.ID)

	_, err = d.LookupByEmail(context.Background(), "nobody@example.com")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestDirectory_ResolveManyDropsMissing(t *testing.T) {
	d := newDirectory()

	profiles := d.ResolveMany(context.Background(), []string{"i1", "ghost", "l1"})
	require.Len(t, profiles, 2)
	assert.Equal(t, "i1", profiles[0].ID)
	assert.Equal(t, "l1", profiles[1].ID)

	assert.Empty(t, d.ResolveMany(context.Background(), nil))
}

func TestDirectory_FailingPoolFallsThrough(t *testing.T) {
	instructors := NewMemoryPool(models.PoolInstructor, models.ParticipantProfile{ID: "i1", Name: "Ivan"})
	d := New(failingPool{name: models.PoolLearner}, instructors, nil)

	p, err := d.Resolve(context.Background(), "i1")
	require.NoError(t, err)
	assert.Equal(t, "Ivan", p.Name)

	_, err = d.Resolve(context.Background(), "ghost")
	assert.True(t, apperrors.IsKind(err, apperrors.KindTransportFailure))
}

func TestLearnerPool(t *testing.T) {
	repo := repositories.NewMemoryLearnerRepository(models.Learner{AccountID: "l1", Name: "Lena", Email: "lena@example.com", AvatarURL: "a.png"})
	pool := NewLearnerPool(repo)

	p, err := pool.FindByEmail(context.Background(), "LENA@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantProfile{ID: "l1", Name: "Lena", Email: "lena@example.com", Avatar: "a.png", Pool: models.PoolLearner}, *p)

	_, err = pool.FindByID(context.Background(), "x")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	require.NoError(t, repo.CreateLearner(context.Background(), &models.Learner{AccountID: "x", Name: "Xena", Email: "xena@example.com"}))
	p, err = pool.FindByID(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "Xena", p.Name)
}

type fakeFirebaseUsers struct {
	users map[string]*auth.UserRecord
	err   error
}

func (f *fakeFirebaseUsers) GetUser(_ context.Context, uid string) (*auth.UserRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[uid]; ok {
		return u, nil
	}
	return nil, nil
}

func (f *fakeFirebaseUsers) GetUserByEmail(_ context.Context, email string) (*auth.UserRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func TestInstructorPool(t *testing.T) {
	client := &fakeFirebaseUsers{users: map[string]*auth.UserRecord{
		"uid-1": {UserInfo: &auth.UserInfo{UID: "uid-1", Email: "teach@example.com", PhotoURL: "p.png"}},
	}}
	pool := NewInstructorPool(client)

	p, err := pool.FindByEmail(context.Background(), "teach@example.com")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", p.ID)
	assert.Equal(t, "teach@example.com", p.Name, "email stands in for a missing display name")
	assert.Equal(t, models.PoolInstructor, p.Pool)

	_, err = pool.FindByID(context.Background(), "uid-2")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	client.err = errors.New("firebase unavailable")
	_, err = pool.FindByID(context.Background(), "uid-1")
	assert.True(t, apperrors.IsKind(err, apperrors.KindTransportFailure))
}
