package directory

import (
	"context"
	"strings"
	"sync"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"github.com/anonto42/edu-connect/backend/internal/repositories"
)

// LearnerPool serves learner accounts from the learners table.
type LearnerPool struct {
	repo repositories.LearnerRepository
}

func NewLearnerPool(repo repositories.LearnerRepository) *LearnerPool {
	return &LearnerPool{repo: repo}
}

func (p *LearnerPool) Name() string { return models.PoolLearner }

func (p *LearnerPool) FindByID(ctx context.Context, accountID string) (*models.ParticipantProfile, error) {
	learner, err := p.repo.GetLearnerByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	profile := learner.ToProfile()
	return &profile, nil
}

func (p *LearnerPool) FindByEmail(ctx context.Context, email string) (*models.ParticipantProfile, error) {
	learner, err := p.repo.GetLearnerByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	profile := learner.ToProfile()
	return &profile, nil
}

// FirebaseUsers is the part of *auth.Client the instructor pool needs.
type FirebaseUsers interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (*auth.UserRecord, error)
}

// InstructorPool serves instructor accounts from Firebase Authentication.
type InstructorPool struct {
	client FirebaseUsers
}

func NewInstructorPool(client FirebaseUsers) *InstructorPool {
	return &InstructorPool{client: client}
}

func (p *InstructorPool) Name() string { return models.PoolInstructor }

func (p *InstructorPool) FindByID(ctx context.Context, accountID string) (*models.ParticipantProfile, error) {
	record, err := p.client.GetUser(ctx, accountID)
	return instructorProfile(record, err)
}

func (p *InstructorPool) FindByEmail(ctx context.Context, email string) (*models.ParticipantProfile, error) {
	record, err := p.client.GetUserByEmail(ctx, strings.TrimSpace(email))
	return instructorProfile(record, err)
}

func instructorProfile(record *auth.UserRecord, err error) (*models.ParticipantProfile, error) {
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, apperrors.NotFound("instructor not found")
		}
		return nil, apperrors.FromStore("firebase user lookup", err)
	}
	if record == nil || record.UserInfo == nil {
		return nil, apperrors.NotFound("instructor not found")
	}
	name := record.DisplayName
	if name == "" {
		name = record.Email
	}
	return &models.ParticipantProfile{
		ID:     record.UID,
		Name:   name,
		Avatar: record.PhotoURL,
		Email:  record.Email,
		Pool:   models.PoolInstructor,
	}, nil
}

// MemoryPool is a fixed in-process pool for tests and local development.
type MemoryPool struct {
	name string

	mu       sync.RWMutex
	profiles map[string]models.ParticipantProfile
}

func NewMemoryPool(name string, profiles ...models.ParticipantProfile) *MemoryPool {
	p := &MemoryPool{name: name, profiles: make(map[string]models.ParticipantProfile)}
	for _, profile := range profiles {
		p.Add(profile)
	}
	return p
}

func (p *MemoryPool) Add(profile models.ParticipantProfile) {
	if profile.Pool == "" {
		profile.Pool = p.name
	}
	p.mu.Lock()
	p.profiles[profile.ID] = profile
	p.mu.Unlock()
}

func (p *MemoryPool) Name() string { return p.name }

func (p *MemoryPool) FindByID(ctx context.Context, accountID string) (*models.ParticipantProfile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	profile, ok := p.profiles[accountID]
	if !ok {
		return nil, apperrors.NotFound(p.name + " not found")
	}
	return &profile, nil
}

func (p *MemoryPool) FindByEmail(ctx context.Context, email string) (*models.ParticipantProfile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, profile := range p.profiles {
		if strings.EqualFold(profile.Email, strings.TrimSpace(email)) {
			return &profile, nil
		}
	}
	return nil, apperrors.NotFound(p.name + " not found")
}
