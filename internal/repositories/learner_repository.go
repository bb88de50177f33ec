package repositories

import (
	"context"
	"errors"
	"strings"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"gorm.io/gorm"
)

// LearnerRepository defines the interface for learner account lookups
type LearnerRepository interface {
	CreateLearner(ctx context.Context, learner *models.Learner) error
	GetLearnerByID(ctx context.Context, accountID string) (*models.Learner, error)
	GetLearnerByEmail(ctx context.Context, email string) (*models.Learner, error)
}

// PostgresLearnerRepository implements LearnerRepository for PostgreSQL
type PostgresLearnerRepository struct {
	db *gorm.DB
}

// NewPostgresLearnerRepository creates a new PostgresLearnerRepository
func NewPostgresLearnerRepository(db *gorm.DB) *PostgresLearnerRepository {
	return &PostgresLearnerRepository{db: db}
}

// CreateLearner creates a new learner in PostgreSQL
func (r *PostgresLearnerRepository) CreateLearner(ctx context.Context, learner *models.Learner) error {
	learner.Email = strings.ToLower(strings.TrimSpace(learner.Email))
	return apperrors.FromStore("create learner", r.db.WithContext(ctx).Create(learner).Error)
}

// GetLearnerByID retrieves a learner by account ID
func (r *PostgresLearnerRepository) GetLearnerByID(ctx context.Context, accountID string) (*models.Learner, error) {
	var learner models.Learner
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&learner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("learner not found")
		}
		return nil, apperrors.FromStore("get learner", err)
	}
	return &learner, nil
}

// GetLearnerByEmail retrieves a learner by email, case-insensitive
func (r *PostgresLearnerRepository) GetLearnerByEmail(ctx context.Context, email string) (*models.Learner, error) {
	var learner models.Learner
	err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&learner).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("learner not found")
		}
		return nil, apperrors.FromStore("get learner by email", err)
	}
	return &learner, nil
}
