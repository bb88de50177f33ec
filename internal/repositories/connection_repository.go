package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"gorm.io/gorm"
)

// ConnectionRepository defines the interface for connection request data operations
type ConnectionRepository interface {
	CreateRequest(ctx context.Context, req *models.ConnectionRequest) error
	GetRequestByID(ctx context.Context, id string) (*models.ConnectionRequest, error)
	GetRequestByPair(ctx context.Context, accountA, accountB string) (*models.ConnectionRequest, error)
	ListPendingReceived(ctx context.Context, accountID string) ([]models.ConnectionRequest, error)
	ListPendingSent(ctx context.Context, accountID string) ([]models.ConnectionRequest, error)
	ListAccepted(ctx context.Context, accountID string) ([]models.ConnectionRequest, error)
	// MarkAccepted moves a pending request to accepted. It reports false when
	// no pending request with that id exists.
	MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error)
	DeleteRequest(ctx context.Context, id string) error
}

// PostgresConnectionRepository implements ConnectionRepository for PostgreSQL
type PostgresConnectionRepository struct {
	db *gorm.DB
}

// NewPostgresConnectionRepository creates a new PostgresConnectionRepository
func NewPostgresConnectionRepository(db *gorm.DB) *PostgresConnectionRepository {
	return &PostgresConnectionRepository{db: db}
}

// CreateRequest inserts a new request. The unique pair key turns a concurrent
// duplicate into ErrAlreadyRequested.
func (r *PostgresConnectionRepository) CreateRequest(ctx context.Context, req *models.ConnectionRequest) error {
	req.PairKey = models.PairKey(req.SenderID, req.ReceiverID)
	err := r.db.WithContext(ctx).Create(req).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Wrap(apperrors.KindAlreadyRequested, "a connection request already exists between these accounts", err)
	}
	return apperrors.FromStore("create connection request", err)
}

// GetRequestByID retrieves a connection request by ID
func (r *PostgresConnectionRepository) GetRequestByID(ctx context.Context, id string) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("connection request not found")
		}
		return nil, apperrors.FromStore("get connection request", err)
	}
	return &req, nil
}

// GetRequestByPair retrieves the request between two accounts in either direction
func (r *PostgresConnectionRepository) GetRequestByPair(ctx context.Context, accountA, accountB string) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	err := r.db.WithContext(ctx).Where("pair_key = ?", models.PairKey(accountA, accountB)).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("no connection request between these accounts")
		}
		return nil, apperrors.FromStore("get connection request by pair", err)
	}
	return &req, nil
}

// ListPendingReceived retrieves pending requests addressed to the account
func (r *PostgresConnectionRepository) ListPendingReceived(ctx context.Context, accountID string) ([]models.ConnectionRequest, error) {
	var requests []models.ConnectionRequest
	err := r.db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", accountID, models.ConnectionStatusPending).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, apperrors.FromStore("list received requests", err)
	}
	return requests, nil
}

// ListPendingSent retrieves pending requests sent by the account
func (r *PostgresConnectionRepository) ListPendingSent(ctx context.Context, accountID string) ([]models.ConnectionRequest, error) {
	var requests []models.ConnectionRequest
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND status = ?", accountID, models.ConnectionStatusPending).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, apperrors.FromStore("list sent requests", err)
	}
	return requests, nil
}

// ListAccepted retrieves accepted requests where the account is either side
func (r *PostgresConnectionRepository) ListAccepted(ctx context.Context, accountID string) ([]models.ConnectionRequest, error) {
	var requests []models.ConnectionRequest
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? OR receiver_id = ?) AND status = ?", accountID, accountID, models.ConnectionStatusAccepted).
		Order("accepted_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, apperrors.FromStore("list accepted requests", err)
	}
	return requests, nil
}

// MarkAccepted transitions a pending request to accepted
func (r *PostgresConnectionRepository) MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ConnectionRequest{}).
		Where("id = ? AND status = ?", id, models.ConnectionStatusPending).
		Updates(map[string]any{"status": models.ConnectionStatusAccepted, "accepted_at": at})
	if res.Error != nil {
		return false, apperrors.FromStore("accept connection request", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteRequest hard-deletes a request
func (r *PostgresConnectionRepository) DeleteRequest(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ConnectionRequest{})
	if res.Error != nil {
		return apperrors.FromStore("delete connection request", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("connection request not found")
	}
	return nil
}
