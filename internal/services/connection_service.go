package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/metrics"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"github.com/anonto42/edu-connect/backend/internal/repositories"
	"github.com/google/uuid"
)

// PendingRequests splits an account's pending requests by direction.
type PendingRequests struct {
	Received []models.ConnectionRequest `json:"received"`
	Sent     []models.ConnectionRequest `json:"sent"`
}

// ConnectionService manages connection requests between accounts.
//
// State machine: pending -> accepted (kept) or pending -> deleted (rejected).
type ConnectionService struct {
	repo      repositories.ConnectionRepository
	directory ParticipantDirectory
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewConnectionService(repo repositories.ConnectionRepository, dir ParticipantDirectory, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *ConnectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionService{
		repo:      repo,
		directory: dir,
		timeout:   timeout,
		logger:    logger.With("component", "connections"),
		metrics:   m,
		now:       time.Now,
	}
}

// SendRequest creates a pending request from senderID to the account
// registered under receiverIdentifier and returns the request id.
func (s *ConnectionService) SendRequest(ctx context.Context, senderID, senderName, receiverIdentifier string) (id string, err error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	defer func() { s.observe("send", err) }()

	receiverIdentifier = strings.TrimSpace(receiverIdentifier)
	if senderID == "" || receiverIdentifier == "" {
		return "", apperrors.InvalidArgument("sender and receiver are required")
	}

	receiver, err := s.directory.LookupByEmail(ctx, receiverIdentifier)
	if err != nil {
		return "", apperrors.FromStore("lookup receiver", err)
	}
	if receiver.ID == senderID {
		return "", apperrors.ErrSelfRequest
	}

	existing, err := s.repo.GetRequestByPair(ctx, senderID, receiver.ID)
	switch {
	case err == nil:
		if existing.Status == models.ConnectionStatusAccepted {
			return "", apperrors.ErrAlreadyConnected
		}
		return "", apperrors.ErrAlreadyRequested
	case !apperrors.IsKind(err, apperrors.KindNotFound):
		return "", err
	}

	req := &models.ConnectionRequest{
		ID:            uuid.NewString(),
		SenderID:      senderID,
		ReceiverID:    receiver.ID,
		SenderName:    senderName,
		ReceiverName:  receiver.Name,
		ReceiverEmail: receiver.Email,
		Status:        models.ConnectionStatusPending,
		CreatedAt:     s.now(),
	}
	if req.ReceiverEmail == "" {
		req.ReceiverEmail = receiverIdentifier
	}
	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "connection request sent", "request_id", req.ID, "sender", senderID, "receiver", receiver.ID)
	return req.ID, nil
}

// GetRequest returns a request by id.
func (s *ConnectionService) GetRequest(ctx context.Context, requestID string) (*models.ConnectionRequest, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.GetRequestByID(ctx, requestID)
}

// AcceptRequest marks a pending request accepted. Accepting an accepted
// request succeeds without changes.
func (s *ConnectionService) AcceptRequest(ctx context.Context, requestID string) (err error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	defer func() { s.observe("accept", err) }()

	updated, err := s.repo.MarkAccepted(ctx, requestID, s.now())
	if err != nil {
		return err
	}
	if updated {
		s.logger.InfoContext(ctx, "connection request accepted", "request_id", requestID)
		return nil
	}

	req, err := s.repo.GetRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status == models.ConnectionStatusAccepted {
		return nil
	}
	return apperrors.FromStore("accept connection request", errors.New("pending request was not updated"))
}

// RejectRequest deletes the request. Nothing of it is retained.
func (s *ConnectionService) RejectRequest(ctx context.Context, requestID string) (err error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	defer func() { s.observe("reject", err) }()

	if err := s.repo.DeleteRequest(ctx, requestID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "connection request rejected", "request_id", requestID)
	return nil
}

// ListPending returns pending requests received by and sent by accountID.
func (s *ConnectionService) ListPending(ctx context.Context, accountID string) (*PendingRequests, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	received, err := s.repo.ListPendingReceived(ctx, accountID)
	if err != nil {
		return nil, err
	}
	sent, err := s.repo.ListPendingSent(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &PendingRequests{Received: received, Sent: sent}, nil
}

// ListConnections returns every account connected to accountID. Names come
// from the directory when it can resolve the peer, otherwise from the name
// stored on the request.
func (s *ConnectionService) ListConnections(ctx context.Context, accountID string) ([]models.Connection, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	accepted, err := s.repo.ListAccepted(ctx, accountID)
	if err != nil {
		return nil, err
	}

	connections := make([]models.Connection, 0, len(accepted))
	ids := make([]string, 0, len(accepted))
	seen := make(map[string]bool, len(accepted))
	for i := range accepted {
		peerID, peerName := accepted[i].Counterpart(accountID)
		if seen[peerID] {
			continue
		}
		seen[peerID] = true
		ids = append(ids, peerID)
		connections = append(connections, models.Connection{AccountID: peerID, Name: peerName, RequestID: accepted[i].ID})
	}

	profiles := make(map[string]models.ParticipantProfile, len(ids))
	for _, p := range s.directory.ResolveMany(ctx, ids) {
		profiles[p.ID] = p
	}
	for i := range connections {
		if p, ok := profiles[connections[i].AccountID]; ok {
			if p.Name != "" {
				connections[i].Name = p.Name
			}
			connections[i].Avatar = p.Avatar
		}
	}
	return connections, nil
}

// IsConnected reports whether an accepted request exists between a and b.
func (s *ConnectionService) IsConnected(ctx context.Context, a, b string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.repo.GetRequestByPair(ctx, a, b)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return req.Status == models.ConnectionStatusAccepted, nil
}

func (s *ConnectionService) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(string(apperrors.KindOf(err)))
	}
	s.metrics.ConnectionRequest(op, outcome)
}
