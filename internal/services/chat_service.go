package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"github.com/anonto42/edu-connect/backend/internal/repositories"
)

// OpenedChat is a resolved session together with the profiles of its
// participants. Profiles that cannot be resolved are left out.
type OpenedChat struct {
	Session      *models.ChatSession         `json:"session"`
	Participants []models.ParticipantProfile `json:"participants"`
}

// ChatService is what views talk to: it opens chats between connected
// accounts and forwards sends and subscriptions once the caller has been
// checked against the session participants.
type ChatService struct {
	connections *ConnectionService
	resolver    *SessionResolver
	channel     *MessageChannel
	directory   ParticipantDirectory
	repo        repositories.ChatRepository
	timeout     time.Duration
	logger      *slog.Logger
}

func NewChatService(connections *ConnectionService, resolver *SessionResolver, channel *MessageChannel, dir ParticipantDirectory, repo repositories.ChatRepository, timeout time.Duration, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		connections: connections,
		resolver:    resolver,
		channel:     channel,
		directory:   dir,
		repo:        repo,
		timeout:     timeout,
		logger:      logger.With("component", "chat"),
	}
}

// OpenChat returns the session between currentUserID and counterpartID,
// creating it on first use. The two accounts must be connected.
func (s *ChatService) OpenChat(ctx context.Context, currentUserID, counterpartID string) (*OpenedChat, error) {
	connected, err := s.connections.IsConnected(ctx, currentUserID, counterpartID)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, apperrors.Forbidden("accounts are not connected")
	}

	session, err := s.resolver.GetOrCreateSession(ctx, currentUserID, counterpartID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	profiles := s.directory.ResolveMany(ctx, session.Participants)

	return &OpenedChat{Session: session, Participants: profiles}, nil
}

// SendText sends a text message as currentUserID.
func (s *ChatService) SendText(ctx context.Context, currentUserID, chatID, text string) (string, error) {
	return s.SendMessage(ctx, currentUserID, chatID, text, models.MessageTypeText)
}

func (s *ChatService) SendMessage(ctx context.Context, currentUserID, chatID, text, msgType string) (string, error) {
	if err := s.authorize(ctx, currentUserID, chatID); err != nil {
		return "", err
	}
	return s.channel.Send(ctx, chatID, currentUserID, text, msgType)
}

// Subscribe streams chatID to onUpdate on behalf of currentUserID. See
// MessageChannel.Subscribe.
func (s *ChatService) Subscribe(ctx context.Context, currentUserID, chatID string, onUpdate func([]models.Message)) (Unsubscribe, error) {
	if err := s.authorize(ctx, currentUserID, chatID); err != nil {
		return nil, err
	}
	return s.channel.Subscribe(ctx, chatID, onUpdate)
}

// Messages returns the current decoded log of chatID.
func (s *ChatService) Messages(ctx context.Context, currentUserID, chatID string) ([]models.Message, error) {
	if err := s.authorize(ctx, currentUserID, chatID); err != nil {
		return nil, err
	}
	return s.channel.Messages(ctx, chatID)
}

func (s *ChatService) MarkRead(ctx context.Context, currentUserID, chatID string) (int64, error) {
	if err := s.authorize(ctx, currentUserID, chatID); err != nil {
		return 0, err
	}
	return s.channel.MarkRead(ctx, chatID, currentUserID)
}

func (s *ChatService) authorize(ctx context.Context, accountID, chatID string) error {
	if accountID == "" || chatID == "" {
		return apperrors.InvalidArgument("account and chat are required")
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.repo.GetSession(ctx, chatID)
	if err != nil {
		return err
	}
	if !session.HasParticipant(accountID) {
		return apperrors.ErrNotParticipant
	}
	return nil
}
