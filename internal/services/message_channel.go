package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/metrics"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"github.com/anonto42/edu-connect/backend/internal/repositories"
)

// Unsubscribe detaches a subscription. It may be called any number of times,
// including from inside the update callback. No callback starts after it
// returns.
type Unsubscribe func()

// SubscribeOptions controls how a subscription reacts to load failures.
// With zero Retries a failed load ends the stream immediately.
type SubscribeOptions struct {
	Retries int
	Backoff time.Duration
}

// MessageChannel is the append-only message log of chat sessions plus live
// delivery of that log to subscribers.
type MessageChannel struct {
	repo      repositories.ChatRepository
	codec     MessageCodec
	hub       *Hub
	timeout   time.Duration
	subscribe SubscribeOptions
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewMessageChannel(repo repositories.ChatRepository, codec MessageCodec, hub *Hub, timeout time.Duration, opts SubscribeOptions, logger *slog.Logger, m *metrics.Metrics) *MessageChannel {
	if logger == nil {
		logger = slog.Default()
	}
	if hub == nil {
		hub = NewHub()
	}
	return &MessageChannel{
		repo:      repo,
		codec:     codec,
		hub:       hub,
		timeout:   timeout,
		subscribe: opts,
		logger:    logger.With("component", "message_channel"),
		metrics:   m,
	}
}

// Send appends a message from senderID to chatID and returns its id. Blank
// text is ignored and yields an empty id.
func (c *MessageChannel) Send(ctx context.Context, chatID, senderID, text, msgType string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	session, err := c.repo.GetSession(ctx, chatID)
	if err != nil {
		return "", err
	}
	if !session.HasParticipant(senderID) {
		return "", apperrors.ErrNotParticipant
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if msgType == "" {
		msgType = models.MessageTypeText
	}

	body, encoding := c.codec.Encode(text)
	msg := &models.Message{
		ChatID:   chatID,
		SenderID: senderID,
		Body:     body,
		Encoding: encoding,
		Type:     msgType,
	}
	if err := c.repo.AppendMessage(ctx, msg); err != nil {
		return "", err
	}

	c.metrics.MessageSent()
	c.hub.Publish(chatID)
	c.logger.DebugContext(ctx, "message appended", "chat_id", chatID, "message_id", msg.ID, "seq", msg.Seq)
	return msg.ID, nil
}

// Messages returns the decoded, ordered log of chatID.
func (c *MessageChannel) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	msgs, err := c.repo.ListMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].Body = c.codec.Decode(msgs[i].Body, msgs[i].Encoding)
	}
	return msgs, nil
}

// MarkRead marks every message in chatID not sent by readerID as read.
func (c *MessageChannel) MarkRead(ctx context.Context, chatID, readerID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.repo.MarkRead(ctx, chatID, readerID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.hub.Publish(chatID)
	}
	return n, nil
}

// Subscribe streams the full ordered message list of chatID to onUpdate: once
// right away, then after every append. Deliveries run on a goroutine owned by
// the subscription, so Send never waits for subscribers. If the log cannot be
// loaded the subscription delivers an empty list once and stops.
//
// The stream ends when the returned Unsubscribe is called or ctx is done.
func (c *MessageChannel) Subscribe(ctx context.Context, chatID string, onUpdate func([]models.Message)) (Unsubscribe, error) {
	if chatID == "" {
		return nil, apperrors.InvalidArgument("chat id is required")
	}
	if onUpdate == nil {
		return nil, apperrors.InvalidArgument("update callback is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		chatID:   chatID,
		hub:      c.hub,
		entry:    c.hub.register(chatID),
		cancel:   cancel,
		onUpdate: onUpdate,
		metrics:  c.metrics,
	}
	c.metrics.SubscriptionOpened()

	go c.run(ctx, sub)
	return sub.close, nil
}

func (c *MessageChannel) run(ctx context.Context, sub *subscription) {
	defer sub.release()

	if !c.deliver(ctx, sub) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.entry.notify:
			if !c.deliver(ctx, sub) {
				return
			}
		}
	}
}

// deliver loads and hands one snapshot to the subscriber. It reports false
// once the subscription should stop.
func (c *MessageChannel) deliver(ctx context.Context, sub *subscription) bool {
	msgs, err := c.loadWithRetry(ctx, sub.chatID)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		c.logger.Warn("subscription load failed, closing stream", "chat_id", sub.chatID, "error", err)
		sub.emit([]models.Message{})
		return false
	}
	return sub.emit(msgs)
}

func (c *MessageChannel) loadWithRetry(ctx context.Context, chatID string) ([]models.Message, error) {
	backoff := c.subscribe.Backoff
	for attempt := 0; ; attempt++ {
		msgs, err := c.Messages(ctx, chatID)
		if err == nil || attempt >= c.subscribe.Retries || ctx.Err() != nil {
			return msgs, err
		}
		c.logger.Debug("retrying subscription load", "chat_id", chatID, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

type subscription struct {
	chatID   string
	hub      *Hub
	entry    *hubSubscriber
	cancel   context.CancelFunc
	onUpdate func([]models.Message)
	metrics  *metrics.Metrics

	// mu is held from the closed check through the callback.
	mu          sync.Mutex
	inCallback  atomic.Bool
	closed      atomic.Bool
	closeOnce   sync.Once
	releaseOnce sync.Once
}

// emit hands msgs to the callback unless the subscription has been closed.
func (s *subscription) emit(msgs []models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.inCallback.Store(true)
	defer s.inCallback.Store(false)
	s.onUpdate(msgs)
	return true
}

// close is the Unsubscribe handle.
func (s *subscription) close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		// Wait out an emit that passed its closed check. Skipped when the
		// callback itself is unsubscribing, since it holds mu.
		if !s.inCallback.Load() {
			s.mu.Lock()
			s.mu.Unlock()
		}
		s.release()
	})
}

// release detaches from the hub; reached from close and from the stream
// goroutine ending on its own.
func (s *subscription) release() {
	s.releaseOnce.Do(func() {
		s.hub.unregister(s.chatID, s.entry)
		s.metrics.SubscriptionClosed()
	})
}
