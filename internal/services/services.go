// Package services implements the connection graph and chat operations on
// top of the repositories and the participant directory.
package services

import (
	"context"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/models"
)

// DefaultTimeout applies when a service is built without a timeout.
const DefaultTimeout = 5 * time.Second

// ParticipantDirectory resolves accounts across the identity pools.
type ParticipantDirectory interface {
	Resolve(ctx context.Context, accountID string) (*models.ParticipantProfile, error)
	ResolveMany(ctx context.Context, accountIDs []string) []models.ParticipantProfile
	LookupByEmail(ctx context.Context, email string) (*models.ParticipantProfile, error)
}

// MessageCodec encodes message bodies for storage and decodes them for display.
type MessageCodec interface {
	Encode(plaintext string) (body, encoding string)
	Decode(body, encoding string) string
}

// withTimeout bounds ctx by d unless the caller already set a deadline.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
