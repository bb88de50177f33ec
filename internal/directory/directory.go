// Package directory resolves account ids to participant profiles by probing
// the learner pool first and the instructor pool second.
package directory

import (
	"context"
	"log/slog"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"golang.org/x/sync/errgroup"
)

// resolveConcurrency bounds parallel lookups in ResolveMany.
const resolveConcurrency = 8

// IdentityPool is one source of accounts. Both lookups return an error of
// kind NotFound when the account does not belong to the pool.
type IdentityPool interface {
	Name() string
	FindByID(ctx context.Context, accountID string) (*models.ParticipantProfile, error)
	FindByEmail(ctx context.Context, email string) (*models.ParticipantProfile, error)
}

type Directory struct {
	pools  []IdentityPool
	logger *slog.Logger
}

// New returns a directory that probes primary, then secondary.
func New(primary, secondary IdentityPool, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{pools: []IdentityPool{primary, secondary}, logger: logger}
}

// Resolve returns the first profile found for accountID.
func (d *Directory) Resolve(ctx context.Context, accountID string) (*models.ParticipantProfile, error) {
	return d.probe(ctx, "resolve participant", func(p IdentityPool) (*models.ParticipantProfile, error) {
		return p.FindByID(ctx, accountID)
	})
}

// LookupByEmail finds the account registered under email.
func (d *Directory) LookupByEmail(ctx context.Context, email string) (*models.ParticipantProfile, error) {
	return d.probe(ctx, "lookup participant by email", func(p IdentityPool) (*models.ParticipantProfile, error) {
		return p.FindByEmail(ctx, email)
	})
}

// A pool that fails for reasons other than NotFound does not stop the probe;
// its error is reported only when no later pool has the account.
func (d *Directory) probe(ctx context.Context, op string, find func(IdentityPool) (*models.ParticipantProfile, error)) (*models.ParticipantProfile, error) {
	var firstErr error
	for _, pool := range d.pools {
		if pool == nil {
			continue
		}
		profile, err := find(pool)
		if err == nil {
			return profile, nil
		}
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			continue
		}
		d.logger.WarnContext(ctx, "identity pool lookup failed", "op", op, "pool", pool.Name(), "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, apperrors.NotFound("account not found")
}

// ResolveMany resolves each id, keeping input order and silently dropping
// ids that cannot be resolved.
func (d *Directory) ResolveMany(ctx context.Context, accountIDs []string) []models.ParticipantProfile {
	results := make([]*models.ParticipantProfile, len(accountIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, id := range accountIDs {
		g.Go(func() error {
			profile, err := d.Resolve(gctx, id)
			if err == nil {
				results[i] = profile
			}
			return nil
		})
	}
	_ = g.Wait()

	profiles := make([]models.ParticipantProfile, 0, len(accountIDs))
	for _, p := range results {
		if p != nil {
			profiles = append(profiles, *p)
		}
	}
	return profiles
}
