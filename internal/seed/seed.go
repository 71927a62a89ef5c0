package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/domain"
	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/service"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/constants"
	commonerrors "github.com/AlibekovAA/lingo-cms/backend/internal/common/errors"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/logger"
	"github.com/AlibekovAA/lingo-cms/backend/internal/observability/metrics"
)

const (
	outcomeCreated = "created"
	outcomeSkipped = "skipped"
	outcomeRace    = "race"
	outcomeError   = "error"
)

type Credentials struct {
	Email    string
	Password string
}

func DefaultCredentials() Credentials {
	return Credentials{
		Email:    constants.DefaultSeedEmail,
		Password: constants.DefaultSeedPassword,
	}
}

// Store is the part of the local API the seeder needs.
type Store interface {
	Find(ctx context.Context, args service.FindArgs) (service.FindResult, error)
	Create(ctx context.Context, args service.CreateArgs) (domain.Document, error)
}

// EnsureAdminSeeded creates one user from creds when the users collection is
// empty and does nothing otherwise. The emptiness check is only a fast path:
// concurrent startups are settled by the unique email index, and losing that
// race is reported as success. log may be nil.
func EnsureAdminSeeded(ctx context.Context, store Store, creds Credentials, log *logger.Logger) error {
	existing, err := store.Find(ctx, service.FindArgs{
		Collection:     constants.UsersCollection,
		Limit:          1,
		OverrideAccess: true,
	})
	if err != nil {
		record(outcomeError)
		return err
	}

	if len(existing.Docs) > 0 {
		record(outcomeSkipped)
		if log != nil {
			log.WithFields(ctx, logger.Fields{
				"collection": constants.UsersCollection,
				"action":     "seed_skipped",
			}).Debug("users collection is not empty, skipping admin seed")
		}
		return nil
	}

	_, err = store.Create(ctx, service.CreateArgs{
		Collection: constants.UsersCollection,
		Data: map[string]any{
			"email":    creds.Email,
			"password": creds.Password,
		},
		OverrideAccess: true,
	})
	if errors.Is(err, commonerrors.ErrDuplicateKey) {
		record(outcomeRace)
		if log != nil {
			log.WithFields(ctx, logger.Fields{
				"email":  creds.Email,
				"action": "seed_race_lost",
			}).Warn("admin user was seeded concurrently by another instance")
		}
		return nil
	}
	if err != nil {
		record(outcomeError)
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	record(outcomeCreated)
	if log != nil {
		log.WithFields(ctx, logger.Fields{
			"email":  creds.Email,
			"action": "seed_created",
		}).Info("admin user seeded")
	}
	return nil
}

func record(outcome string) {
	metrics.SeedRunsTotal.WithLabelValues(outcome).Inc()
}
