// internal/store/store.go
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cabogame/cabo-service/internal/apperrors"
	"github.com/cabogame/cabo-service/internal/models"
)

// Store is the persistence boundary: a key-value view of the process
// database, keyed by room id. The core never assumes in-process state
// survives a crash; LoadAllRooms feeds reconciliation on restart.
type Store interface {
	SaveRoom(ctx context.Context, state *models.RoomState) error
	LoadRoom(ctx context.Context, id uuid.UUID) (*models.RoomState, error)
	DeleteRoom(ctx context.Context, id uuid.UUID) error
	LoadAllRooms(ctx context.Context) ([]*models.RoomState, error)

	SaveUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

const (
	retryAttempts = 3
	retryBaseWait = 100 * time.Millisecond
)

// WithRetry runs op, retrying transient failures with doubling backoff.
// The final failure is wrapped as a StoreUnavailableError so callers
// can distinguish it from game errors; it is never silently dropped.
func WithRetry(ctx context.Context, log *logrus.Logger, op func(context.Context) error) error {
	wait := retryBaseWait
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == retryAttempts {
			break
		}
		if log != nil {
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"error":   err,
			}).Warn("store operation failed, retrying")
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return apperrors.StoreUnavailable(ctx.Err())
		}
		wait *= 2
	}
	return apperrors.StoreUnavailable(err)
}
