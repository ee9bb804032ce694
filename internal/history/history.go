// internal/history/history.go
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ActionRecord is one applied (or rejected) action, pushed onto a Redis
// list for the historian consumer. Index orders records within a room.
type ActionRecord struct {
	RoomID    uuid.UUID              `json:"room_id"`
	Index     int                    `json:"index"`
	UserID    uuid.UUID              `json:"user_id"`
	Action    string                 `json:"action"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Historian appends action records to a Redis queue. A nil Historian is
// a no-op so game code never has to check for one.
type Historian struct {
	rdb   *redis.Client
	queue string
	log   *logrus.Logger
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int, queue string, log *logrus.Logger) (*Historian, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis at %s: %w", addr, err)
	}
	return &Historian{rdb: rdb, queue: queue, log: log}, nil
}

// NewWithClient wraps an existing client; used by tests with miniredis.
func NewWithClient(rdb *redis.Client, queue string, log *logrus.Logger) *Historian {
	return &Historian{rdb: rdb, queue: queue, log: log}
}

// Record serializes the record and pushes it onto the queue. Failures
// are logged, not returned: the historian is an observer, and a slow or
// absent Redis must never block or fail a game action.
func (h *Historian) Record(rec ActionRecord) {
	if h == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.push(ctx, rec); err != nil && h.log != nil {
			h.log.WithFields(logrus.Fields{
				"room":   rec.RoomID,
				"index":  rec.Index,
				"action": rec.Action,
				"error":  err,
			}).Error("failed to publish action record")
		}
	}()
}

func (h *Historian) push(ctx context.Context, rec ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	if err := h.rdb.RPush(ctx, h.queue, data).Err(); err != nil {
		return fmt.Errorf("rpush to %q: %w", h.queue, err)
	}
	return nil
}

// Close releases the underlying client.
func (h *Historian) Close() error {
	if h == nil || h.rdb == nil {
		return nil
	}
	return h.rdb.Close()
}
