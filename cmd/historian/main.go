// cmd/historian/main.go is the asynchronous action journal consumer: it
// pops action records from the Redis queue the game server pushes to and
// persists them to PostgreSQL in batches.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cabogame/cabo-service/internal/config"
	"github.com/cabogame/cabo-service/internal/history"
)

const (
	defaultBatchSize = 20
	defaultFlushWait = 500 * time.Millisecond
)

// consumer batches queue records and flushes them to the database on
// size or delay, whichever comes first.
type consumer struct {
	rdb   *redis.Client
	pool  *pgxpool.Pool
	queue string
	log   *logrus.Logger

	batchMu sync.Mutex
	batch   []history.ActionRecord
}

func main() {
	log := logrus.New()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Store.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required for the historian")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := ensureSchema(ctx, pool); err != nil {
		log.Fatalf("schema: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis at %s: %v", cfg.Redis.Addr, err)
	}

	c := &consumer{
		rdb:   rdb,
		pool:  pool,
		queue: cfg.Redis.Queue,
		log:   log,
		batch: make([]history.ActionRecord, 0, defaultBatchSize),
	}

	go c.flushLoop(ctx)
	log.Infof("historian consuming %q", c.queue)
	c.readLoop(ctx)

	// Final flush so a clean shutdown loses nothing already popped.
	c.flush(context.Background())
	log.Info("historian stopped")
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS action_history (
			room_id UUID NOT NULL,
			action_index INT NOT NULL,
			user_id UUID,
			action TEXT NOT NULL,
			payload JSONB,
			occurred_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (room_id, action_index)
		)`)
	return err
}

// readLoop pops queue entries with BLPop. The short timeout keeps
// context cancellation responsive.
func (c *consumer) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		res, err := c.rdb.BLPop(ctx, 3*time.Second, c.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			c.log.Warnf("blpop: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var rec history.ActionRecord
		if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
			c.log.Warnf("invalid action record: %v", err)
			continue
		}

		c.batchMu.Lock()
		c.batch = append(c.batch, rec)
		full := len(c.batch) >= defaultBatchSize
		c.batchMu.Unlock()
		if full {
			c.flush(ctx)
		}
	}
}

func (c *consumer) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(defaultFlushWait)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.flush(ctx)
		}
	}
}

// flush writes the pending batch in one round trip. ON CONFLICT keeps
// redelivered records idempotent.
func (c *consumer) flush(ctx context.Context) {
	c.batchMu.Lock()
	if len(c.batch) == 0 {
		c.batchMu.Unlock()
		return
	}
	pending := c.batch
	c.batch = make([]history.ActionRecord, 0, defaultBatchSize)
	c.batchMu.Unlock()

	batch := &pgx.Batch{}
	for _, rec := range pending {
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			payload = []byte("null")
		}
		batch.Queue(`
			INSERT INTO action_history (room_id, action_index, user_id, action, payload, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (room_id, action_index) DO NOTHING`,
			rec.RoomID, rec.Index, rec.UserID, rec.Action, payload,
			time.UnixMilli(rec.Timestamp))
	}
	if err := c.pool.SendBatch(ctx, batch).Close(); err != nil {
		c.log.Errorf("flush of %d records failed: %v", len(pending), err)
		// Put them back so the next flush retries.
		c.batchMu.Lock()
		c.batch = append(pending, c.batch...)
		c.batchMu.Unlock()
		return
	}
	c.log.Debugf("flushed %d action records", len(pending))
}
