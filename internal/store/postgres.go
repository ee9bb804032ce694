// internal/store/postgres.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cabogame/cabo-service/internal/apperrors"
	"github.com/cabogame/cabo-service/internal/models"
)

// Postgres persists rooms and users as JSONB blobs keyed by id.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pgx pool against connStr, pings it, and
// ensures the schema exists.
func ConnectPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the underlying pool.
func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rooms (
			id UUID PRIMARY KEY,
			state JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			state JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) SaveRoom(ctx context.Context, state *models.RoomState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO rooms (id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET state = $2, updated_at = now()
	`
	if _, err := p.pool.Exec(ctx, q, state.Room.ID, data); err != nil {
		return fmt.Errorf("upsert room %s: %w", state.Room.ID, err)
	}
	return nil
}

func (p *Postgres) LoadRoom(ctx context.Context, id uuid.UUID) (*models.RoomState, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT state FROM rooms WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", id, err)
	}
	var state models.RoomState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", id, err)
	}
	return &state, nil
}

func (p *Postgres) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) LoadAllRooms(ctx context.Context) ([]*models.RoomState, error) {
	rows, err := p.pool.Query(ctx, `SELECT state FROM rooms`)
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	defer rows.Close()

	var states []*models.RoomState
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var state models.RoomState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("decode room: %w", err)
		}
		states = append(states, &state)
	}
	return states, rows.Err()
}

func (p *Postgres) SaveUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO users (id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET state = $2, updated_at = now()
	`
	if _, err := p.pool.Exec(ctx, q, user.ID, data); err != nil {
		return fmt.Errorf("upsert user %s: %w", user.ID, err)
	}
	return nil
}

func (p *Postgres) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}
