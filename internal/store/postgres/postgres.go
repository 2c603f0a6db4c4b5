// Package postgres is the durable store implementation backed by pgx.
// Nested content is stored as jsonb, raw save blobs as bytea.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreamlink/dreamlinkd/internal/model"
	"github.com/dreamlink/dreamlinkd/internal/store"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

var (
	_ store.UserRepository   = (*Store)(nil)
	_ store.PlayerRepository = (*Store)(nil)
)

// GetUser returns nil, nil if the user does not exist.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	var profiles []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, secret, profiles, profile_id_override FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Secret, &profiles, &user.ProfileIDOverride)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user %q: %w", id, err)
	}
	if err := json.Unmarshal(profiles, &user.Profiles); err != nil {
		return nil, fmt.Errorf("decoding profiles for user %q: %w", id, err)
	}
	return &user, nil
}

// PutUser upserts the user row.
func (s *Store) PutUser(ctx context.Context, user *model.User) error {
	profiles, err := json.Marshal(user.Profiles)
	if err != nil {
		return fmt.Errorf("encoding profiles for user %q: %w", user.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO users (id, secret, profiles, profile_id_override)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET secret = $2, profiles = $3, profile_id_override = $4, updated_at = now()`,
		user.ID, user.Secret, profiles, user.ProfileIDOverride,
	)
	if err != nil {
		return fmt.Errorf("storing user %q: %w", user.ID, err)
	}
	return nil
}

func (s *Store) UserExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking user %q: %w", id, err)
	}
	return exists, nil
}

// GetPlayer returns nil, nil if the player does not exist.
func (s *Store) GetPlayer(ctx context.Context, gameSyncID string) (*model.Player, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM players WHERE game_sync_id = $1`, gameSyncID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying player %q: %w", gameSyncID, err)
	}
	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, fmt.Errorf("decoding player %q: %w", gameSyncID, err)
	}
	return &player, nil
}

// PutPlayer upserts the player row.
func (s *Store) PutPlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("encoding player %q: %w", player.GameSyncID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO players (game_sync_id, data)
		 VALUES ($1, $2)
		 ON CONFLICT (game_sync_id) DO UPDATE SET data = $2, updated_at = now()`,
		player.GameSyncID, data,
	)
	if err != nil {
		return fmt.Errorf("storing player %q: %w", player.GameSyncID, err)
	}
	return nil
}

func (s *Store) PlayerExists(ctx context.Context, gameSyncID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM players WHERE game_sync_id = $1)`, gameSyncID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking player %q: %w", gameSyncID, err)
	}
	return exists, nil
}

// PutSaveData upserts the raw save blob for a player.
func (s *Store) PutSaveData(ctx context.Context, gameSyncID string, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO save_data (game_sync_id, data)
		 VALUES ($1, $2)
		 ON CONFLICT (game_sync_id) DO UPDATE SET data = $2, updated_at = now()`,
		gameSyncID, data,
	)
	if err != nil {
		return fmt.Errorf("storing save data for %q: %w", gameSyncID, err)
	}
	return nil
}

// GetSaveData returns nil, nil if no blob is stored.
func (s *Store) GetSaveData(ctx context.Context, gameSyncID string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM save_data WHERE game_sync_id = $1`, gameSyncID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying save data for %q: %w", gameSyncID, err)
	}
	return data, nil
}
