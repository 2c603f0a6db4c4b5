// Package memory is the in-process store implementation used for tests and
// zero-configuration runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dreamlink/dreamlinkd/internal/model"
	"github.com/dreamlink/dreamlinkd/internal/store"
)

// Store keeps users, players and save blobs in maps. Entries are stored as
// deep copies, so callers can keep mutating what they passed in without
// committing anything.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*model.User
	players  map[string]*model.Player
	saveData map[string][]byte
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]*model.User),
		players:  make(map[string]*model.Player),
		saveData: make(map[string][]byte),
	}
}

var (
	_ store.UserRepository   = (*Store)(nil)
	_ store.PlayerRepository = (*Store)(nil)
)

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return copyOf(user)
}

func (s *Store) PutUser(ctx context.Context, user *model.User) error {
	copied, err := copyOf(user)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = copied
	return nil
}

func (s *Store) UserExists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[id]
	return ok, nil
}

func (s *Store) GetPlayer(ctx context.Context, gameSyncID string) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[gameSyncID]
	if !ok {
		return nil, nil
	}
	return copyOf(player)
}

func (s *Store) PutPlayer(ctx context.Context, player *model.Player) error {
	copied, err := copyOf(player)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.GameSyncID] = copied
	return nil
}

func (s *Store) PlayerExists(ctx context.Context, gameSyncID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.players[gameSyncID]
	return ok, nil
}

func (s *Store) PutSaveData(ctx context.Context, gameSyncID string, data []byte) error {
	copied := make([]byte, len(data))
	copy(copied, data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveData[gameSyncID] = copied
	return nil
}

func (s *Store) GetSaveData(ctx context.Context, gameSyncID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.saveData[gameSyncID]
	if !ok {
		return nil, nil
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

// copyOf deep-copies via the type's JSON form, which is also what the
// durable backends store.
func copyOf[T any](v *T) (*T, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("memory: copy: %w", err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("memory: copy: %w", err)
	}
	return out, nil
}
