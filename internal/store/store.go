// Package store defines the persistence boundaries for users and players.
// Implementations live in the memory and postgres subpackages.
package store

import (
	"context"

	"github.com/dreamlink/dreamlinkd/internal/model"
)

// UserRepository persists accounts. GetUser returns (nil, nil) when the
// user does not exist.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	PutUser(ctx context.Context, user *model.User) error
	UserExists(ctx context.Context, id string) (bool, error)
}

// PlayerRepository persists dream-world players and their raw save blobs.
// GetPlayer and GetSaveData return (nil, nil) when absent.
type PlayerRepository interface {
	GetPlayer(ctx context.Context, gameSyncID string) (*model.Player, error)
	PutPlayer(ctx context.Context, player *model.Player) error
	PlayerExists(ctx context.Context, gameSyncID string) (bool, error)
	PutSaveData(ctx context.Context, gameSyncID string, data []byte) error
	GetSaveData(ctx context.Context, gameSyncID string) ([]byte, error)
}

// Authenticate resolves the user and checks the client-supplied secret.
// Returns (nil, nil) when the user is unknown or the secret is wrong.
func Authenticate(ctx context.Context, users UserRepository, id, secret string) (*model.User, error) {
	user, err := users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Secret != secret {
		return nil, nil
	}
	return user, nil
}
