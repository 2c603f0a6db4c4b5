// Package session tracks the opaque tokens issued at login and consumed by
// the match and content services. Tokens expire on a fixed TTL and are only
// valid for the service they were issued for.
package session

import (
	"context"
	"time"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 30 * time.Minute

// Services tokens are issued for.
const (
	ServiceMatch   = "gamespy"
	ServiceContent = "external"
	ServiceDLS     = "dls1.nintendowifi.net"
)

// Session is the server-side state behind a token. Only the MD5 of the
// login challenge is retained, which is all the proof check needs.
type Session struct {
	UserID        string    `json:"userId"`
	Service       string    `json:"service"`
	Branch        string    `json:"branch"`
	ChallengeHash string    `json:"challengeHash"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Credentials is the token/challenge pair returned to the client at login.
type Credentials struct {
	Token     string
	Challenge string
}

// Store issues and resolves session tokens.
//
// Get returns (nil, nil) when the token is unknown, expired or bound to a
// different service.
type Store interface {
	Issue(ctx context.Context, userID, service, branch string) (Credentials, error)
	Get(ctx context.Context, token, service string) (*Session, error)
	Remove(ctx context.Context, token string) error
}
