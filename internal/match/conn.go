package match

import (
	"github.com/google/uuid"

	"github.com/dreamlink/dreamlinkd/internal/crypto"
	"github.com/dreamlink/dreamlinkd/internal/model"
)

const serverChallengeLength = 10

// Conn is the state of a single presence connection. It is owned by the
// connection's goroutine, so no locking is needed.
type Conn struct {
	id              string
	remoteAddr      string
	serverChallenge string

	// sessionKey is -1 until a successful login.
	sessionKey int32
	userID     string
	branch     string
	profile    *model.GameProfile
}

func newConn(remoteAddr string) *Conn {
	return &Conn{
		id:              uuid.NewString(),
		remoteAddr:      remoteAddr,
		serverChallenge: crypto.Challenge(serverChallengeLength),
		sessionKey:      -1,
	}
}

// LoggedIn reports whether the connection has completed a login.
func (c *Conn) LoggedIn() bool {
	return c.sessionKey >= 0
}
