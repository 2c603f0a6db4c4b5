// Package match implements the TCP presence service the game dials right
// after login. The protocol is a sequence of backslash-delimited messages:
// the server opens with a challenge, the client answers with a proof
// derived from its login token, and a short-lived session key gates the
// profile operations that follow.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/dreamlink/dreamlinkd/internal/crypto"
	"github.com/dreamlink/dreamlinkd/internal/model"
	"github.com/dreamlink/dreamlinkd/internal/session"
	"github.com/dreamlink/dreamlinkd/internal/store"
	"github.com/dreamlink/dreamlinkd/internal/wire"
)

// Error codes sent in the err field of an error message.
const (
	ErrInternal        = 0x100
	ErrInvalidToken    = 0x200
	ErrInvalidSession  = 0x201
	ErrInvalidResponse = 0x202
	ErrProfileFailure  = 0x203
)

type operationFunc func(ctx context.Context, c *Conn, req wire.Fields) (wire.Fields, error)

// Handler processes decoded presence messages. It is stateless across
// connections; all per-connection state lives in Conn.
type Handler struct {
	users      store.UserRepository
	sessions   session.Store
	operations map[string]operationFunc
}

// NewHandler creates a presence handler backed by the given stores.
func NewHandler(users store.UserRepository, sessions session.Store) *Handler {
	h := &Handler{
		users:    users,
		sessions: sessions,
	}
	h.operations = map[string]operationFunc{
		"login":      h.handleLogin,
		"getprofile": h.handleGetProfile,
		"updatepro":  h.handleUpdateProfile,
		"status":     h.handleStatus,
		"logout":     h.handleLogout,
		"ka":         h.handleKeepAlive,
	}
	return h
}

// ChallengeMessage is the first message on a fresh connection.
func (h *Handler) ChallengeMessage(c *Conn) wire.Fields {
	return wire.Fields{
		{Name: "lc", Value: "1"},
		{Name: "challenge", Value: c.serverChallenge},
		{Name: "id", Value: "1"},
	}
}

// HandleMessage dispatches a raw message on the first field's name and
// returns the reply, if any. A fatal reply means the connection must be
// closed after it is sent.
func (h *Handler) HandleMessage(ctx context.Context, c *Conn, data []byte) (reply wire.Fields, fatal bool) {
	req, err := wire.EscForm{}.Decode(data)
	if err != nil {
		slog.Warn("malformed presence message", "conn", c.id, "err", err)
		return internalError(), true
	}

	op := req[0].Name
	fn, ok := h.operations[op]
	if !ok {
		slog.Warn("unknown presence operation", "conn", c.id, "op", op)
		return internalError(), true
	}

	reply, err = fn(ctx, c, req)
	if err != nil {
		slog.Error("presence operation failed", "conn", c.id, "op", op, "err", err)
		return internalError(), true
	}
	return reply, false
}

func (h *Handler) handleLogin(ctx context.Context, c *Conn, req wire.Fields) (wire.Fields, error) {
	response, ok1 := req.Lookup("response")
	clientChallenge, ok2 := req.Lookup("challenge")
	token, ok3 := req.Lookup("authtoken")
	seqValue, ok4 := req.Lookup("id")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, fmt.Errorf("login request is missing required fields")
	}
	seq, err := strconv.Atoi(seqValue)
	if err != nil {
		return nil, fmt.Errorf("login sequence id %q: %w", seqValue, err)
	}

	s, err := h.sessions.Get(ctx, token, session.ServiceMatch)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return errorMessage(ErrInvalidToken, "Invalid partner token.", false, seq), nil
	}

	expected := crypto.LoginProof(s.ChallengeHash, token, clientChallenge, c.serverChallenge)
	if response != expected {
		return errorMessage(ErrInvalidResponse, "Invalid response.", false, seq), nil
	}

	// The token is single use: a second login with it must not get past
	// the check above.
	if err := h.sessions.Remove(ctx, token); err != nil {
		return nil, err
	}

	user, err := h.users.GetUser(ctx, s.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("session user %q no longer exists", s.UserID)
	}

	profile, err := h.resolveProfile(ctx, user, s.Branch)
	if err != nil {
		slog.Error("profile creation failed", "user", user.RedactedID(), "branch", s.Branch, "err", err)
		return errorMessage(ErrProfileFailure, "Profile creation failed due to an error.", false, seq), nil
	}

	c.userID = user.ID
	c.branch = s.Branch
	c.profile = profile
	c.sessionKey = rand.Int32N(math.MaxInt32)

	slog.Info("presence login", "conn", c.id, "user", user.RedactedID(), "branch", s.Branch, "profile", profile.ID)
	proof := crypto.LoginProof(s.ChallengeHash, token, c.serverChallenge, clientChallenge)
	return wire.Fields{
		{Name: "lc", Value: "2"},
		{Name: "userid", Value: user.ID},
		{Name: "profileid", Value: strconv.FormatInt(int64(profile.ID), 10)},
		{Name: "proof", Value: proof},
		{Name: "sesskey", Value: strconv.FormatInt(int64(c.sessionKey), 10)},
		{Name: "id", Value: strconv.Itoa(seq)},
	}, nil
}

// resolveProfile fetches the user's profile for the branch, creating and
// persisting one on first login. A pending profile id override is applied
// and cleared here, so it takes effect exactly once.
func (h *Handler) resolveProfile(ctx context.Context, user *model.User, branch string) (*model.GameProfile, error) {
	profile := user.Profile(branch)
	dirty := false

	if profile == nil {
		profile = &model.GameProfile{ID: rand.Int32N(math.MaxInt32)}
		user.SetProfile(branch, profile)
		dirty = true
	}
	if user.ProfileIDOverride != 0 {
		profile.ID = user.ProfileIDOverride
		user.ProfileIDOverride = 0
		dirty = true
	}

	if dirty {
		if err := h.users.PutUser(ctx, user); err != nil {
			return nil, err
		}
	}
	return profile, nil
}

func (h *Handler) handleGetProfile(ctx context.Context, c *Conn, req wire.Fields) (wire.Fields, error) {
	key, seq, err := requireSessionKey(req, true)
	if err != nil {
		return nil, err
	}
	if msg := validateSessionKey(c, key, seq); msg != nil {
		return msg, nil
	}

	reply := wire.Fields{
		{Name: "pi", Value: ""},
		{Name: "profileid", Value: strconv.FormatInt(int64(c.profile.ID), 10)},
	}
	reply = appendPresent(reply, "firstname", c.profile.FirstName)
	reply = appendPresent(reply, "lastname", c.profile.LastName)
	reply = appendPresent(reply, "aim", c.profile.AimName)
	reply = appendPresent(reply, "zipcode", c.profile.ZipCode)
	reply = append(reply,
		wire.Field{Name: "sig", Value: "signature"},
		wire.Field{Name: "id", Value: strconv.Itoa(seq)},
	)
	return reply, nil
}

func (h *Handler) handleUpdateProfile(ctx context.Context, c *Conn, req wire.Fields) (wire.Fields, error) {
	key, _, err := requireSessionKey(req, false)
	if err != nil {
		return nil, err
	}
	if msg := validateSessionKey(c, key, 0); msg != nil {
		return msg, nil
	}

	changed := applyField(req, "firstname", &c.profile.FirstName)
	changed = applyField(req, "lastname", &c.profile.LastName) || changed
	changed = applyField(req, "aim", &c.profile.AimName) || changed
	changed = applyField(req, "zipcode", &c.profile.ZipCode) || changed
	if !changed {
		return nil, nil
	}

	user, err := h.users.GetUser(ctx, c.userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %q no longer exists", c.userID)
	}
	user.SetProfile(c.branch, c.profile)
	if err := h.users.PutUser(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("profile updated", "conn", c.id, "profile", c.profile.ID)
	return nil, nil
}

func (h *Handler) handleStatus(ctx context.Context, c *Conn, req wire.Fields) (wire.Fields, error) {
	key, _, err := requireSessionKey(req, false)
	if err != nil {
		return nil, err
	}
	return validateSessionKey(c, key, 0), nil
}

func (h *Handler) handleLogout(ctx context.Context, c *Conn, req wire.Fields) (wire.Fields, error) {
	key, _ := strconv.Atoi(req.Get("sesskey"))
	if msg := validateSessionKey(c, int32(key), 0); msg != nil {
		return msg, nil
	}
	c.sessionKey = -1
	return nil, nil
}

func (h *Handler) handleKeepAlive(ctx context.Context, c *Conn, req wire.Fields) (wire.Fields, error) {
	return wire.Fields{{Name: "ka", Value: ""}}, nil
}

// requireSessionKey extracts sesskey and, when wantSeq is set, the id field.
// Both are mandatory in the messages that carry them.
func requireSessionKey(req wire.Fields, wantSeq bool) (int32, int, error) {
	keyValue, ok := req.Lookup("sesskey")
	if !ok {
		return 0, 0, fmt.Errorf("%s request is missing sesskey", req[0].Name)
	}
	key, err := strconv.Atoi(keyValue)
	if err != nil {
		return 0, 0, fmt.Errorf("session key %q: %w", keyValue, err)
	}

	seq := 0
	if wantSeq {
		seqValue, ok := req.Lookup("id")
		if !ok {
			return 0, 0, fmt.Errorf("%s request is missing id", req[0].Name)
		}
		if seq, err = strconv.Atoi(seqValue); err != nil {
			return 0, 0, fmt.Errorf("sequence id %q: %w", seqValue, err)
		}
	}
	return int32(key), seq, nil
}

// validateSessionKey returns an error message when the key does not match
// the one handed out at login, or nil when it does.
func validateSessionKey(c *Conn, key int32, seq int) wire.Fields {
	if key < 0 || c.sessionKey != key {
		return errorMessage(ErrInvalidSession, "Invalid session key.", false, seq)
	}
	return nil
}

func appendPresent(fields wire.Fields, name, value string) wire.Fields {
	if value == "" {
		return fields
	}
	return append(fields, wire.Field{Name: name, Value: value})
}

// applyField overwrites dst when the request carries a different value for
// the field. Reports whether dst changed.
func applyField(req wire.Fields, name string, dst *string) bool {
	value, ok := req.Lookup(name)
	if !ok || value == *dst {
		return false
	}
	*dst = value
	return true
}

func errorMessage(code int, msg string, fatal bool, seq int) wire.Fields {
	fatalValue := "0"
	if fatal {
		fatalValue = "1"
	}
	return wire.Fields{
		{Name: "error", Value: ""},
		{Name: "err", Value: strconv.Itoa(code)},
		{Name: "errmsg", Value: msg},
		{Name: "fatal", Value: fatalValue},
		{Name: "id", Value: strconv.Itoa(seq)},
	}
}

func internalError() wire.Fields {
	return errorMessage(ErrInternal, "An internal error occured on the server.", true, 0)
}
