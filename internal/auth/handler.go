// Package auth implements the account authority endpoint the client
// contacts first: POST /ac with an obfuscated url-form body. Successful
// logins hand out the session tokens consumed by the other services.
package auth

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dreamlink/dreamlinkd/internal/model"
	"github.com/dreamlink/dreamlinkd/internal/session"
	"github.com/dreamlink/dreamlinkd/internal/store"
	"github.com/dreamlink/dreamlinkd/internal/wire"
)

// Return codes sent in the returncd field.
const (
	ReturnSuccess             = 1
	ReturnRegistrationSuccess = 2
	ReturnInternalServerError = 100
	ReturnBadRequest          = 102
	ReturnUserAlreadyExists   = 104
	ReturnUserNotFound        = 204
)

// Handler serves the /ac endpoint.
type Handler struct {
	users             store.UserRepository
	sessions          session.Store
	allowRegistration bool
	form              wire.Form
	now               func() time.Time
}

// NewHandler creates the auth handler. allowRegistration enables
// registration of unknown well-formed user ids at login.
func NewHandler(users store.UserRepository, sessions session.Store, allowRegistration bool) *Handler {
	return &Handler{
		users:             users,
		sessions:          sessions,
		allowRegistration: allowRegistration,
		form:              wire.Form{Obfuscate: true},
		now:               time.Now,
	}
}

// Register attaches the handler's routes.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/ac", h.handle).Methods(http.MethodPost)
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("auth request body read failed", "err", err, "client", r.RemoteAddr)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	fields, err := h.form.Decode(string(body))
	if err != nil {
		slog.Warn("malformed auth request", "err", err, "client", r.RemoteAddr)
		h.respond(w, ReturnBadRequest, nil)
		return
	}

	action := fields.Get("action")
	switch action {
	case "login":
		h.handleLogin(w, r, fields)
	case "acctcreate":
		h.handleCreateAccount(w, r, fields)
	case "SVCLOC":
		h.handleServiceLocation(w, r, fields)
	default:
		slog.Warn("unknown auth action", "action", action, "client", r.RemoteAddr)
		h.respond(w, ReturnBadRequest, nil)
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request, fields wire.Fields) {
	branch := fields.Get("gsbrcd")
	if branch == "" {
		h.respond(w, ReturnBadRequest, nil)
		return
	}

	userID := fields.Get("userid")
	secret := fields.Get("passwd")

	user, err := store.Authenticate(r.Context(), h.users, userID, secret)
	if err != nil {
		slog.Error("auth lookup failed", "err", err)
		h.respond(w, ReturnInternalServerError, nil)
		return
	}

	if user == nil {
		if !h.allowRegistration {
			h.respond(w, ReturnUserNotFound, nil)
			return
		}
		user, err = h.registerUser(r, userID, secret)
		if err != nil {
			slog.Error("login registration failed", "err", err)
			h.respond(w, ReturnInternalServerError, nil)
			return
		}
		if user == nil {
			h.respond(w, ReturnUserNotFound, nil)
			return
		}
	}

	creds, err := h.sessions.Issue(r.Context(), user.ID, session.ServiceMatch, branch)
	if err != nil {
		slog.Error("session issue failed", "err", err)
		h.respond(w, ReturnInternalServerError, nil)
		return
	}

	slog.Info("user logged in", "user", user.RedactedID(), "branch", branch, "client", r.RemoteAddr)
	h.respond(w, ReturnSuccess, wire.Fields{
		{Name: "locator", Value: "gamespy.com"},
		{Name: "token", Value: creds.Token},
		{Name: "challenge", Value: creds.Challenge},
	})
}

// registerUser creates an account for a well-formed unused id. Returns
// (nil, nil) when the id is unusable.
func (h *Handler) registerUser(r *http.Request, userID, secret string) (*model.User, error) {
	if !model.ValidUserID(userID) {
		return nil, nil
	}
	exists, err := h.users.UserExists(r.Context(), userID)
	if err != nil || exists {
		return nil, err
	}
	user := &model.User{ID: userID, Secret: secret}
	if err := h.users.PutUser(r.Context(), user); err != nil {
		return nil, fmt.Errorf("registering user: %w", err)
	}
	slog.Info("registered user", "user", user.RedactedID(), "client", r.RemoteAddr)
	return user, nil
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request, fields wire.Fields) {
	userID := fields.Get("userid")

	if !model.ValidUserID(userID) {
		h.respond(w, ReturnUserAlreadyExists, nil)
		return
	}
	exists, err := h.users.UserExists(r.Context(), userID)
	if err != nil {
		slog.Error("user lookup failed", "err", err)
		h.respond(w, ReturnInternalServerError, nil)
		return
	}
	if exists {
		h.respond(w, ReturnUserAlreadyExists, nil)
		return
	}

	user := &model.User{ID: userID, Secret: fields.Get("passwd")}
	if err := h.users.PutUser(r.Context(), user); err != nil {
		slog.Error("user registration failed", "err", err)
		h.respond(w, ReturnInternalServerError, nil)
		return
	}

	slog.Info("created user", "user", user.RedactedID(), "client", r.RemoteAddr)
	h.respond(w, ReturnRegistrationSuccess, nil)
}

func (h *Handler) handleServiceLocation(w http.ResponseWriter, r *http.Request, fields wire.Fields) {
	user, err := store.Authenticate(r.Context(), h.users, fields.Get("userid"), fields.Get("passwd"))
	if err != nil {
		slog.Error("auth lookup failed", "err", err)
		h.respond(w, ReturnInternalServerError, nil)
		return
	}
	if user == nil {
		h.respond(w, ReturnUserNotFound, nil)
		return
	}

	var service string
	switch fields.Get("svc") {
	case "0000":
		service = session.ServiceContent
	case "9000":
		service = session.ServiceDLS
	default:
		h.respond(w, ReturnBadRequest, nil)
		return
	}

	creds, err := h.sessions.Issue(r.Context(), user.ID, service, "")
	if err != nil {
		slog.Error("session issue failed", "err", err)
		h.respond(w, ReturnInternalServerError, nil)
		return
	}

	slog.Info("service location resolved", "user", user.RedactedID(), "service", service)
	h.respond(w, ReturnSuccess, wire.Fields{
		{Name: "statusdata", Value: "Y"},
		{Name: "svchost", Value: service},
		{Name: "servicetoken", Value: creds.Token},
	})
}

// respond writes the obfuscated form body. Every response carries the
// return code and a timestamp.
func (h *Handler) respond(w http.ResponseWriter, returnCode int, fields wire.Fields) {
	all := make(wire.Fields, 0, len(fields)+2)
	all = append(all, fields...)
	all = append(all,
		wire.Field{Name: "returncd", Value: fmt.Sprintf("%03d", returnCode)},
		wire.Field{Name: "datetime", Value: h.now().Format("060102150405")},
	)

	w.Header().Set("Content-Type", "text/plain")
	if _, err := io.WriteString(w, h.form.Encode(all)); err != nil {
		slog.Warn("auth response write failed", "err", err)
	}
}
