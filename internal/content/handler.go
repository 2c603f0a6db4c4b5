// Package content implements the dream-world gateway: GET and POST
// /dsio/gw, the endpoint the game polls while a Pokémon is tucked in.
// Requests carry a plain url-form query string and are gated by HTTP basic
// auth plus the service token handed out at service location.
package content

import (
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/dreamlink/dreamlinkd/internal/config"
	"github.com/dreamlink/dreamlinkd/internal/dlc"
	"github.com/dreamlink/dreamlinkd/internal/dream"
	"github.com/dreamlink/dreamlinkd/internal/gsid"
	"github.com/dreamlink/dreamlinkd/internal/model"
	"github.com/dreamlink/dreamlinkd/internal/session"
	"github.com/dreamlink/dreamlinkd/internal/store"
	"github.com/dreamlink/dreamlinkd/internal/wire"
)

// Basic auth credentials baked into the game.
const (
	authUsername = "pokemon"
	authPassword = "2Phfv9MY"
)

// Status codes in the binary response header.
const (
	StatusOK                = 0
	StatusUnauthorized      = 1
	StatusDuplicateID       = 2
	StatusRegistrationError = 3
	StatusSaveDataError     = 4
	StatusNoSaveData        = 5
	StatusInvalidGameSyncID = 8
	StatusWrongGameVersion  = 10
)

// All regions download from the shared content pool.
const contentSerial = "IRAO"

const maxSpecies = 649

// Handler serves the dream-world gateway.
type Handler struct {
	players  store.PlayerRepository
	sessions session.Store
	content  *dlc.List
	form     wire.Form

	allowDreamOverwrite    bool
	allowVersionMismatch   bool
	wakeResetsDreamContent bool

	// sleepyList marks which species may be tucked in, one bit each.
	sleepyList [128]byte
}

// NewHandler creates the gateway handler.
func NewHandler(cfg config.Config, players store.PlayerRepository, sessions session.Store, content *dlc.List) *Handler {
	h := &Handler{
		players:                players,
		sessions:               sessions,
		content:                content,
		allowDreamOverwrite:    cfg.AllowDreamOverwrite,
		allowVersionMismatch:   cfg.AllowVersionMismatch,
		wakeResetsDreamContent: cfg.WakeResetsDreamContent,
	}
	for species := 1; species <= maxSpecies; species++ {
		h.sleepyList[species/8] |= 1 << (species % 8)
	}
	return h
}

// Register attaches the handler's routes.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/dsio/gw", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/dsio/gw", h.handlePost).Methods(http.MethodPost)
}

// request is the decoded query string shared by every gateway operation.
type request struct {
	gameSyncID string
	operation  string
	version    model.GameVersion
}

// authorize checks the basic auth credentials and the service token, then
// decodes the query string. A nil return means the response is written.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) *request {
	username, password, ok := r.BasicAuth()
	if !ok || username != authUsername || password != authPassword {
		slog.Warn("content request with bad credentials", "client", r.RemoteAddr)
		w.WriteHeader(http.StatusUnauthorized)
		return nil
	}

	fields, err := h.form.Decode(r.URL.RawQuery)
	if err != nil {
		slog.Warn("malformed content request", "err", err, "client", r.RemoteAddr)
		w.WriteHeader(http.StatusBadRequest)
		return nil
	}

	operation, ok1 := fields.Lookup("p")
	token, ok2 := fields.Lookup("tok")
	if !ok1 || !ok2 {
		w.WriteHeader(http.StatusBadRequest)
		return nil
	}

	s, err := h.sessions.Get(r.Context(), token, session.ServiceContent)
	if err != nil {
		slog.Error("session lookup failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return nil
	}
	if s == nil {
		slog.Warn("content request with expired token", "client", r.RemoteAddr)
		w.WriteHeader(http.StatusUnauthorized)
		return nil
	}

	rom, _ := strconv.Atoi(fields.Get("rom"))
	lang, _ := strconv.Atoi(fields.Get("langcode"))
	version, _ := model.LookupVersion(rom, lang)

	return &request{
		gameSyncID: parseGameSyncID(fields.Get("gsid")),
		operation:  operation,
		version:    version,
	}
}

// parseGameSyncID turns the numeric gsid query value into its canonical
// string form. Returns "" when the value is unusable.
func parseGameSyncID(value string) string {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 || n > math.MaxInt32 {
		return ""
	}
	return gsid.Stringify(uint32(n))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	req := h.authorize(w, r)
	if req == nil {
		return
	}

	switch req.operation {
	case "sleepily.bitlist":
		h.handleSleepyList(w, r, req)
	case "account.playstatus":
		h.handlePlayStatus(w, r, req)
	case "savedata.download":
		h.handleDownload(w, r, req)
	case "savedata.getbw":
		h.handleMemoryLink(w, r, req)
	default:
		slog.Warn("unknown content operation", "op", req.operation)
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	req := h.authorize(w, r)
	if req == nil {
		return
	}

	switch req.operation {
	case "savedata.upload":
		h.handleUpload(w, r, req)
	case "savedata.download.finish":
		h.handleDownloadFinish(w, r, req)
	case "account.create.upload":
		h.handleCreateAccount(w, r, req)
	case "account.createdata":
		h.handleCreateData(w, r, req)
	default:
		slog.Warn("unknown content operation", "op", req.operation)
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (h *Handler) handleSleepyList(w http.ResponseWriter, r *http.Request, req *request) {
	exists, err := h.players.PlayerExists(r.Context(), req.gameSyncID)
	if err != nil {
		slog.Error("player lookup failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !exists {
		writeStatus(w, StatusUnauthorized)
		return
	}

	writeStatus(w, StatusOK)
	w.Write(h.sleepyList[:])
}

func (h *Handler) handlePlayStatus(w http.ResponseWriter, r *http.Request, req *request) {
	player, err := h.players.GetPlayer(r.Context(), req.gameSyncID)
	if err != nil {
		slog.Error("player lookup failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	// No account yet: the game responds by offering Game Sync setup.
	if player == nil {
		writeStatus(w, StatusInvalidGameSyncID)
		return
	}

	writeStatus(w, StatusOK)
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(player.Status))
	w.Write(buf[:])
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request, req *request) {
	player, err := h.players.GetPlayer(r.Context(), req.gameSyncID)
	if err != nil {
		slog.Error("player lookup failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if player == nil {
		writeStatus(w, StatusUnauthorized)
		return
	}

	slog.Info("player downloading dream content", "player", player.GameSyncID)
	writeStatus(w, StatusOK)

	// An awake player gets the bare status, which lets the game wake the
	// Pokémon without receiving content.
	if player.Status == model.StatusAwake {
		return
	}

	w.Write(dream.EncodePayload(player, h.dlcIndexes(player)))
}

// dlcIndexes resolves the player's selected add-on content to the 1-based
// indexes the save file stores. Unselected or vanished files become 0.
func (h *Handler) dlcIndexes(p *model.Player) dream.DLCIndexes {
	cgearType := "CGEAR"
	if p.Version.IsVersion2() {
		cgearType = "CGEAR2"
	}
	return dream.DLCIndexes{
		Musical: byte(h.content.Index(contentSerial, "MUSICAL", p.Musical)),
		CGear:   byte(h.content.Index(contentSerial, cgearType, p.CGearSkin)),
		Dex:     byte(h.content.Index(contentSerial, "ZUKAN", p.DexSkin)),
	}
}

// handleMemoryLink serves the stored save blob of a first-generation pairing
// so a sequel game can link against it.
func (h *Handler) handleMemoryLink(w http.ResponseWriter, r *http.Request, req *request) {
	if !gsid.Valid(req.gameSyncID) {
		writeStatus(w, StatusInvalidGameSyncID)
		return
	}

	player, err := h.players.GetPlayer(r.Context(), req.gameSyncID)
	if err != nil {
		slog.Error("player lookup failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if player == nil {
		writeStatus(w, StatusInvalidGameSyncID)
		return
	}
	if !player.Version.Known() {
		writeStatus(w, StatusNoSaveData)
		return
	}
	if player.Version.IsVersion2() {
		writeStatus(w, StatusWrongGameVersion)
		return
	}

	save, err := h.players.GetSaveData(r.Context(), req.gameSyncID)
	if err != nil {
		slog.Error("save data lookup failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if save == nil {
		writeStatus(w, StatusNoSaveData)
		return
	}

	slog.Info("serving memory link data", "player", player.GameSyncID)
	writeStatus(w, StatusOK)
	w.Write(save)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, req *request) {
	player, err := h.players.GetPlayer(r.Context(), req.gameSyncID)
	if err != nil {
		slog.Error("player lookup failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if player == nil ||
		(!h.allowDreamOverwrite && player.Status != model.StatusAwake) ||
		(!h.allowVersionMismatch && player.Version.Known() && req.version != player.Version) {
		// The game insists on sending the whole body regardless.
		io.Copy(io.Discard, r.Body)
		writeStatus(w, StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("upload body read failed", "err", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	slog.Info("player uploading save data", "player", player.GameSyncID, "bytes", len(body))
	if err := h.players.PutSaveData(r.Context(), player.GameSyncID, body); err != nil {
		slog.Error("storing save data failed", "err", err)
		writeStatus(w, StatusSaveDataError)
		return
	}

	// Full save files carry the record at a fixed offset; a bare record is
	// accepted too.
	record := body
	if len(body) >= dream.SaveRecordOffset+dream.RecordSize {
		record = body[dream.SaveRecordOffset : dream.SaveRecordOffset+dream.RecordSize]
	}
	dreamer, err := dream.ReadRecord(record)
	if err != nil {
		slog.Warn("rejecting undecodable dreamer record", "player", player.GameSyncID, "err", err)
		writeStatus(w, StatusSaveDataError)
		return
	}

	player.Status = model.StatusSleeping
	player.Version = req.version
	player.Dreamer = dreamer
	if err := h.players.PutPlayer(r.Context(), player); err != nil {
		slog.Error("saving player failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeStatus(w, StatusOK)
}

func (h *Handler) handleDownloadFinish(w http.ResponseWriter, r *http.Request, req *request) {
	player, err := h.players.GetPlayer(r.Context(), req.gameSyncID)
	if err != nil {
		slog.Error("player lookup failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if player == nil {
		writeStatus(w, StatusUnauthorized)
		return
	}

	if h.wakeResetsDreamContent {
		player.ResetDreamContent()
		if err := h.players.PutPlayer(r.Context(), player); err != nil {
			slog.Error("saving player failed", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	slog.Info("player woke up", "player", player.GameSyncID)
	writeStatus(w, StatusOK)
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request, req *request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("create body read failed", "err", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !gsid.Valid(req.gameSyncID) {
		writeStatus(w, StatusInvalidGameSyncID)
		return
	}

	exists, err := h.players.PlayerExists(r.Context(), req.gameSyncID)
	if err != nil {
		slog.Error("player lookup failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if exists {
		writeStatus(w, StatusDuplicateID)
		return
	}

	player := model.NewPlayer(req.gameSyncID, req.version)
	if err := h.players.PutPlayer(r.Context(), player); err != nil {
		slog.Error("registering player failed", "err", err)
		writeStatus(w, StatusRegistrationError)
		return
	}
	if err := h.players.PutSaveData(r.Context(), req.gameSyncID, body); err != nil {
		slog.Error("storing save data failed", "err", err)
		writeStatus(w, StatusSaveDataError)
		return
	}

	slog.Info("registered player", "player", req.gameSyncID, "version", player.Version)
	writeStatus(w, StatusOK)
}

// handleCreateData registers an account from a numeric id sent in the body,
// a quirk of the Japanese releases.
func (h *Handler) handleCreateData(w http.ResponseWriter, r *http.Request, req *request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("create body read failed", "err", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !gsid.Valid(req.gameSyncID) {
		writeStatus(w, StatusInvalidGameSyncID)
		return
	}

	gameSyncID := parseGameSyncID(strings.ReplaceAll(string(body), "\x00", ""))
	if gameSyncID == "" {
		writeStatus(w, StatusInvalidGameSyncID)
		return
	}

	exists, err := h.players.PlayerExists(r.Context(), gameSyncID)
	if err != nil {
		slog.Error("player lookup failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if exists {
		writeStatus(w, StatusDuplicateID)
		return
	}

	// This request carries no version or save data.
	if err := h.players.PutPlayer(r.Context(), model.NewPlayer(gameSyncID, model.GameVersion{})); err != nil {
		slog.Error("registering player failed", "err", err)
		writeStatus(w, StatusRegistrationError)
		return
	}

	slog.Info("registered player", "player", gameSyncID)
	writeStatus(w, StatusOK)
}

// writeStatus writes the 4-byte status code padded to the fixed 128-byte
// header the game expects.
func writeStatus(w io.Writer, code uint32) {
	var buf [128]byte
	binary.LittleEndian.PutUint32(buf[:], code)
	w.Write(buf[:])
}
