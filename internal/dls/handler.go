// Package dls implements the download station: POST /download, through
// which the game fetches mystery gifts and the add-on content the player
// picked on the website. The body is an obfuscated url-form.
package dls

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/dreamlink/dreamlinkd/internal/dlc"
	"github.com/dreamlink/dreamlinkd/internal/model"
	"github.com/dreamlink/dreamlinkd/internal/session"
	"github.com/dreamlink/dreamlinkd/internal/wire"
)

// Handler serves the download station endpoint.
type Handler struct {
	sessions session.Store
	content  *dlc.List
	form     wire.Form

	// shuffle controls whether undirected list requests are randomized,
	// the way mystery gift distributions rotate. Tests turn it off.
	shuffle bool
}

// NewHandler creates the download station handler.
func NewHandler(sessions session.Store, content *dlc.List) *Handler {
	return &Handler{
		sessions: sessions,
		content:  content,
		form:     wire.Form{Obfuscate: true},
		shuffle:  true,
	}
}

// Register attaches the handler's routes.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/download", h.handle).Methods(http.MethodPost)
}

// request is the decoded download station form body.
type request struct {
	action string

	// serial is the normalized directory the content is pulled from.
	serial string

	// typ is the content type with its region suffix stripped; empty for
	// the untyped generation-4 pool.
	typ string

	// romSerial is the serial of the requesting cartridge.
	romSerial string

	name  string
	index string
	num   int
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("download request body read failed", "err", err, "client", r.RemoteAddr)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	fields, err := h.form.Decode(string(body))
	if err != nil {
		slog.Warn("malformed download request", "err", err, "client", r.RemoteAddr)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	token, ok1 := fields.Lookup("token")
	action, ok2 := fields.Lookup("action")
	if !ok1 || !ok2 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s, err := h.sessions.Get(r.Context(), token, session.ServiceDLS)
	if err != nil {
		slog.Error("session lookup failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if s == nil {
		slog.Warn("download request with expired token", "client", r.RemoteAddr)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	num, _ := strconv.Atoi(fields.Get("num"))
	req := &request{
		action:    action,
		serial:    normalizeSerial(fields.Get("gamecd")),
		typ:       stripRegion(fields.Get("attr1")),
		romSerial: fields.Get("rhgamecd"),
		name:      fields.Get("contents"),
		index:     fields.Get("attr2"),
		num:       num,
	}

	switch req.action {
	case "list":
		h.handleList(w, req)
	case "contents":
		h.handleContents(w, req)
	case "count":
		io.WriteString(w, "1")
	default:
		slog.Warn("unknown download action", "action", req.action)
		w.WriteHeader(http.StatusBadRequest)
	}
}

// normalizeSerial maps regional serials onto the shared content pools.
func normalizeSerial(serial string) string {
	if len(serial) < 3 {
		return serial
	}
	switch serial[:3] {
	case "IRA":
		return "IRAO"
	case "ADA", "CPU", "IPG":
		return "ADAE"
	}
	return serial
}

// stripRegion removes the region suffix from a content type, e.g.
// "CGEAR_E" becomes "CGEAR".
func stripRegion(typ string) string {
	i := strings.LastIndex(typ, "_")
	if i < 0 {
		return typ
	}
	return typ[:i]
}

func (h *Handler) handleList(w http.ResponseWriter, req *request) {
	entries := h.content.Entries(req.serial, req.typ)

	if req.index != "" {
		// Website-driven requests name the exact slot they want.
		i, err := strconv.Atoi(req.index)
		if err != nil || i < 1 || i > len(entries) {
			io.WriteString(w, "")
			return
		}
		entries = entries[i-1 : i]
	} else if h.shuffle {
		// Gift distributions hand out a random pick.
		rand.Shuffle(len(entries), func(i, j int) {
			entries[i], entries[j] = entries[j], entries[i]
		})
	}

	var b strings.Builder
	for i, entry := range entries {
		if i >= req.num {
			break
		}
		switch {
		case req.typ == "":
			fmt.Fprintf(&b, "%s\t\t\t\t\t%d\r\n", entry.Name, GiftSize4)
		case req.typ == "MYSTERY":
			version, _ := model.LookupSerial(req.romSerial)
			gameFlag := "300000"
			if version.IsVersion2() {
				gameFlag = "F00000"
			}
			fmt.Fprintf(&b, "%s\t\t%s\t%s\t\t%d\r\n", entry.Name, req.typ, gameFlag, GiftSize5)
		default:
			fmt.Fprintf(&b, "%s\t\t%s\t%d\t\t%d\r\n", entry.Name, req.typ, i+1, entry.Size)
		}
	}
	io.WriteString(w, b.String())
}

func (h *Handler) handleContents(w http.ResponseWriter, req *request) {
	entry, ok := h.content.Entry(req.serial, req.typ, req.name)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var data []byte
	var err error
	switch req.typ {
	case "":
		if data, err = h.content.RawContent(entry); err == nil {
			data, err = UniversalGift4(data, DefaultGiftTitle)
		}
	case "MYSTERY":
		if data, err = h.content.RawContent(entry); err == nil {
			data, err = UniversalGift5(data)
		}
	default:
		data, err = h.content.Content(entry)
	}
	if err != nil {
		slog.Error("serving content failed", "serial", req.serial, "type", req.typ, "name", req.name, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	slog.Info("serving content", "serial", req.serial, "type", req.typ, "name", req.name, "bytes", len(data))
	w.Write(data)
}
