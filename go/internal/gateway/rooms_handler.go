package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/sinkhole/go/internal/arena"
)

// RoomsHandler serves read-only room state over HTTP. The WebSocket is the
// only write path.
type RoomsHandler struct {
	registry *arena.Registry
}

// NewRoomsHandler creates a new rooms handler
func NewRoomsHandler(registry *arena.Registry) *RoomsHandler {
	return &RoomsHandler{
		registry: registry,
	}
}

// HandleListRooms handles GET /api/rooms
func (h *RoomsHandler) HandleListRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rooms := h.registry.ActiveRooms()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rooms); err != nil {
		log.Error().Err(err).Msg("failed to encode rooms response")
	}
}

// HandleGetRoomState handles GET /api/rooms/{code}/state
func (h *RoomsHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request, code string) {
	info, err := h.registry.RoomState(code)
	if err != nil {
		h.writeRoomError(w, code, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(info); err != nil {
		log.Error().Err(err).Msg("failed to encode room state response")
	}
}

// HandleGetLeaderboard handles GET /api/rooms/{code}/leaderboard
func (h *RoomsHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request, code string) {
	board, err := h.registry.RoomLeaderboard(code, arena.RoundEndBoardSize)
	if err != nil {
		h.writeRoomError(w, code, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(board); err != nil {
		log.Error().Err(err).Msg("failed to encode leaderboard response")
	}
}

func (h *RoomsHandler) writeRoomError(w http.ResponseWriter, code string, err error) {
	if errors.Is(err, arena.ErrRoomNotFound) {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	log.Error().Err(err).Str("room", code).Msg("room lookup failed")
	http.Error(w, "Failed to get room", http.StatusInternalServerError)
}

// RegisterRoutes registers room HTTP routes
func (h *RoomsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/rooms", h.HandleListRooms)

	// Pattern for per-room subresources - note the trailing slash
	mux.HandleFunc("/api/rooms/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		code, resource, ok := splitRoomPath(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		switch resource {
		case "state":
			h.HandleGetRoomState(w, r, code)
		case "leaderboard":
			h.HandleGetLeaderboard(w, r, code)
		default:
			http.NotFound(w, r)
		}
	})
}

// splitRoomPath parses paths like /api/rooms/{code}/state into the room code
// and the subresource name.
func splitRoomPath(path string) (code, resource string, ok bool) {
	const prefix = "/api/rooms/"
	rest := strings.TrimPrefix(path, prefix)
	if rest == path {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
