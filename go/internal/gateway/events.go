package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/sinkhole/go/internal/arena"
)

// Event is the envelope for every server-to-client message.
type Event struct {
	ID        string          `json:"id"`        // Event UUID
	RoomCode  string          `json:"room_code"` // Room the event belongs to, if any
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// EventType enumerates the closed server-to-client message catalog.
type EventType string

const (
	EventTypeInit         EventType = "init"
	EventTypeRoomCreated  EventType = "room_created"
	EventTypeRoomError    EventType = "room_error"
	EventTypePlayerJoined EventType = "player_joined"
	EventTypePlayerLeft   EventType = "player_left"
	EventTypeGameState    EventType = "game_state"
	EventTypeRoundStart   EventType = "round_start"
	EventTypeRoundEnd     EventType = "round_end"
	EventTypeTimerUpdate  EventType = "timer_update"
	EventTypeRespawn      EventType = "respawn"
)

// InitPayload is the initial full state delivered to a freshly joined
// session.
type InitPayload struct {
	ID          string                  `json:"id"`
	RoomCode    string                  `json:"roomCode"`
	Players     map[string]arena.Player `json:"players"`
	Timer       int                     `json:"timer"`
	RoundActive bool                    `json:"roundActive"`
	Solo        bool                    `json:"solo"`
}

// RoomCreatedPayload acknowledges room creation with the shareable code.
type RoomCreatedPayload struct {
	Code string `json:"code"`
}

// RoomErrorPayload carries the only user-visible failure: a join against an
// unknown room code.
type RoomErrorPayload struct {
	Message string `json:"message"`
}

// PlayerLeftPayload announces a departed session.
type PlayerLeftPayload struct {
	ID string `json:"id"`
}

// GameStatePayload is the full snapshot broadcast at the room cadence.
type GameStatePayload struct {
	Players map[string]arena.Player `json:"players"`
}

// RoundStartPayload carries the initial countdown of a new round.
type RoundStartPayload struct {
	Timer int `json:"timer"`
}

// RoundEndPayload carries the frozen round-end leaderboard.
type RoundEndPayload struct {
	Leaderboard []arena.LeaderboardEntry `json:"leaderboard"`
}

// TimerUpdatePayload is the 1 Hz countdown tick.
type TimerUpdatePayload struct {
	Timer int `json:"timer"`
}

// RespawnPayload re-anchors an absorbed session at its new spawn.
type RespawnPayload struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// NewEvent builds an envelope around a payload.
func NewEvent(roomCode string, eventType EventType, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		RoomCode:  roomCode,
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// ParseEventPayload decodes an event's data into its payload struct. The
// switch is exhaustive over the catalog; unknown types are an error.
func ParseEventPayload(event *Event) (any, error) {
	switch event.Type {
	case EventTypeInit:
		return decodePayload[InitPayload](event)
	case EventTypeRoomCreated:
		return decodePayload[RoomCreatedPayload](event)
	case EventTypeRoomError:
		return decodePayload[RoomErrorPayload](event)
	case EventTypePlayerJoined:
		return decodePayload[arena.Player](event)
	case EventTypePlayerLeft:
		return decodePayload[PlayerLeftPayload](event)
	case EventTypeGameState:
		return decodePayload[GameStatePayload](event)
	case EventTypeRoundStart:
		return decodePayload[RoundStartPayload](event)
	case EventTypeRoundEnd:
		return decodePayload[RoundEndPayload](event)
	case EventTypeTimerUpdate:
		return decodePayload[TimerUpdatePayload](event)
	case EventTypeRespawn:
		return decodePayload[RespawnPayload](event)
	default:
		return nil, fmt.Errorf("unknown event type: %s", event.Type)
	}
}

func decodePayload[T any](event *Event) (T, error) {
	var payload T
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return payload, fmt.Errorf("unmarshal %s payload: %w", event.Type, err)
	}
	return payload, nil
}
