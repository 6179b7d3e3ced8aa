package gateway

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/sinkhole/go/internal/arena"
)

// Service routes inbound commands into the room registry and fans room
// events back out over the connection manager. It is the single
// arena.EventSink of the process.
type Service struct {
	registry *arena.Registry
	cm       *ConnectionManager
	relay    *Relay
}

var _ arena.EventSink = (*Service)(nil)

// NewService wires the command router onto the connection manager. relay may
// be nil when no event relay is configured. The registry is attached with
// SetRegistry once it is built around this service as its sink.
func NewService(cm *ConnectionManager, relay *Relay) *Service {
	svc := &Service{
		cm:    cm,
		relay: relay,
	}
	cm.SetRouter(svc)
	return svc
}

// SetRegistry attaches the room registry. Must be called before the first
// upgrade.
func (s *Service) SetRegistry(registry *arena.Registry) {
	s.registry = registry
}

// HandleCommand decodes and dispatches one inbound frame. Malformed frames
// are logged and dropped; the session stays up.
func (s *Service) HandleCommand(conn *Connection, raw []byte) {
	cmd, err := DecodeCommand(raw)
	if err != nil {
		log.Warn().
			Err(err).
			Str("session_id", conn.ID).
			Msg("dropping malformed command")
		return
	}

	switch cmd.Type {
	case CommandTypeCreateRoom:
		payload, err := decodeCommandPayload[CreateRoomPayload](cmd)
		if err != nil {
			s.logBadPayload(conn, cmd.Type, err)
			return
		}
		s.handleCreateRoom(conn, payload.Name, false)

	case CommandTypePlaySolo:
		payload, err := decodeCommandPayload[PlaySoloPayload](cmd)
		if err != nil {
			s.logBadPayload(conn, cmd.Type, err)
			return
		}
		s.handleCreateRoom(conn, payload.Name, true)

	case CommandTypeJoinRoom:
		payload, err := decodeCommandPayload[JoinRoomPayload](cmd)
		if err != nil {
			s.logBadPayload(conn, cmd.Type, err)
			return
		}
		s.handleJoinRoom(conn, payload.Code, payload.Name)

	case CommandTypeUpdatePosition:
		payload, err := decodeCommandPayload[UpdatePositionPayload](cmd)
		if err != nil {
			s.logBadPayload(conn, cmd.Type, err)
			return
		}
		if roomCode := s.cm.RoomCode(conn); roomCode != "" {
			s.registry.UpdatePosition(roomCode, conn.ID, payload.X, payload.Z, payload.Radius)
		}

	case CommandTypeAbsorbPlayer:
		payload, err := decodeCommandPayload[AbsorbPlayerPayload](cmd)
		if err != nil {
			s.logBadPayload(conn, cmd.Type, err)
			return
		}
		if roomCode := s.cm.RoomCode(conn); roomCode != "" {
			s.registry.Absorb(roomCode, conn.ID, payload.VictimID)
		}

	case CommandTypeSetName:
		payload, err := decodeCommandPayload[SetNamePayload](cmd)
		if err != nil {
			s.logBadPayload(conn, cmd.Type, err)
			return
		}
		if roomCode := s.cm.RoomCode(conn); roomCode != "" {
			s.registry.SetName(roomCode, conn.ID, payload.Name)
		}

	default:
		log.Warn().
			Str("session_id", conn.ID).
			Str("command_type", string(cmd.Type)).
			Msg("dropping unknown command type")
	}
}

// HandleDisconnect treats a dropped transport as an implicit leave.
func (s *Service) HandleDisconnect(conn *Connection) {
	roomCode := s.cm.RoomCode(conn)
	if roomCode == "" {
		return
	}
	s.registry.LeaveRoom(roomCode, conn.ID)
	log.Info().
		Str("session_id", conn.ID).
		Str("room", roomCode).
		Msg("session left room on disconnect")
}

func (s *Service) handleCreateRoom(conn *Connection, name string, solo bool) {
	code, err := s.registry.CreateRoom(solo)
	if err != nil {
		log.Error().Err(err).Str("session_id", conn.ID).Msg("room creation failed")
		s.sendRoomError(conn, "Could not create a room. Try again.")
		return
	}

	state, err := s.registry.JoinRoom(code, conn.ID, name)
	if err != nil {
		// The room existed a moment ago; only a concurrent delete can race
		// here.
		log.Error().Err(err).Str("room", code).Msg("creator join failed")
		s.sendRoomError(conn, joinFailureMessage(code))
		return
	}

	s.cm.JoinRoomPool(conn, code)
	s.sendInit(conn, state)

	if !solo {
		s.sendEvent(conn, code, EventTypeRoomCreated, RoomCreatedPayload{Code: code})
	}
	s.publishLifecycle(code, EventTypeRoomCreated, RoomCreatedPayload{Code: code})
}

func (s *Service) handleJoinRoom(conn *Connection, code, name string) {
	state, err := s.registry.JoinRoom(code, conn.ID, name)
	if err != nil {
		if !errors.Is(err, arena.ErrRoomNotFound) {
			log.Error().Err(err).Str("room", code).Msg("join failed")
		}
		s.sendRoomError(conn, joinFailureMessage(arena.NormalizeCode(code)))
		return
	}

	s.cm.JoinRoomPool(conn, state.RoomCode)
	s.sendInit(conn, state)
}

func joinFailureMessage(code string) string {
	return fmt.Sprintf("Room %q not found. Check the code and try again.", code)
}

// sendInit delivers the joiner's init view. When the join itself started the
// round, the in-room round_start broadcast predates the joiner's pool
// membership, so the same announcement is sent to them directly after init.
func (s *Service) sendInit(conn *Connection, state arena.JoinState) {
	s.sendEvent(conn, state.RoomCode, EventTypeInit, InitPayload{
		ID:          state.Player.ID,
		RoomCode:    state.RoomCode,
		Players:     state.Players,
		Timer:       state.Timer,
		RoundActive: state.RoundActive,
		Solo:        state.Solo,
	})
	if state.StartedRound {
		s.sendEvent(conn, state.RoomCode, EventTypeRoundStart, RoundStartPayload{Timer: state.Timer})
	}
}

func (s *Service) sendRoomError(conn *Connection, message string) {
	s.sendEvent(conn, "", EventTypeRoomError, RoomErrorPayload{Message: message})
}

func (s *Service) sendEvent(conn *Connection, roomCode string, eventType EventType, payload any) {
	event, err := NewEvent(roomCode, eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	s.cm.SendToSession(conn.ID, event)
}

func (s *Service) broadcast(roomCode string, eventType EventType, payload any, excludeID string) {
	event, err := NewEvent(roomCode, eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	if excludeID != "" {
		s.cm.BroadcastToRoomExcept(roomCode, excludeID, event)
	} else {
		s.cm.BroadcastToRoom(roomCode, event)
	}
}

func (s *Service) publishLifecycle(roomCode string, eventType EventType, payload any) {
	if s.relay == nil {
		return
	}
	event, err := NewEvent(roomCode, eventType, payload)
	if err != nil {
		return
	}
	s.relay.Publish(event)
}

// arena.EventSink implementation. These run on arena goroutines and must
// only enqueue; they never call back into the registry.

func (s *Service) PlayerJoined(roomCode string, p arena.Player) {
	s.broadcast(roomCode, EventTypePlayerJoined, p, p.ID)
	s.publishLifecycle(roomCode, EventTypePlayerJoined, p)
}

func (s *Service) PlayerLeft(roomCode, sessionID string) {
	s.broadcast(roomCode, EventTypePlayerLeft, PlayerLeftPayload{ID: sessionID}, "")
	s.publishLifecycle(roomCode, EventTypePlayerLeft, PlayerLeftPayload{ID: sessionID})
}

func (s *Service) Snapshot(roomCode string, players map[string]arena.Player) {
	s.broadcast(roomCode, EventTypeGameState, GameStatePayload{Players: players}, "")
}

func (s *Service) RoundStarted(roomCode string, timer int) {
	s.broadcast(roomCode, EventTypeRoundStart, RoundStartPayload{Timer: timer}, "")
	s.publishLifecycle(roomCode, EventTypeRoundStart, RoundStartPayload{Timer: timer})
}

func (s *Service) TimerUpdated(roomCode string, timer int) {
	s.broadcast(roomCode, EventTypeTimerUpdate, TimerUpdatePayload{Timer: timer}, "")
}

func (s *Service) RoundEnded(roomCode string, board []arena.LeaderboardEntry) {
	s.broadcast(roomCode, EventTypeRoundEnd, RoundEndPayload{Leaderboard: board}, "")
	s.publishLifecycle(roomCode, EventTypeRoundEnd, RoundEndPayload{Leaderboard: board})
}

func (s *Service) Respawned(roomCode, sessionID string, x, z float64) {
	event, err := NewEvent(roomCode, EventTypeRespawn, RespawnPayload{X: x, Z: z})
	if err != nil {
		return
	}
	s.cm.SendToSession(sessionID, event)
}

func (s *Service) logBadPayload(conn *Connection, cmdType CommandType, err error) {
	log.Warn().
		Err(err).
		Str("session_id", conn.ID).
		Str("command_type", string(cmdType)).
		Msg("dropping command with bad payload")
}
