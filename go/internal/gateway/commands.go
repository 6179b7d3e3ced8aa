package gateway

import (
	"encoding/json"
	"fmt"
)

// Command is the envelope for every client-to-server message.
type Command struct {
	Type CommandType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// CommandType enumerates the closed client-to-server message catalog.
type CommandType string

const (
	CommandTypeCreateRoom     CommandType = "create_room"
	CommandTypeJoinRoom       CommandType = "join_room"
	CommandTypePlaySolo       CommandType = "play_solo"
	CommandTypeUpdatePosition CommandType = "update_position"
	CommandTypeAbsorbPlayer   CommandType = "absorb_player"
	CommandTypeSetName        CommandType = "set_name"
)

// CreateRoomPayload requests a fresh multiplayer room joined as creator.
type CreateRoomPayload struct {
	Name string `json:"name"`
}

// JoinRoomPayload joins an existing room by code.
type JoinRoomPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// PlaySoloPayload requests a fresh solo room.
type PlaySoloPayload struct {
	Name string `json:"name"`
}

// UpdatePositionPayload is the rate-limited position/radius report.
type UpdatePositionPayload struct {
	X      float64 `json:"x"`
	Z      float64 `json:"z"`
	Radius float64 `json:"radius"`
}

// AbsorbPlayerPayload requests elimination of another session.
type AbsorbPlayerPayload struct {
	VictimID string `json:"victimId"`
}

// SetNamePayload updates the session's display name.
type SetNamePayload struct {
	Name string `json:"name"`
}

// EncodeCommand builds the wire form of a command.
func EncodeCommand(cmdType CommandType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", cmdType, err)
	}
	return json.Marshal(Command{Type: cmdType, Data: data})
}

// DecodeCommand parses a raw inbound frame into its envelope.
func DecodeCommand(raw []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Command{}, fmt.Errorf("unmarshal command envelope: %w", err)
	}
	return cmd, nil
}

func decodeCommandPayload[T any](cmd Command) (T, error) {
	var payload T
	if err := json.Unmarshal(cmd.Data, &payload); err != nil {
		return payload, fmt.Errorf("unmarshal %s payload: %w", cmd.Type, err)
	}
	return payload, nil
}
