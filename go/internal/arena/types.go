package arena

import (
	"math/rand"
	"time"
)

// RoundState represents the lifecycle state of a room's round.
type RoundState string

const (
	RoundIdle   RoundState = "IDLE"
	RoundActive RoundState = "ACTIVE"
	RoundEnded  RoundState = "ENDED"
)

// World and round tuning. Positions live on a bounded plane; radii are the
// growth metric reported by clients and clamped server-side.
const (
	// PlaneBound is the sanity bound on reported positions, per axis.
	PlaneBound = 55.0

	// SpawnSpan is the width of the spawn area; spawns are sampled
	// uniformly from (-SpawnSpan/2, SpawnSpan/2) on both axes.
	SpawnSpan = 80.0

	// MinRadius and MaxRadius bound every reported radius. MinRadius is
	// also the spawn radius.
	MinRadius = 1.5
	MaxRadius = 30.0

	// RoundSeconds is the length of one round.
	RoundSeconds = 120

	// AbsorbRatio is the minimum eater/victim radius ratio for an
	// elimination to be granted.
	AbsorbRatio = 1.1

	// Restart delay after a round ends. Rooms with a single player wait
	// longer so others have a chance to join before the next round.
	RestartDelayMulti = 6 * time.Second
	RestartDelaySolo  = 20 * time.Second

	// BroadcastPeriod is the cadence of full state snapshots (20 Hz).
	BroadcastPeriod = 50 * time.Millisecond

	// MaxNameLen caps display names.
	MaxNameLen = 20

	// RoundEndBoardSize and LiveBoardSize are the leaderboard truncation
	// sizes for round-end and live polling views.
	RoundEndBoardSize = 8
	LiveBoardSize     = 5
)

// Player is the authoritative per-room record for one connected session.
// It marshals verbatim into init payloads and game_state snapshots.
type Player struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Z      float64 `json:"z"`
	Radius float64 `json:"radius"`
	Alive  bool    `json:"alive"`

	// joinOrder breaks leaderboard ties; earlier joiners rank first.
	joinOrder int
}

// JoinState is everything a freshly joined session needs to initialize its
// local view: its own player record plus the room's current state.
type JoinState struct {
	Player      Player
	RoomCode    string
	Players     map[string]Player
	Timer       int
	RoundActive bool
	Solo        bool

	// StartedRound reports that this join kicked off the round, so the
	// joiner owes a direct round_start after the init view. The in-room
	// broadcast fires before the joiner is in the pool and misses them.
	StartedRound bool
}

// RoomInfo is a registry-level summary of one room.
type RoomInfo struct {
	Code       string     `json:"code"`
	Players    int        `json:"players"`
	RoundState RoundState `json:"round_state"`
	Timer      int        `json:"timer"`
	Solo       bool       `json:"solo"`
}

// randomSpawn samples a spawn position uniformly over the spawn area.
func randomSpawn() (x, z float64) {
	return (rand.Float64() - 0.5) * SpawnSpan, (rand.Float64() - 0.5) * SpawnSpan
}
