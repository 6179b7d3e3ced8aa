package arena

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Room is one isolated game session. All mutation of players, roundState and
// timerSeconds is serialized by mu: inbound session commands and the room's
// own tickers take the same lock, and rooms share nothing with each other.
type Room struct {
	code  string
	solo  bool
	clock clockwork.Clock
	sink  EventSink

	// scheduleRestart is injected by the Registry so the restart callback
	// can re-check room existence at fire time.
	scheduleRestart func(code string, delay time.Duration)

	mu           sync.Mutex
	players      map[string]*Player
	roundState   RoundState
	timerSeconds int
	nextJoin     int
	closed       bool

	// quit is closed exactly once when the room is deleted; it stops the
	// broadcast loop and any running round ticker.
	quit chan struct{}
}

func newRoom(code string, solo bool, clock clockwork.Clock, sink EventSink, scheduleRestart func(string, time.Duration)) *Room {
	return &Room{
		code:            code,
		solo:            solo,
		clock:           clock,
		sink:            sink,
		scheduleRestart: scheduleRestart,
		players:         make(map[string]*Player),
		roundState:      RoundIdle,
		timerSeconds:    RoundSeconds,
		quit:            make(chan struct{}),
	}
}

// stop tears the room down: both tickers exit and no scheduled callback will
// mutate the room afterwards. Idempotent.
func (r *Room) stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()
	close(r.quit)
}

// join inserts a new player at a random spawn and returns the session's
// initial view. Joining the first player of an Idle room starts the round.
func (r *Room) join(sessionID, name string) (JoinState, bool) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return JoinState{}, false
	}

	r.nextJoin++
	x, z := randomSpawn()
	p := &Player{
		ID:        sessionID,
		Name:      SanitizeName(name, r.nextJoin),
		X:         x,
		Z:         z,
		Radius:    MinRadius,
		Alive:     true,
		joinOrder: r.nextJoin,
	}
	r.players[sessionID] = p

	started := false
	if len(r.players) == 1 && r.roundState == RoundIdle {
		r.startRoundLocked()
		started = true
	}

	state := JoinState{
		Player:       *p,
		RoomCode:     r.code,
		Players:      r.playersCopyLocked(),
		Timer:        r.timerSeconds,
		RoundActive:  r.roundState == RoundActive,
		Solo:         r.solo,
		StartedRound: started,
	}
	r.mu.Unlock()

	r.sink.PlayerJoined(r.code, state.Player)
	log.Info().Str("room", r.code).Str("player", p.Name).Msg("player joined room")
	return state, true
}

// leave removes a session from the room and reports whether the room is now
// empty. The caller owns deleting empty rooms from the registry.
func (r *Room) leave(sessionID string) (empty, existed bool) {
	r.mu.Lock()
	p, ok := r.players[sessionID]
	if !ok {
		empty := len(r.players) == 0
		r.mu.Unlock()
		return empty, false
	}
	delete(r.players, sessionID)
	empty = len(r.players) == 0
	name := p.Name
	r.mu.Unlock()

	r.sink.PlayerLeft(r.code, sessionID)
	log.Info().Str("room", r.code).Str("player", name).Msg("player left room")
	return empty, true
}

// updatePosition applies a client-reported position/radius after sanity
// checks. Invalid reports are dropped whole: neither field changes.
func (r *Room) updatePosition(sessionID string, x, z, radius float64) {
	if !validPosition(x, z) || !validRadius(radius) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[sessionID]
	if !ok {
		return
	}
	p.X = x
	p.Z = z
	p.Radius = radius
}

// setName stores a sanitized display name for the session.
func (r *Room) setName(sessionID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[sessionID]
	if !ok {
		return
	}
	p.Name = SanitizeName(name, p.joinOrder)
}

// leaderboard returns the current ranked view, truncated to n.
func (r *Room) leaderboard(n int) []LeaderboardEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Leaderboard(r.playersCopyLocked(), n)
}

func (r *Room) info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{
		Code:       r.code,
		Players:    len(r.players),
		RoundState: r.roundState,
		Timer:      r.timerSeconds,
		Solo:       r.solo,
	}
}

// runBroadcast emits a full snapshot of the room at the broadcast cadence
// for as long as the room exists, regardless of round state. Empty rooms
// are skipped; they only exist transiently between creation and first join.
func (r *Room) runBroadcast() {
	ticker := r.clock.NewTicker(BroadcastPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-r.quit:
			return
		case <-ticker.Chan():
			r.broadcastSnapshot()
		}
	}
}

func (r *Room) broadcastSnapshot() {
	r.mu.Lock()
	if r.closed || len(r.players) == 0 {
		r.mu.Unlock()
		return
	}
	players := r.playersCopyLocked()
	code := r.code
	r.mu.Unlock()

	r.sink.Snapshot(code, players)
}

// playersCopyLocked copies the players mapping for handoff outside the lock.
func (r *Room) playersCopyLocked() map[string]Player {
	out := make(map[string]Player, len(r.players))
	for id, p := range r.players {
		out[id] = *p
	}
	return out
}
