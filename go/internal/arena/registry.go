package arena

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrRoomNotFound is returned when a join names a code with no live room.
// It is the only arena error surfaced to clients.
var ErrRoomNotFound = errors.New("room not found")

// errCodespaceExhausted is treated as unreachable given the fallback token
// keyspace; it exists so CreateRoom still terminates if it ever happens.
var errCodespaceExhausted = errors.New("room code space exhausted")

// roomWords is the fixed vocabulary room codes are sampled from.
var roomWords = []string{
	"BLUE", "FISH", "GOLD", "FIRE", "TREE", "STAR", "MOON", "BIRD",
	"FROG", "BEAR", "LION", "WOLF", "HAWK", "JADE", "RUBY", "OPAL",
	"FLUX", "GLOW", "HAZE", "IRIS", "JOLT", "KELP", "LAVA", "MIST",
}

const (
	codeAttempts  = 50
	fallbackLen   = 4
	fallbackChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenAttempts = 50
)

// Registry is the process-wide mapping of room code to Room. It owns room
// creation and deletion and the scheduled restart timers; per-room state is
// serialized by each room's own lock, so the registry mutex is never held
// across room mutation.
type Registry struct {
	clock clockwork.Clock
	sink  EventSink

	mu    sync.Mutex
	rooms map[string]*Room

	// Scheduled restart timers keyed by room code. The fire callback
	// validates that the room still exists, so a cancelled-but-already-
	// queued timer can never resurrect a deleted room.
	restartMu     sync.Mutex
	restartTimers map[string]*restartHandle

	quitOnce sync.Once
	quit     chan struct{}
}

// NewRegistry creates an empty registry. Events flow to sink; all timers are
// created from clock so tests can drive a fake one.
func NewRegistry(clock clockwork.Clock, sink EventSink) *Registry {
	return &Registry{
		clock:         clock,
		sink:          sink,
		rooms:         make(map[string]*Room),
		restartTimers: make(map[string]*restartHandle),
		quit:          make(chan struct{}),
	}
}

// Close tears down every room and cancels all scheduled restarts.
func (reg *Registry) Close() {
	reg.quitOnce.Do(func() { close(reg.quit) })

	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.rooms = make(map[string]*Room)
	reg.mu.Unlock()

	for _, r := range rooms {
		r.stop()
	}

	reg.restartMu.Lock()
	for code, h := range reg.restartTimers {
		h.cancel()
		delete(reg.restartTimers, code)
	}
	reg.restartMu.Unlock()
}

// CreateRoom generates a unique code and registers a fresh room for it. The
// room starts empty and Idle; the creator is expected to join immediately.
func (reg *Registry) CreateRoom(solo bool) (string, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	code, err := reg.generateCodeLocked()
	if err != nil {
		return "", err
	}

	room := newRoom(code, solo, reg.clock, reg.sink, reg.scheduleRestart)
	reg.rooms[code] = room
	go room.runBroadcast()

	log.Info().Str("room", code).Bool("solo", solo).Msg("room created")
	return code, nil
}

// generateCodeLocked samples the word vocabulary with a bounded number of
// retries, then falls back to random alphanumeric tokens to guarantee
// termination. Caller holds reg.mu.
func (reg *Registry) generateCodeLocked() (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := roomWords[rand.Intn(len(roomWords))]
		if _, taken := reg.rooms[code]; !taken {
			return code, nil
		}
	}
	for i := 0; i < tokenAttempts; i++ {
		code := randomToken(fallbackLen)
		if _, taken := reg.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", errCodespaceExhausted
}

func randomToken(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(fallbackChars[rand.Intn(len(fallbackChars))])
	}
	return b.String()
}

// DeleteRoom cancels the room's timers and removes it from the registry.
// Idempotent: deleting an absent code is a no-op.
func (reg *Registry) DeleteRoom(code string) {
	reg.removeRoom(code, false)
}

// deleteIfEmpty removes a room only if it still has no players.
func (reg *Registry) deleteIfEmpty(code string) {
	reg.removeRoom(code, true)
}

// removeRoom unlinks a room from the registry and stops it. The room is
// marked closed while both the registry and the room lock are held, so a
// session either joins before the removal decision or fails afterwards,
// never in between. onlyIfEmpty is the leave path revalidating emptiness:
// a join that lands after the leave emptied the room aborts the cleanup.
func (reg *Registry) removeRoom(code string, onlyIfEmpty bool) {
	reg.mu.Lock()
	room, ok := reg.rooms[code]
	if !ok {
		reg.mu.Unlock()
		return
	}
	room.mu.Lock()
	if onlyIfEmpty && len(room.players) > 0 {
		room.mu.Unlock()
		reg.mu.Unlock()
		return
	}
	room.closed = true
	room.mu.Unlock()
	delete(reg.rooms, code)
	reg.mu.Unlock()

	reg.cancelRestart(code)
	close(room.quit)
	log.Info().Str("room", code).Msg("room deleted")
}

// JoinRoom inserts a session into the named room. Codes compare
// case-insensitively; clients uppercase before sending but the registry
// normalizes anyway. Returns ErrRoomNotFound for unknown codes.
func (reg *Registry) JoinRoom(code, sessionID, name string) (JoinState, error) {
	code = NormalizeCode(code)
	room := reg.lookup(code)
	if room == nil {
		return JoinState{}, fmt.Errorf("join %q: %w", code, ErrRoomNotFound)
	}
	state, ok := room.join(sessionID, name)
	if !ok {
		return JoinState{}, fmt.Errorf("join %q: %w", code, ErrRoomNotFound)
	}
	return state, nil
}

// LeaveRoom removes a session from its room; the last leaver tears the room
// down. Disconnects route here as implicit leaves.
func (reg *Registry) LeaveRoom(code, sessionID string) {
	room := reg.lookup(NormalizeCode(code))
	if room == nil {
		return
	}
	empty, existed := room.leave(sessionID)
	if existed && empty {
		reg.deleteIfEmpty(room.code)
	}
}

// UpdatePosition routes a client-reported position/radius to the room's
// ingress validation. Out-of-bounds reports are dropped silently.
func (reg *Registry) UpdatePosition(code, sessionID string, x, z, radius float64) {
	if room := reg.lookup(NormalizeCode(code)); room != nil {
		room.updatePosition(sessionID, x, z, radius)
	}
}

// SetName stores a sanitized display name for the session.
func (reg *Registry) SetName(code, sessionID, name string) {
	if room := reg.lookup(NormalizeCode(code)); room != nil {
		room.setName(sessionID, name)
	}
}

// Absorb routes an elimination request to the room's arbiter.
func (reg *Registry) Absorb(code, eaterID, victimID string) {
	if room := reg.lookup(NormalizeCode(code)); room != nil {
		room.absorb(eaterID, victimID)
	}
}

// RoomLeaderboard returns the live ranked view for a room, truncated to n.
func (reg *Registry) RoomLeaderboard(code string, n int) ([]LeaderboardEntry, error) {
	room := reg.lookup(NormalizeCode(code))
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room.leaderboard(n), nil
}

// RoomState returns a summary of one room.
func (reg *Registry) RoomState(code string) (RoomInfo, error) {
	room := reg.lookup(NormalizeCode(code))
	if room == nil {
		return RoomInfo{}, ErrRoomNotFound
	}
	return room.info(), nil
}

// ActiveRooms lists all live rooms.
func (reg *Registry) ActiveRooms() []RoomInfo {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.Unlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.info())
	}
	return out
}

// NormalizeCode uppercases and trims a submitted room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (reg *Registry) lookup(code string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rooms[code]
}

// restartHandle pairs a scheduled restart timer with its cancel signal so
// cancelling releases the watcher goroutine immediately.
type restartHandle struct {
	timer    clockwork.Timer
	done     chan struct{}
	doneOnce sync.Once
}

func (h *restartHandle) cancel() {
	stopAndDrainTimer(h.timer)
	h.doneOnce.Do(func() { close(h.done) })
}

// scheduleRestart arms a one-shot restart timer for a room, replacing any
// timer already scheduled for the same code. The callback validates room
// existence when it fires, not just at scheduling time.
func (reg *Registry) scheduleRestart(code string, delay time.Duration) {
	handle := &restartHandle{
		timer: reg.clock.NewTimer(delay),
		done:  make(chan struct{}),
	}
	reg.replaceRestartTimer(code, handle)

	go func() {
		select {
		case <-handle.timer.Chan():
			reg.removeRestartTimer(code, handle)
			if room := reg.lookup(code); room != nil {
				room.restart()
			}
		case <-handle.done:
		case <-reg.quit:
			handle.cancel()
		}
	}()
}

// replaceRestartTimer atomically swaps in a new timer for a code, cancelling
// any existing one so a stale restart can never slip through.
func (reg *Registry) replaceRestartTimer(code string, handle *restartHandle) {
	reg.restartMu.Lock()
	defer reg.restartMu.Unlock()
	if existing, ok := reg.restartTimers[code]; ok {
		existing.cancel()
	}
	reg.restartTimers[code] = handle
}

// removeRestartTimer drops a handle after it fires, but only if it is still
// the current one for the code.
func (reg *Registry) removeRestartTimer(code string, handle *restartHandle) {
	reg.restartMu.Lock()
	defer reg.restartMu.Unlock()
	if reg.restartTimers[code] == handle {
		delete(reg.restartTimers, code)
	}
}

func (reg *Registry) cancelRestart(code string) {
	reg.restartMu.Lock()
	defer reg.restartMu.Unlock()
	if handle, ok := reg.restartTimers[code]; ok {
		handle.cancel()
		delete(reg.restartTimers, code)
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already
// fired, per the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
