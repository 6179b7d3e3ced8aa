package gameclient

import (
	"math"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/sinkhole/go/internal/arena"
	"github.com/mcdev12/sinkhole/go/internal/gateway"
)

const (
	// MoveSpeed is the local player's speed in world units per second.
	MoveSpeed = 7.0

	// MoveClamp keeps the local player inside the playable square. Tighter
	// than the server's ingress bound so honest clients never trip it.
	MoveClamp = 50.0

	// remoteBlend is the per-frame fraction a remote player closes toward
	// its latest server position.
	remoteBlend = 0.3

	// absorbSizeRatio and absorbReachFactor gate client-side absorb
	// detection. Stricter than the server's arbiter so claims it would
	// reject are rarely sent.
	absorbSizeRatio   = 1.2
	absorbReachFactor = 0.85

	// growthFactor scales optimistic growth per absorbed victim;
	// maxLocalRadius caps it below the server's hard ceiling.
	growthFactor   = 0.15
	maxLocalRadius = 28.0

	// absorbCooldown suppresses repeat claims against the same victim while
	// their respawn is still in flight.
	absorbCooldown = 3 * time.Second

	// positionSendInterval rate-limits outbound position reports to the
	// server's own broadcast cadence.
	positionSendInterval = 50 * time.Millisecond
)

// Input is one frame of movement intent. Magnitudes above 1 are normalized
// so diagonal movement is no faster.
type Input struct {
	X float64
	Z float64
}

// Actor is the rendered state of one player.
type Actor struct {
	ID     string
	Name   string
	X      float64
	Z      float64
	Radius float64
}

// remoteActor tracks a remote player's rendered position and its latest
// server position.
type remoteActor struct {
	Actor
	targetX float64
	targetZ float64
}

// CommandSender is the outbound half of the transport World drives.
type CommandSender interface {
	SendPosition(x, z, radius float64) error
	SendAbsorb(victimID string) error
}

// EventSource is the inbound half: ordered discrete events plus a
// latest-wins snapshot slot.
type EventSource interface {
	Events() <-chan *gateway.Event
	TakeSnapshot() *gateway.GameStatePayload
}

// Options tunes World behavior.
type Options struct {
	// IgnoreRoundEvents leaves timer and round state untouched by
	// round_start/round_end/timer_update, for frontends that run their own
	// round presentation.
	IgnoreRoundEvents bool
}

// World reconciles the local simulation with server state. The local player
// moves immediately on input; remote players smooth toward snapshots;
// absorbs are applied optimistically and claimed to the server, which stays
// authoritative via respawn events.
//
// World is not goroutine-safe: call Step and the accessors from the render
// loop only.
type World struct {
	source EventSource
	sender CommandSender
	clock  clockwork.Clock
	opts   Options

	joined      bool
	id          string
	roomCode    string
	solo        bool
	timer       int
	roundActive bool

	me      Actor
	remotes map[string]*remoteActor

	// resyncSelf makes the next snapshot overwrite the local position,
	// used after a round restart respawns everyone server-side.
	resyncSelf bool

	cooldowns map[string]time.Time
	lastSend  time.Time

	lastRoundBoard []arena.LeaderboardEntry
}

// NewWorld builds a world over a transport. Pass clockwork.NewRealClock()
// outside tests.
func NewWorld(source EventSource, sender CommandSender, clock clockwork.Clock, opts Options) *World {
	return &World{
		source:    source,
		sender:    sender,
		clock:     clock,
		opts:      opts,
		remotes:   make(map[string]*remoteActor),
		cooldowns: make(map[string]time.Time),
	}
}

// Step advances the world by dt seconds: drains server traffic, integrates
// input, smooths remotes, detects absorbs, and reports position.
func (w *World) Step(dt float64, input Input) {
	w.drainEvents()
	w.applySnapshot()

	if !w.joined {
		return
	}

	w.moveLocal(dt, input)
	w.blendRemotes()
	w.detectAbsorbs()
	w.maybeSendPosition()
}

func (w *World) drainEvents() {
	for {
		select {
		case event, ok := <-w.source.Events():
			if !ok {
				return
			}
			w.applyEvent(event)
		default:
			return
		}
	}
}

func (w *World) applyEvent(event *gateway.Event) {
	payload, err := gateway.ParseEventPayload(event)
	if err != nil {
		return
	}

	switch p := payload.(type) {
	case gateway.InitPayload:
		w.applyInit(p)

	case arena.Player:
		if p.ID != w.id {
			w.upsertRemote(p, true)
		}

	case gateway.PlayerLeftPayload:
		delete(w.remotes, p.ID)
		delete(w.cooldowns, p.ID)

	case gateway.RoundStartPayload:
		if w.opts.IgnoreRoundEvents {
			return
		}
		w.roundActive = true
		w.timer = p.Timer
		w.resyncSelf = true

	case gateway.RoundEndPayload:
		if w.opts.IgnoreRoundEvents {
			return
		}
		w.roundActive = false
		w.lastRoundBoard = p.Leaderboard

	case gateway.TimerUpdatePayload:
		if w.opts.IgnoreRoundEvents {
			return
		}
		w.timer = p.Timer

	case gateway.RespawnPayload:
		w.me.X = p.X
		w.me.Z = p.Z
		w.me.Radius = arena.MinRadius
	}
}

func (w *World) applyInit(p gateway.InitPayload) {
	w.joined = true
	w.id = p.ID
	w.roomCode = p.RoomCode
	w.solo = p.Solo
	w.timer = p.Timer
	w.roundActive = p.RoundActive
	w.remotes = make(map[string]*remoteActor)

	for id, player := range p.Players {
		if id == p.ID {
			w.me = Actor{
				ID:     player.ID,
				Name:   player.Name,
				X:      player.X,
				Z:      player.Z,
				Radius: player.Radius,
			}
			continue
		}
		w.upsertRemote(player, true)
	}
}

func (w *World) applySnapshot() {
	snapshot := w.source.TakeSnapshot()
	if snapshot == nil || !w.joined {
		return
	}

	seen := make(map[string]bool, len(snapshot.Players))
	for id, player := range snapshot.Players {
		seen[id] = true
		if id == w.id {
			// The server echoes our own reports back; only a round restart
			// resync takes its word over the local simulation.
			if w.resyncSelf {
				w.me.X = player.X
				w.me.Z = player.Z
				w.me.Radius = player.Radius
				w.resyncSelf = false
			}
			w.me.Name = player.Name
			continue
		}
		w.upsertRemote(player, false)
	}

	// Snapshots are complete, so anything absent has left even if the
	// player_left event was dropped.
	for id := range w.remotes {
		if !seen[id] {
			delete(w.remotes, id)
			delete(w.cooldowns, id)
		}
	}
}

// upsertRemote updates a remote player's server target. snap places the
// rendered position directly on the target, for first sight of a player.
func (w *World) upsertRemote(player arena.Player, snap bool) {
	remote, ok := w.remotes[player.ID]
	if !ok {
		remote = &remoteActor{}
		remote.ID = player.ID
		w.remotes[player.ID] = remote
		snap = true
	}
	remote.Name = player.Name
	remote.Radius = player.Radius
	remote.targetX = player.X
	remote.targetZ = player.Z
	if snap {
		remote.X = player.X
		remote.Z = player.Z
	}
}

func (w *World) moveLocal(dt float64, input Input) {
	if !w.roundActive && !w.opts.IgnoreRoundEvents {
		return
	}

	dx, dz := input.X, input.Z
	if mag := math.Hypot(dx, dz); mag > 1 {
		dx /= mag
		dz /= mag
	}

	w.me.X = clamp(w.me.X+dx*MoveSpeed*dt, -MoveClamp, MoveClamp)
	w.me.Z = clamp(w.me.Z+dz*MoveSpeed*dt, -MoveClamp, MoveClamp)
}

func (w *World) blendRemotes() {
	for _, remote := range w.remotes {
		remote.X += (remote.targetX - remote.X) * remoteBlend
		remote.Z += (remote.targetZ - remote.Z) * remoteBlend
	}
}

func (w *World) detectAbsorbs() {
	if !w.roundActive && !w.opts.IgnoreRoundEvents {
		return
	}

	now := w.clock.Now()
	for id, remote := range w.remotes {
		if w.me.Radius <= remote.Radius*absorbSizeRatio {
			continue
		}
		if math.Hypot(w.me.X-remote.X, w.me.Z-remote.Z) >= absorbReachFactor*w.me.Radius {
			continue
		}
		if until, held := w.cooldowns[id]; held && now.Before(until) {
			continue
		}

		w.cooldowns[id] = now.Add(absorbCooldown)
		w.me.Radius = math.Min(w.me.Radius+growthFactor*remote.Radius, maxLocalRadius)
		w.sender.SendAbsorb(id)
	}
}

func (w *World) maybeSendPosition() {
	now := w.clock.Now()
	if now.Sub(w.lastSend) < positionSendInterval {
		return
	}
	w.lastSend = now
	w.sender.SendPosition(w.me.X, w.me.Z, w.me.Radius)
}

// Me returns the local player's rendered state.
func (w *World) Me() Actor {
	return w.me
}

// Remotes returns a copy of the remote players' rendered state.
func (w *World) Remotes() []Actor {
	actors := make([]Actor, 0, len(w.remotes))
	for _, remote := range w.remotes {
		actors = append(actors, remote.Actor)
	}
	return actors
}

// Joined reports whether an init has been applied.
func (w *World) Joined() bool { return w.joined }

// ID returns the local session id.
func (w *World) ID() string { return w.id }

// RoomCode returns the joined room's code.
func (w *World) RoomCode() string { return w.roomCode }

// Solo reports whether the room is private.
func (w *World) Solo() bool { return w.solo }

// Timer returns the last known round countdown in seconds.
func (w *World) Timer() int { return w.timer }

// RoundActive reports whether a round is running.
func (w *World) RoundActive() bool { return w.roundActive }

// LastRoundBoard returns the leaderboard frozen at the last round end.
func (w *World) LastRoundBoard() []arena.LeaderboardEntry {
	return w.lastRoundBoard
}

// Leaderboard ranks everyone in the room by rendered radius, largest first,
// truncated for the in-round HUD.
func (w *World) Leaderboard() []arena.LeaderboardEntry {
	entries := make([]arena.LeaderboardEntry, 0, len(w.remotes)+1)
	if w.joined {
		entries = append(entries, boardEntry(w.me))
	}
	for _, remote := range w.remotes {
		entries = append(entries, boardEntry(remote.Actor))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Radius > entries[j].Radius
	})
	if len(entries) > arena.LiveBoardSize {
		entries = entries[:arena.LiveBoardSize]
	}
	return entries
}

func boardEntry(a Actor) arena.LeaderboardEntry {
	return arena.LeaderboardEntry{
		ID:     a.ID,
		Name:   a.Name,
		Radius: math.Round(a.Radius*100) / 100,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
