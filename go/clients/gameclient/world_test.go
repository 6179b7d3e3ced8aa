package gameclient

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/sinkhole/go/internal/arena"
	"github.com/mcdev12/sinkhole/go/internal/gateway"
)

// fakeTransport implements EventSource and CommandSender in-memory.
type fakeTransport struct {
	events   chan *gateway.Event
	snapshot *gateway.GameStatePayload

	positions []posReport
	absorbs   []string
}

type posReport struct {
	x, z, radius float64
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan *gateway.Event, 64)}
}

func (f *fakeTransport) Events() <-chan *gateway.Event { return f.events }

func (f *fakeTransport) TakeSnapshot() *gateway.GameStatePayload {
	s := f.snapshot
	f.snapshot = nil
	return s
}

func (f *fakeTransport) SendPosition(x, z, radius float64) error {
	f.positions = append(f.positions, posReport{x, z, radius})
	return nil
}

func (f *fakeTransport) SendAbsorb(victimID string) error {
	f.absorbs = append(f.absorbs, victimID)
	return nil
}

func (f *fakeTransport) push(t *testing.T, eventType gateway.EventType, payload any) {
	t.Helper()
	event, err := gateway.NewEvent("TEST", eventType, payload)
	if err != nil {
		t.Fatalf("build %s event: %v", eventType, err)
	}
	f.events <- event
}

func newTestWorld(t *testing.T, opts Options) (*World, *fakeTransport, *clockwork.FakeClock) {
	t.Helper()
	transport := newFakeTransport()
	clock := clockwork.NewFakeClock()
	return NewWorld(transport, transport, clock, opts), transport, clock
}

func pushInit(t *testing.T, transport *fakeTransport, me arena.Player, others ...arena.Player) {
	t.Helper()
	players := map[string]arena.Player{me.ID: me}
	for _, p := range others {
		players[p.ID] = p
	}
	transport.push(t, gateway.EventTypeInit, gateway.InitPayload{
		ID:          me.ID,
		RoomCode:    "TEST",
		Players:     players,
		Timer:       120,
		RoundActive: true,
	})
}

func TestInitPopulatesWorld(t *testing.T) {
	world, transport, _ := newTestWorld(t, Options{})

	pushInit(t, transport,
		arena.Player{ID: "me", Name: "Alice", X: 1, Z: 2, Radius: 1.5},
		arena.Player{ID: "r1", Name: "Bob", X: 10, Z: 10, Radius: 3},
	)
	world.Step(0.016, Input{})

	if !world.Joined() {
		t.Fatal("world not joined after init")
	}
	if world.ID() != "me" || world.RoomCode() != "TEST" {
		t.Errorf("identity = (%q, %q)", world.ID(), world.RoomCode())
	}
	if !world.RoundActive() || world.Timer() != 120 {
		t.Errorf("round = (%v, %d), want active at 120", world.RoundActive(), world.Timer())
	}
	if got := len(world.Remotes()); got != 1 {
		t.Fatalf("remotes = %d, want 1", got)
	}
	if world.Remotes()[0].Name != "Bob" {
		t.Errorf("remote name = %q, want Bob", world.Remotes()[0].Name)
	}
}

func TestLocalMovementSpeedAndClamp(t *testing.T) {
	world, transport, _ := newTestWorld(t, Options{})
	pushInit(t, transport, arena.Player{ID: "me", X: 0, Z: 0, Radius: 1.5})

	world.Step(1.0, Input{X: 1})
	if got := world.Me().X; math.Abs(got-MoveSpeed) > 1e-9 {
		t.Errorf("x after 1s = %v, want %v", got, MoveSpeed)
	}

	// Diagonal input is normalized.
	world, transport, _ = newTestWorld(t, Options{})
	pushInit(t, transport, arena.Player{ID: "me", X: 0, Z: 0, Radius: 1.5})
	world.Step(1.0, Input{X: 1, Z: 1})
	me := world.Me()
	if speed := math.Hypot(me.X, me.Z); math.Abs(speed-MoveSpeed) > 1e-9 {
		t.Errorf("diagonal speed = %v, want %v", speed, MoveSpeed)
	}

	// Sustained movement pins at the clamp.
	for i := 0; i < 30; i++ {
		world.Step(1.0, Input{X: 1})
	}
	if got := world.Me().X; got != MoveClamp {
		t.Errorf("x after sustained input = %v, want clamp %v", got, MoveClamp)
	}
}

func TestNoMovementBetweenRounds(t *testing.T) {
	world, transport, _ := newTestWorld(t, Options{})
	pushInit(t, transport, arena.Player{ID: "me", X: 0, Z: 0, Radius: 1.5})
	world.Step(0.016, Input{})

	transport.push(t, gateway.EventTypeRoundEnd, gateway.RoundEndPayload{})
	world.Step(1.0, Input{X: 1})

	if got := world.Me().X; got != 0 {
		t.Errorf("moved to %v while round over", got)
	}
}

func TestRemoteSmoothingConvergesOnTarget(t *testing.T) {
	world, transport, _ := newTestWorld(t, Options{})
	pushInit(t, transport,
		arena.Player{ID: "me", X: 0, Z: 0, Radius: 1.5},
		arena.Player{ID: "r1", Name: "Bob", X: 0, Z: 0, Radius: 3},
	)
	world.Step(0.016, Input{})

	transport.snapshot = &gateway.GameStatePayload{Players: map[string]arena.Player{
		"me": {ID: "me", X: 0, Z: 0, Radius: 1.5},
		"r1": {ID: "r1", Name: "Bob", X: 10, Z: 0, Radius: 3},
	}}
	world.Step(0.016, Input{})

	first := world.Remotes()[0].X
	if math.Abs(first-3.0) > 1e-9 {
		t.Errorf("first blend = %v, want 3.0", first)
	}

	for i := 0; i < 50; i++ {
		world.Step(0.016, Input{})
	}
	if got := world.Remotes()[0].X; math.Abs(got-10) > 0.01 {
		t.Errorf("remote x = %v, want ~10", got)
	}
}

func TestSnapshotPrunesDepartedRemotes(t *testing.T) {
	world, transport, _ := newTestWorld(t, Options{})
	pushInit(t, transport,
		arena.Player{ID: "me", Radius: 1.5},
		arena.Player{ID: "r1", Radius: 3},
		arena.Player{ID: "r2", Radius: 3},
	)
	world.Step(0.016, Input{})

	transport.snapshot = &gateway.GameStatePayload{Players: map[string]arena.Player{
		"me": {ID: "me", Radius: 1.5},
		"r1": {ID: "r1", Radius: 3},
	}}
	world.Step(0.016, Input{})

	remotes := world.Remotes()
	if len(remotes) != 1 || remotes[0].ID != "r1" {
		t.Errorf("remotes after prune = %+v, want only r1", remotes)
	}
}

func TestSnapshotDoesNotOverrideLocalPosition(t *testing.T) {
	world, transport, _ := newTestWorld(t, Options{})
	pushInit(t, transport, arena.Player{ID: "me", X: 5, Z: 5, Radius: 1.5})
	world.Step(0.016, Input{})

	transport.snapshot = &gateway.GameStatePayload{Players: map[string]arena.Player{
		"me": {ID: "me", X: 0, Z: 0, Radius: 1.5},
	}}
	world.Step(0.016, Input{})

	if me := world.Me(); me.X != 5 || me.Z != 5 {
		t.Errorf("local position = (%v, %v), want (5, 5)", me.X, me.Z)
	}
}

func TestRoundStartResyncsFromNextSnapshot(t *testing.T) {
	world, transport, _ := newTestWorld(t, Options{})
	pushInit(t, transport, arena.Player{ID: "me", X: 5, Z: 5, Radius: 10})
	world.Step(0.016, Input{})

	transport.push(t, gateway.EventTypeRoundStart, gateway.RoundStartPayload{Timer: 120})
	transport.snapshot = &gateway.GameStatePayload{Players: map[string]arena.Player{
		"me": {ID: "me", X: -20, Z: 30, Radius: 1.5},
	}}
	world.Step(0.016, Input{})

	me := world.Me()
	if me.X != -20 || me.Z != 30 || me.Radius != 1.5 {
		t.Errorf("after resync me = %+v, want server spawn", me)
	}
}

func TestAbsorbDetectionGrowsAndClaims(t *testing.T) {
	world, transport, _ := newTestWorld(t, Options{})
	pushInit(t, transport,
		arena.Player{ID: "me", X: 0, Z: 0, Radius: 10},
		arena.Player{ID: "victim", X: 1, Z: 0, Radius: 2},
	)
	world.Step(0.016, Input{})

	if len(transport.absorbs) != 1 || transport.absorbs[0] != "victim" {
		t.Fatalf("absorbs = %v, want [victim]", transport.absorbs)
	}
	want := 10 + growthFactor*2
	if got := world.Me().Radius; math.Abs(got-want) > 1e-9 {
		t.Errorf("radius = %v, want %v", got, want)
	}
}

func TestAbsorbCooldownSuppressesRepeatClaims(t *testing.T) {
	world, transport, clock := newTestWorld(t, Options{})
	pushInit(t, transport,
		arena.Player{ID: "me", X: 0, Z: 0, Radius: 10},
		arena.Player{ID: "victim", X: 1, Z: 0, Radius: 2},
	)

	// Victim stays in range across frames; only one claim may go out.
	for i := 0; i < 10; i++ {
		world.Step(0.016, Input{})
	}
	if len(transport.absorbs) != 1 {
		t.Fatalf("absorbs during cooldown = %d, want 1", len(transport.absorbs))
	}

	clock.Advance(absorbCooldown + time.Millisecond)
	world.Step(0.016, Input{})
	if len(transport.absorbs) != 2 {
		t.Errorf("absorbs after cooldown = %d, want 2", len(transport.absorbs))
	}
}

func TestAbsorbRequiresSizeAndReach(t *testing.T) {
	// Too close in size.
	world, transport, _ := newTestWorld(t, Options{})
	pushInit(t, transport,
		arena.Player{ID: "me", X: 0, Z: 0, Radius: 2.2},
		arena.Player{ID: "victim", X: 0.5, Z: 0, Radius: 2},
	)
	world.Step(0.016, Input{})
	if len(transport.absorbs) != 0 {
		t.Errorf("claimed absorb at ratio %v", 2.2/2.0)
	}

	// Big enough but out of reach.
	world, transport, _ = newTestWorld(t, Options{})
	pushInit(t, transport,
		arena.Player{ID: "me", X: 0, Z: 0, Radius: 10},
		arena.Player{ID: "victim", X: 20, Z: 0, Radius: 2},
	)
	world.Step(0.016, Input{})
	if len(transport.absorbs) != 0 {
		t.Error("claimed absorb beyond reach")
	}
}

func TestOptimisticGrowthCapped(t *testing.T) {
	world, transport, _ := newTestWorld(t, Options{})
	pushInit(t, transport,
		arena.Player{ID: "me", X: 0, Z: 0, Radius: 27.9},
		arena.Player{ID: "victim", X: 1, Z: 0, Radius: 20},
	)
	world.Step(0.016, Input{})

	if got := world.Me().Radius; got != maxLocalRadius {
		t.Errorf("radius = %v, want capped at %v", got, maxLocalRadius)
	}
}

func TestPositionReportsRateLimited(t *testing.T) {
	world, transport, clock := newTestWorld(t, Options{})
	pushInit(t, transport, arena.Player{ID: "me", Radius: 1.5})

	// Many frames inside one send window produce a single report.
	for i := 0; i < 5; i++ {
		world.Step(0.016, Input{X: 1})
	}
	if len(transport.positions) != 1 {
		t.Fatalf("reports in one window = %d, want 1", len(transport.positions))
	}

	clock.Advance(positionSendInterval)
	world.Step(0.016, Input{X: 1})
	if len(transport.positions) != 2 {
		t.Errorf("reports after window = %d, want 2", len(transport.positions))
	}
}

func TestRespawnOverridesLocalState(t *testing.T) {
	world, transport, _ := newTestWorld(t, Options{})
	pushInit(t, transport, arena.Player{ID: "me", X: 5, Z: 5, Radius: 20})
	world.Step(0.016, Input{})

	transport.push(t, gateway.EventTypeRespawn, gateway.RespawnPayload{X: -12, Z: 8})
	world.Step(0.016, Input{})

	me := world.Me()
	if me.X != -12 || me.Z != 8 {
		t.Errorf("position after respawn = (%v, %v), want (-12, 8)", me.X, me.Z)
	}
	if me.Radius != arena.MinRadius {
		t.Errorf("radius after respawn = %v, want %v", me.Radius, arena.MinRadius)
	}
}

func TestIgnoreRoundEventsLeavesRoundStateAlone(t *testing.T) {
	world, transport, _ := newTestWorld(t, Options{IgnoreRoundEvents: true})
	pushInit(t, transport, arena.Player{ID: "me", Radius: 1.5})
	world.Step(0.016, Input{})

	transport.push(t, gateway.EventTypeRoundEnd, gateway.RoundEndPayload{
		Leaderboard: []arena.LeaderboardEntry{{ID: "me"}},
	})
	transport.push(t, gateway.EventTypeTimerUpdate, gateway.TimerUpdatePayload{Timer: 7})
	world.Step(1.0, Input{X: 1})

	if !world.RoundActive() {
		t.Error("round_end applied despite IgnoreRoundEvents")
	}
	if world.Timer() != 120 {
		t.Errorf("timer = %d, want untouched 120", world.Timer())
	}
	if world.Me().X == 0 {
		t.Error("movement should continue under IgnoreRoundEvents")
	}
}

func TestLiveLeaderboardRanksAndTruncates(t *testing.T) {
	world, transport, _ := newTestWorld(t, Options{})
	others := []arena.Player{
		{ID: "r1", Name: "B", X: 40, Radius: 9},
		{ID: "r2", Name: "C", X: 40, Radius: 12},
		{ID: "r3", Name: "D", X: 40, Radius: 3},
		{ID: "r4", Name: "E", X: 40, Radius: 7},
		{ID: "r5", Name: "F", X: 40, Radius: 2},
	}
	pushInit(t, transport, arena.Player{ID: "me", Name: "A", Radius: 10}, others...)
	world.Step(0.016, Input{})

	board := world.Leaderboard()
	if len(board) != arena.LiveBoardSize {
		t.Fatalf("board size = %d, want %d", len(board), arena.LiveBoardSize)
	}
	if board[0].ID != "r2" || board[1].ID != "me" {
		t.Errorf("top of board = %s, %s; want r2, me", board[0].ID, board[1].ID)
	}
	for i := 1; i < len(board); i++ {
		if board[i].Radius > board[i-1].Radius {
			t.Fatalf("board not sorted at %d: %+v", i, board)
		}
	}
}
