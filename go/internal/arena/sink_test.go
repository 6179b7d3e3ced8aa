package arena

import (
	"sync"
	"testing"
	"time"
)

// recordingSink captures every emitted event for assertions.
type recordingSink struct {
	mu           sync.Mutex
	joined       []Player
	left         []string
	snapshots    []map[string]Player
	roundStarts  []int
	timerUpdates []int
	roundEnds    [][]LeaderboardEntry
	respawns     []respawnNote
}

type respawnNote struct {
	roomCode  string
	sessionID string
	x, z      float64
}

func newRecordingSink() *recordingSink { return &recordingSink{} }

func (s *recordingSink) PlayerJoined(roomCode string, p Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined = append(s.joined, p)
}

func (s *recordingSink) PlayerLeft(roomCode, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = append(s.left, sessionID)
}

func (s *recordingSink) Snapshot(roomCode string, players map[string]Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, players)
}

func (s *recordingSink) RoundStarted(roomCode string, timer int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roundStarts = append(s.roundStarts, timer)
}

func (s *recordingSink) TimerUpdated(roomCode string, timer int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timerUpdates = append(s.timerUpdates, timer)
}

func (s *recordingSink) RoundEnded(roomCode string, board []LeaderboardEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roundEnds = append(s.roundEnds, board)
}

func (s *recordingSink) Respawned(roomCode, sessionID string, x, z float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.respawns = append(s.respawns, respawnNote{roomCode: roomCode, sessionID: sessionID, x: x, z: z})
}

func (s *recordingSink) snapshotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

func (s *recordingSink) timerValues() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.timerUpdates...)
}

func (s *recordingSink) roundEndCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.roundEnds)
}

func (s *recordingSink) respawnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.respawns)
}

func (s *recordingSink) lastRespawn(t *testing.T) respawnNote {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.respawns) == 0 {
		t.Fatalf("expected at least one respawn event")
	}
	return s.respawns[len(s.respawns)-1]
}

// waitFor polls cond until it holds or the deadline passes. Used where a
// fake-clock advance hands work to a goroutine asynchronously.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
