package arena

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Round state machine: Idle -> Active -> Ended -> Active. Entry to Active
// resets the countdown and respawns everyone; the 1 Hz ticker drives the
// countdown; entry to Ended freezes the leaderboard and schedules a restart
// through the registry.

// startRoundLocked transitions the room to Active. Caller holds r.mu and
// guarantees no round ticker is currently running (state Idle or Ended).
func (r *Room) startRoundLocked() {
	r.roundState = RoundActive
	r.timerSeconds = RoundSeconds
	for _, p := range r.players {
		p.X, p.Z = randomSpawn()
		p.Radius = MinRadius
		p.Alive = true
	}
	go r.runRoundTimer()

	r.sink.RoundStarted(r.code, r.timerSeconds)
	log.Info().Str("room", r.code).Int("players", len(r.players)).Msg("round started")
}

// runRoundTimer decrements the countdown once per second until the round
// ends or the room is deleted. A new goroutine is spawned per round entry,
// so exiting on round end is what stops the old ticker.
func (r *Room) runRoundTimer() {
	ticker := r.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.quit:
			return
		case <-ticker.Chan():
			if !r.tickRound() {
				return
			}
		}
	}
}

// tickRound applies one countdown tick. Returns false once the round is no
// longer Active so the ticker goroutine exits.
func (r *Room) tickRound() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.roundState != RoundActive {
		return false
	}

	r.timerSeconds--
	r.sink.TimerUpdated(r.code, r.timerSeconds)
	if r.timerSeconds <= 0 {
		r.endRoundLocked()
		return false
	}
	return true
}

// endRoundLocked transitions the room to Ended: the leaderboard is frozen
// and broadcast, and a restart is scheduled. Rooms with a single player wait
// RestartDelaySolo so others can still join. Caller holds r.mu.
func (r *Room) endRoundLocked() {
	r.roundState = RoundEnded

	board := Leaderboard(r.playersCopyLocked(), RoundEndBoardSize)
	r.sink.RoundEnded(r.code, board)

	delay := RestartDelaySolo
	if len(r.players) > 1 {
		delay = RestartDelayMulti
	}
	r.scheduleRestart(r.code, delay)
	log.Info().Str("room", r.code).Dur("restart_in", delay).Msg("round ended")
}

// restart re-enters Active after a scheduled restart fires. The registry has
// already confirmed the room still exists; the room re-checks that it still
// has players and is still waiting in Ended.
func (r *Room) restart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.players) == 0 || r.roundState != RoundEnded {
		return
	}
	r.startRoundLocked()
}
