package arena

import (
	"github.com/rs/zerolog/log"
)

// Absorption arbiter: the authoritative decision on player-vs-player
// eliminations. The eater's own growth is not applied here — the eater's
// client grows itself optimistically and reports the larger radius on its
// next position update, which passes the ingress validator if in bounds.

// absorb processes an elimination request from eaterID against victimID.
// Preconditions: the round is Active, both sessions exist in the room, and
// the eater is more than AbsorbRatio times the victim's radius. On success
// the victim is reassigned a random spawn with its radius reset and notified
// so its local view can re-anchor. Any unmet precondition drops the request
// silently with no state change.
func (r *Room) absorb(eaterID, victimID string) {
	r.mu.Lock()
	if r.closed || r.roundState != RoundActive {
		r.mu.Unlock()
		return
	}
	eater, ok := r.players[eaterID]
	if !ok {
		r.mu.Unlock()
		return
	}
	victim, ok := r.players[victimID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if eater.Radius <= victim.Radius*AbsorbRatio {
		r.mu.Unlock()
		return
	}

	x, z := randomSpawn()
	victim.X = x
	victim.Z = z
	victim.Radius = MinRadius
	eaterName, victimName := eater.Name, victim.Name
	r.mu.Unlock()

	r.sink.Respawned(r.code, victimID, x, z)
	log.Info().
		Str("room", r.code).
		Str("eater", eaterName).
		Str("victim", victimName).
		Msg("player absorbed")
}
