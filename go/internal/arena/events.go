package arena

// EventSink receives every event the authoritative core emits. The gateway
// implements it by fanning events out to the websocket sessions in the room;
// tests use an in-memory recorder.
//
// Sink methods are called with room state locked and must not call back into
// the Registry. Implementations should hand the event off (enqueue, send on a
// channel) rather than do blocking work inline.
type EventSink interface {
	// PlayerJoined fires when a session joins a room. The joining session
	// itself receives a full JoinState instead, so implementations should
	// deliver this to everyone except p.ID.
	PlayerJoined(roomCode string, p Player)

	// PlayerLeft fires after a session leaves or disconnects.
	PlayerLeft(roomCode, sessionID string)

	// Snapshot fires at the broadcast cadence with a copy of the full
	// players mapping. The copy is owned by the sink.
	Snapshot(roomCode string, players map[string]Player)

	// RoundStarted fires on entry to the Active state.
	RoundStarted(roomCode string, timer int)

	// TimerUpdated fires once per second while a round is Active,
	// including the final tick to zero.
	TimerUpdated(roomCode string, timer int)

	// RoundEnded fires on entry to the Ended state with the frozen
	// round-end leaderboard.
	RoundEnded(roomCode string, board []LeaderboardEntry)

	// Respawned fires when a session is absorbed and reassigned a spawn.
	// It targets the victim session only.
	Respawned(roomCode, sessionID string, x, z float64)
}
