package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	relaySubjectPrefix = "arena.events"
	relayMaxReconnects = -1 // infinite
	relayReconnectWait = 2 * time.Second
)

// Relay publishes room lifecycle events to NATS so external consumers
// (spectator feeds, analytics) can follow rooms without a WebSocket session.
// High-frequency traffic (game_state, timer_update) stays off the relay.
type Relay struct {
	nc *nats.Conn
}

// NewRelay connects to NATS. The connection reconnects forever; publishes
// during an outage are buffered by the client.
func NewRelay(natsURL string) (*Relay, error) {
	opts := []nats.Option{
		nats.MaxReconnects(relayMaxReconnects),
		nats.ReconnectWait(relayReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().Str("url", natsURL).Msg("event relay connected")
	return &Relay{nc: nc}, nil
}

// Publish sends one event to arena.events.<room>.<type>. Failures are logged
// and dropped; the relay is best-effort and never blocks gameplay.
func (rl *Relay) Publish(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to marshal relay event")
		return
	}

	subject := relaySubject(event)
	if err := rl.nc.Publish(subject, data); err != nil {
		log.Error().
			Err(err).
			Str("subject", subject).
			Msg("failed to publish relay event")
	}
}

// Close drains the connection so buffered publishes flush before shutdown.
func (rl *Relay) Close() {
	if err := rl.nc.Drain(); err != nil {
		log.Error().Err(err).Msg("failed to drain NATS connection")
	}
}

func relaySubject(event *Event) string {
	room := strings.ToLower(event.RoomCode)
	if room == "" {
		room = "lobby"
	}
	return fmt.Sprintf("%s.%s.%s", relaySubjectPrefix, room, event.Type)
}
