package gameclient

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/sinkhole/go/internal/gateway"
)

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second

	// eventBuffer sizes the discrete-event queue. Snapshots do not queue,
	// so this only needs to absorb join/leave/round bursts.
	eventBuffer = 64
)

// Client is the WebSocket transport of a game session. It splits server
// traffic into two lanes: full state snapshots land in a latest-wins slot
// (a stale snapshot is worthless once a newer one exists), while discrete
// events queue in order.
type Client struct {
	conn *websocket.Conn

	events   chan *gateway.Event
	snapshot atomic.Pointer[gateway.GameStatePayload]

	writeMu sync.Mutex
	closed  atomic.Bool
	done    chan struct{}
}

var (
	_ EventSource   = (*Client)(nil)
	_ CommandSender = (*Client)(nil)
)

// Dial connects to the arena endpoint, e.g. ws://host:port/ws/arena.
func Dial(url string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:   conn,
		events: make(chan *gateway.Event, eventBuffer),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events returns the ordered discrete-event lane. The channel closes when
// the connection drops.
func (c *Client) Events() <-chan *gateway.Event {
	return c.events
}

// TakeSnapshot returns the newest unconsumed state snapshot, or nil. Taking
// it clears the slot.
func (c *Client) TakeSnapshot() *gateway.GameStatePayload {
	return c.snapshot.Swap(nil)
}

// Close tears the connection down. Safe to call twice.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer func() {
		close(c.events)
		close(c.done)
	}()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				log.Error().Err(err).Msg("connection read failed")
			}
			return
		}

		var event gateway.Event
		if err := json.Unmarshal(frame, &event); err != nil {
			log.Warn().Err(err).Msg("dropping malformed server frame")
			continue
		}

		if event.Type == gateway.EventTypeGameState {
			var payload gateway.GameStatePayload
			if err := json.Unmarshal(event.Data, &payload); err != nil {
				log.Warn().Err(err).Msg("dropping malformed snapshot")
				continue
			}
			c.snapshot.Store(&payload)
			continue
		}

		select {
		case c.events <- &event:
		default:
			log.Warn().Str("event_type", string(event.Type)).Msg("event queue full, dropping event")
		}
	}
}

// CreateRoom asks the server for a fresh multiplayer room.
func (c *Client) CreateRoom(name string) error {
	return c.send(gateway.CommandTypeCreateRoom, gateway.CreateRoomPayload{Name: name})
}

// JoinRoom joins an existing room by code.
func (c *Client) JoinRoom(code, name string) error {
	return c.send(gateway.CommandTypeJoinRoom, gateway.JoinRoomPayload{Code: code, Name: name})
}

// PlaySolo asks the server for a private room.
func (c *Client) PlaySolo(name string) error {
	return c.send(gateway.CommandTypePlaySolo, gateway.PlaySoloPayload{Name: name})
}

// SendPosition reports the local player's position and radius.
func (c *Client) SendPosition(x, z, radius float64) error {
	return c.send(gateway.CommandTypeUpdatePosition, gateway.UpdatePositionPayload{X: x, Z: z, Radius: radius})
}

// SendAbsorb claims an absorption of the named player.
func (c *Client) SendAbsorb(victimID string) error {
	return c.send(gateway.CommandTypeAbsorbPlayer, gateway.AbsorbPlayerPayload{VictimID: victimID})
}

// SendName updates the display name.
func (c *Client) SendName(name string) error {
	return c.send(gateway.CommandTypeSetName, gateway.SetNamePayload{Name: name})
}

func (c *Client) send(cmdType gateway.CommandType, payload any) error {
	frame, err := gateway.EncodeCommand(cmdType, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send %s: %w", cmdType, err)
	}
	return nil
}
