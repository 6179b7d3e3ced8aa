package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// CommandRouter consumes inbound frames and session lifecycle from the
// connection manager. The gateway service implements it.
type CommandRouter interface {
	// HandleCommand processes one inbound frame from a session. It runs
	// on the session's read goroutine.
	HandleCommand(conn *Connection, raw []byte)

	// HandleDisconnect fires once when a session's transport goes away.
	HandleDisconnect(conn *Connection)
}

// ConnectionManager manages the WebSocket sessions of all rooms.
type ConnectionManager struct {
	// Connection pools organized by room code, plus a flat session index
	// for targeted sends.
	roomConnections map[string]map[*Connection]bool
	sessions        map[string]*Connection
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	router   CommandRouter

	// Event broadcasting
	broadcastCh chan BroadcastMessage
}

// Connection represents one WebSocket session.
type Connection struct {
	ID      string // session id, stable for the connection lifetime
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	// roomCode is guarded by the manager's lock; a session belongs to at
	// most one room.
	roomCode string

	ConnectedAt time.Time
	LastPing    time.Time

	disconnectOnce sync.Once
}

// ConnectionConfig holds configuration for WebSocket sessions.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents one event to fan out.
type BroadcastMessage struct {
	RoomCode  string
	Event     *Event
	SessionID string // if set, deliver only to this session
	ExcludeID string // if set, deliver to everyone in the room but this session
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager. The
// router is attached later to break the construction cycle with the service.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		sessions:        make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1024),
	}
}

// SetRouter attaches the inbound command router. Must be called before the
// first upgrade.
func (cm *ConnectionManager) SetRouter(router CommandRouter) {
	cm.router = router
}

// Start begins processing broadcast messages.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket session.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.mu.Lock()
	cm.sessions[connection.ID] = connection
	cm.mu.Unlock()

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("session_id", connection.ID).
		Str("remote", r.RemoteAddr).
		Msg("WebSocket session established")

	return nil
}

// JoinRoomPool moves a session into a room's broadcast pool.
func (cm *ConnectionManager) JoinRoomPool(conn *Connection, roomCode string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn.roomCode = roomCode
	if cm.roomConnections[roomCode] == nil {
		cm.roomConnections[roomCode] = make(map[*Connection]bool)
	}
	cm.roomConnections[roomCode][conn] = true

	log.Debug().
		Str("session_id", conn.ID).
		Str("room", roomCode).
		Int("pool_size", len(cm.roomConnections[roomCode])).
		Msg("session joined room pool")
}

// RoomCode returns the room the session currently belongs to, if any.
func (cm *ConnectionManager) RoomCode(conn *Connection) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return conn.roomCode
}

// unregisterConnection removes a session from its pool and the session
// index, and notifies the router exactly once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	removed := false
	if _, ok := cm.sessions[conn.ID]; ok {
		delete(cm.sessions, conn.ID)
		removed = true
	}
	if pool, ok := cm.roomConnections[conn.roomCode]; ok {
		if pool[conn] {
			delete(pool, conn)
		}
		if len(pool) == 0 {
			delete(cm.roomConnections, conn.roomCode)
		}
	}
	if removed {
		close(conn.Send)
	}
	cm.mu.Unlock()

	if removed {
		conn.disconnectOnce.Do(func() {
			if cm.router != nil {
				cm.router.HandleDisconnect(conn)
			}
		})
		log.Info().
			Str("session_id", conn.ID).
			Msg("session unregistered")
	}
}

// BroadcastToRoom sends an event to every session in a room.
func (cm *ConnectionManager) BroadcastToRoom(roomCode string, event *Event) {
	cm.enqueue(BroadcastMessage{RoomCode: roomCode, Event: event})
}

// BroadcastToRoomExcept sends an event to everyone in a room but one
// session.
func (cm *ConnectionManager) BroadcastToRoomExcept(roomCode, exceptID string, event *Event) {
	cm.enqueue(BroadcastMessage{RoomCode: roomCode, Event: event, ExcludeID: exceptID})
}

// SendToSession targets a single session, whether or not it is in a room.
func (cm *ConnectionManager) SendToSession(sessionID string, event *Event) {
	cm.enqueue(BroadcastMessage{SessionID: sessionID, Event: event})
}

func (cm *ConnectionManager) enqueue(message BroadcastMessage) {
	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().
			Str("room", message.RoomCode).
			Str("event_type", string(message.Event.Type)).
			Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast fans one message out to its target sessions.
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	// Marshal the event once per fan-out.
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	// Sends stay under the read lock: unregisterConnection closes Send
	// channels under the write lock, so a send can never hit a closed
	// channel. The sends are non-blocking, so holding the lock is cheap.
	cm.mu.RLock()
	var slow []*Connection
	if message.SessionID != "" {
		if conn, ok := cm.sessions[message.SessionID]; ok {
			if !trySend(conn, eventData) {
				slow = append(slow, conn)
			}
		}
	} else {
		for conn := range cm.roomConnections[message.RoomCode] {
			if message.ExcludeID != "" && conn.ID == message.ExcludeID {
				continue
			}
			if !trySend(conn, eventData) {
				slow = append(slow, conn)
			}
		}
	}
	cm.mu.RUnlock()

	// Slow/dead sessions get evicted outside the read lock.
	for _, conn := range slow {
		log.Warn().
			Str("session_id", conn.ID).
			Msg("session send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}
}

func trySend(conn *Connection, data []byte) bool {
	select {
	case conn.Send <- data:
		return true
	default:
		return false
	}
}

// GetConnectionStats returns statistics about active sessions.
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	roomCounts := make(map[string]int)
	for roomCode, pool := range cm.roomConnections {
		roomCounts[roomCode] = len(pool)
	}

	return map[string]interface{}{
		"total_sessions":   len(cm.sessions),
		"active_rooms":     len(cm.roomConnections),
		"room_connections": roomCounts,
	}
}

// writePump drains the session's send buffer onto the socket and keeps the
// connection alive with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("session_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump reads inbound frames and routes them to the command router.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("session_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if c.Manager.router != nil {
			c.Manager.router.HandleCommand(c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
