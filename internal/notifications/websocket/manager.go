package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"buildflow/project-portal/project-portal-backend/internal/notifications"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// ErrManagerClosed is returned for connections arriving after Close
var ErrManagerClosed = errors.New("websocket manager closed")

// Manager handles WebSocket connections and pushes change messages to them
type Manager struct {
	connections map[string]*Connection
	mu          sync.RWMutex
	hub         *Hub
	upgrader    websocket.Upgrader
	logger      *zap.Logger
	closeOnce   sync.Once
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan notifications.Message
	ConnectedAt time.Time
	UserAgent   string
	IPAddress   string
}

// Hub manages the broadcast of messages to connections
type Hub struct {
	connections map[*Connection]bool
	broadcast   chan notifications.Message
	register    chan *Connection
	unregister  chan *Connection
	stop        chan struct{}
	logger      *zap.Logger
}

// NewManager creates a new WebSocket manager.
// An empty allowedOrigins list only accepts same-origin clients.
func NewManager(allowedOrigins []string, logger *zap.Logger) *Manager {
	hub := &Hub{
		connections: make(map[*Connection]bool),
		broadcast:   make(chan notifications.Message, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		stop:        make(chan struct{}),
		logger:      logger,
	}

	go hub.run()

	m := &Manager{
		connections: make(map[string]*Connection),
		hub:         hub,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	// a nil CheckOrigin makes gorilla enforce same-origin
	if len(allowedOrigins) > 0 {
		origins := make(map[string]bool, len(allowedOrigins))
		for _, o := range allowedOrigins {
			origins[o] = true
		}
		m.upgrader.CheckOrigin = func(r *http.Request) bool {
			return origins[r.Header.Get("Origin")]
		}
	}
	return m
}

// HandleConnection upgrades the request and starts pumping messages to it
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan notifications.Message, 16),
		ConnectedAt: time.Now(),
		UserAgent:   r.Header.Get("User-Agent"),
		IPAddress:   r.RemoteAddr,
	}

	// queued before the hub can close Send
	connection.Send <- notifications.Message{
		Type:      notifications.MessageTypeConnected,
		Data:      map[string]interface{}{"connection_id": connection.ID},
		Timestamp: time.Now(),
	}

	select {
	case m.hub.register <- connection:
	case <-m.hub.stop:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return nil, ErrManagerClosed
	}

	m.mu.Lock()
	m.connections[connection.ID] = connection
	m.mu.Unlock()

	go m.readPump(connection)
	go m.writePump(connection)

	return connection, nil
}

// readPump only watches for the client going away; clients never send data
func (m *Manager) readPump(conn *Connection) {
	defer func() {
		m.mu.Lock()
		delete(m.connections, conn.ID)
		m.mu.Unlock()

		select {
		case m.hub.unregister <- conn:
		case <-m.hub.stop:
		}
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("WebSocket closed unexpectedly",
					zap.String("connection_id", conn.ID),
					zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// run owns the connection set; only it closes Send channels
func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.connections[conn] = true
			h.logger.Debug("Connection registered", zap.String("connection_id", conn.ID))

		case conn := <-h.unregister:
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				close(conn.Send)
				h.logger.Debug("Connection unregistered", zap.String("connection_id", conn.ID))
			}

		case message := <-h.broadcast:
			for conn := range h.connections {
				select {
				case conn.Send <- message:
				default:
					// slow client, drop it
					close(conn.Send)
					delete(h.connections, conn)
				}
			}

		case <-h.stop:
			for conn := range h.connections {
				close(conn.Send)
				delete(h.connections, conn)
			}
			return
		}
	}
}

// Broadcast sends a message to all connected clients
func (m *Manager) Broadcast(message notifications.Message) error {
	select {
	case m.hub.broadcast <- message:
		return nil
	default:
		return fmt.Errorf("broadcast channel full")
	}
}

// NotifyProjectsChanged tells every client to re-fetch its project list
func (m *Manager) NotifyProjectsChanged(projectID int64, notice, status string) error {
	return m.Broadcast(notifications.ProjectsChanged(projectID, notice, status))
}

// GetConnectionCount returns the number of active connections
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Close stops the hub, which closes every connection's Send channel
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.hub.stop)

		m.mu.Lock()
		m.connections = make(map[string]*Connection)
		m.mu.Unlock()
	})
}
