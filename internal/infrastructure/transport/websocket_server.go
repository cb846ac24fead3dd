package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"liveflow/internal/core/domain"
	"liveflow/internal/core/ports"
	"liveflow/pkg/tracing"
	"liveflow/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Config carries the transport tunables from the main configuration.
type Config struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
	SendBuffer   int

	RateLimitEnabled  bool
	MessagesPerSecond float64
	Burst             int
	MaxMessageSize    int64
}

// WebSocketServer owns the persistent client sessions: upgrade, keepalive,
// inbound event decode and outbound delivery. It implements the notifier
// port; the group roster it carries implements the roster port. All state
// decisions are delegated to the coordinator.
type WebSocketServer struct {
	coordinator ports.Coordinator
	roster      *GroupRoster
	cfg         Config

	connections map[domain.ConnectionID]*client
	mu          sync.RWMutex

	logger *zap.SugaredLogger
}

type client struct {
	id   domain.ConnectionID
	conn *websocket.Conn
	send chan domain.Event
	stop chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.stop) })
}

func NewWebSocketServer(coordinator ports.Coordinator, roster *GroupRoster, cfg Config, logger *zap.SugaredLogger) *WebSocketServer {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	return &WebSocketServer{
		coordinator: coordinator,
		roster:      roster,
		cfg:         cfg,
		connections: make(map[domain.ConnectionID]*client),
		logger:      logger,
	}
}

func (s *WebSocketServer) Roster() *GroupRoster {
	return s.roster
}

// SetCoordinator wires the coordinator after construction. The coordinator
// needs the server as its notifier, so one of the two is built first with
// the other missing; call this before serving any connection.
func (s *WebSocketServer) SetCoordinator(coordinator ports.Coordinator) {
	s.coordinator = coordinator
}

// HandleWebSocket upgrades the request and runs the connection until the
// transport drops. Transport loss is always handled as an implicit
// disconnect event, never as a distinct error path.
func (s *WebSocketServer) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	id := domain.ConnectionID(utils.NewConnectionID())
	cl := &client{
		id:   id,
		conn: conn,
		send: make(chan domain.Event, s.cfg.SendBuffer),
		stop: make(chan struct{}),
	}

	s.mu.Lock()
	s.connections[id] = cl
	s.mu.Unlock()

	s.logger.Infow("client connected", "connection_id", id, "remote", conn.RemoteAddr())

	ctx := context.Background()
	s.coordinator.Connect(ctx, id)

	go s.writePump(cl)
	s.readPump(ctx, cl)

	// Read loop ended: the cascade cleanup runs before the record is gone.
	s.coordinator.Disconnect(ctx, id)

	s.mu.Lock()
	delete(s.connections, id)
	s.mu.Unlock()

	cl.close()
	conn.Close()
	s.logger.Infow("client disconnected", "connection_id", id)
}

func (s *WebSocketServer) readPump(ctx context.Context, cl *client) {
	conn := cl.conn
	if s.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(s.cfg.MaxMessageSize)
	}
	conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		return nil
	})

	var limiter *rate.Limiter
	if s.cfg.RateLimitEnabled {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.Burst)
	}

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Infow("read error", "connection_id", cl.id, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))

		if limiter != nil && !limiter.Allow() {
			s.Send(cl.id, domain.NewError("rate limit exceeded"))
			continue
		}

		if err := s.handleMessage(ctx, cl.id, msg); err != nil {
			// A malformed or rejected event is absorbed as a no-op for
			// shared state; only the sender hears about it.
			s.logger.Debugw("event rejected", "connection_id", cl.id, "type", msg.Type, "error", err)
			s.Send(cl.id, domain.NewError(err.Error()))
		}
	}
}

func (s *WebSocketServer) writePump(cl *client) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case event := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := cl.conn.WriteJSON(event); err != nil {
				s.logger.Debugw("write error", "connection_id", cl.id, "error", err)
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cl.stop:
			return
		}
	}
}

func (s *WebSocketServer) handleMessage(ctx context.Context, id domain.ConnectionID, msg ClientMessage) error {
	if msg.Type == "" {
		return fmt.Errorf("message type is required")
	}

	ctx, span := tracing.TraceClientEvent(ctx, msg.Type, string(id))
	defer span.End()

	switch msg.Type {
	case domain.EventJoinQueue:
		p, err := decodeJoinQueue(msg.Payload)
		if err != nil {
			return err
		}
		return s.coordinator.JoinQueue(ctx, id,
			domain.NegotiationID(p.NegotiationID),
			domain.IdentityTag(p.Identity),
			p.preference(),
		)

	case domain.EventLeaveMatch:
		s.coordinator.LeaveMatch(ctx, id)
		return nil

	case domain.EventSendRandomMessage:
		p, err := decodeRandomMessage(msg.Payload)
		if err != nil {
			return err
		}
		if text := utils.SanitizeString(p.Text); text != "" {
			s.coordinator.RelayPairMessage(ctx, id, text)
		}
		return nil

	case domain.EventStartStream:
		p, err := decodeStartStream(msg.Payload)
		if err != nil {
			return err
		}
		return s.coordinator.StartBroadcast(ctx, id,
			domain.NegotiationID(p.NegotiationID),
			utils.SanitizeString(p.Title),
			domain.IdentityTag(p.Tag),
		)

	case domain.EventJoinLiveRoom:
		p, err := decodeSession(msg.Payload)
		if err != nil {
			return err
		}
		s.coordinator.JoinBroadcast(ctx, id, domain.SessionID(p.SessionID))
		return nil

	case domain.EventLeaveLiveRoom:
		p, err := decodeSession(msg.Payload)
		if err != nil {
			return err
		}
		s.coordinator.LeaveBroadcast(ctx, id, domain.SessionID(p.SessionID))
		return nil

	case domain.EventSendLiveMessage:
		p, err := decodeLiveMessage(msg.Payload)
		if err != nil {
			return err
		}
		if text := utils.SanitizeString(p.Text); text != "" {
			s.coordinator.RelayBroadcastMessage(ctx, id, domain.SessionID(p.SessionID), text)
		}
		return nil

	case domain.EventStopStream:
		s.coordinator.StopBroadcast(ctx, id)
		return nil

	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

// Send queues an event for one connection. Delivery is fire and forget: a
// full buffer drops the event, a dead connection surfaces as its own
// disconnect later.
func (s *WebSocketServer) Send(id domain.ConnectionID, event domain.Event) {
	s.mu.RLock()
	cl, ok := s.connections[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case cl.send <- event:
	default:
		s.logger.Warnw("send buffer full, dropping event", "connection_id", id, "type", event.Type)
	}
}

// Broadcast queues an event for every connection.
func (s *WebSocketServer) Broadcast(event domain.Event) {
	s.mu.RLock()
	ids := make([]domain.ConnectionID, 0, len(s.connections))
	for id := range s.connections {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.Send(id, event)
	}
}

// SendGroup queues an event for every member of a roster group except the
// given connection.
func (s *WebSocketServer) SendGroup(group string, event domain.Event, except domain.ConnectionID) {
	for _, id := range s.roster.GroupMembers(group) {
		if id == except {
			continue
		}
		s.Send(id, event)
	}
}

// ConnectionCount reports the number of live transport sessions.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// Shutdown closes every client connection.
func (s *WebSocketServer) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cl := range s.connections {
		cl.close()
		cl.conn.Close()
	}
}
