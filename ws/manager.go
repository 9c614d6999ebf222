// Package ws serves the four notification streams over WebSocket.
package ws

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ecosystia_backend/internal/auth"
	"ecosystia_backend/internal/channels"
	"ecosystia_backend/internal/logger"
	"ecosystia_backend/internal/metrics"
	"ecosystia_backend/internal/repositories"
	"ecosystia_backend/internal/services"

	"github.com/gorilla/websocket"
)

// Stream names one consumer endpoint. It is also the metrics label.
type Stream string

const (
	StreamUser    Stream = "user"
	StreamProject Stream = "project"
	StreamMeeting Stream = "meeting"
	StreamSystem  Stream = "system"
)

// Close codes sent before the connection is dropped during connect.
const (
	CloseUnauthenticated = 4001
	CloseForbidden       = 4003
)

type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	// AllowedOrigins restricts the Origin header. Empty allows any origin.
	AllowedOrigins []string
}

func DefaultOptions() Options {
	return Options{
		SendBuffer:     64,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 8 * 1024,
	}
}

// Deps are the collaborators a connection needs after it is accepted.
type Deps struct {
	Hub      *channels.Hub
	Tokens   *auth.TokenManager
	Inbox    services.InboxService
	Notifier services.NotificationService
	Projects services.ProjectService
	Meetings services.MeetingService
	Users    repositories.UserRepository
	Metrics  *metrics.Metrics
}

type WebSocketManager struct {
	deps     Deps
	opts     Options
	upgrader websocket.Upgrader
}

// NewWebSocketManager must be called before the hub starts running: it
// installs the hub's eviction callback.
func NewWebSocketManager(deps Deps, opts Options) *WebSocketManager {
	m := &WebSocketManager{deps: deps, opts: opts}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     m.checkOrigin,
	}
	deps.Hub.OnDrop = m.onDrop
	return m
}

// Run drives the hub until ctx is cancelled.
func (m *WebSocketManager) Run(ctx context.Context) {
	m.deps.Hub.Run(ctx)
}

func (m *WebSocketManager) onDrop(group string, sub *channels.Subscriber) {
	logger.Warn("evicted slow websocket subscriber", "group", group, "subscriber", sub.ID)
	m.deps.Metrics.Dropped(metrics.ReasonSlowConsumer)
}

func (m *WebSocketManager) checkOrigin(r *http.Request) bool {
	if len(m.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range m.opts.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// authenticate reads the token from the query string, falling back to the
// Authorization header.
func (m *WebSocketManager) authenticate(r *http.Request) (*auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if token == "" {
		return nil, auth.ErrInvalidToken
	}
	return m.deps.Tokens.Parse(token)
}

func (m *WebSocketManager) authorize(ctx context.Context, stream Stream, claims *auth.Claims, targetID string) (bool, error) {
	switch stream {
	case StreamUser:
		return auth.CanViewUserStream(claims, targetID), nil
	case StreamProject:
		if claims.IsStaff {
			return true, nil
		}
		return m.deps.Projects.IsMember(ctx, targetID, claims.UserID)
	case StreamMeeting:
		if claims.IsStaff {
			return true, nil
		}
		return m.deps.Meetings.IsParticipant(ctx, targetID, claims.UserID)
	case StreamSystem:
		return claims.IsStaff, nil
	}
	return false, nil
}

// username resolves the display name used in chat and presence frames.
func (m *WebSocketManager) username(ctx context.Context, userID string) string {
	if m.deps.Users == nil {
		return userID
	}
	user, err := m.deps.Users.FindByID(ctx, userID)
	if err != nil {
		return userID
	}
	return user.Username
}

func (m *WebSocketManager) reject(conn *websocket.Conn, stream Stream, code int, reason string) {
	m.deps.Metrics.WSRejected.WithLabelValues(string(stream), strconv.Itoa(code)).Inc()
	deadline := time.Now().Add(m.opts.WriteWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}

// serve upgrades the request, checks identity and access, then runs the
// connection until either side closes it.
func (m *WebSocketManager) serve(w http.ResponseWriter, r *http.Request, stream Stream, addr channels.Address) {
	ctx := context.WithoutCancel(r.Context())

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.CtxWarn(ctx, "websocket upgrade failed", "stream", stream, "error", err)
		return
	}

	claims, err := m.authenticate(r)
	if err != nil {
		m.reject(conn, stream, CloseUnauthenticated, "authentication required")
		return
	}
	ctx = logger.WithUserID(ctx, claims.UserID)

	allowed, err := m.authorize(ctx, stream, claims, addr.ID())
	if err != nil {
		logger.CtxWithError(ctx, "websocket authorization failed", err, "stream", stream)
		m.reject(conn, stream, websocket.CloseInternalServerErr, "authorization unavailable")
		return
	}
	if !allowed {
		m.reject(conn, stream, CloseForbidden, "forbidden")
		return
	}

	client := newClient(m, conn, stream, addr, claims)
	client.run(ctx)
}
