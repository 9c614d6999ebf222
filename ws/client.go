package ws

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"ecosystia_backend/internal/auth"
	"ecosystia_backend/internal/channels"
	"ecosystia_backend/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client frame types.
const (
	ActionPing           = "ping"
	ActionMarkAsRead     = "mark_as_read"
	ActionMarkAllAsRead  = "mark_all_as_read"
	ActionChatMessage    = "chat_message"
	connectedMessageText = "Connexion WebSocket établie"
)

type incomingFrame struct {
	Type           string `json:"type"`
	NotificationID string `json:"notification_id"`
	Message        string `json:"message"`
}

// Client is one accepted connection. After run starts, writePump is the only
// goroutine writing to conn.
type Client struct {
	manager *WebSocketManager
	conn    *websocket.Conn
	stream  Stream
	addr    channels.Address
	user    channels.UserRef
	sub     *channels.Subscriber
}

func newClient(m *WebSocketManager, conn *websocket.Conn, stream Stream, addr channels.Address, claims *auth.Claims) *Client {
	return &Client{
		manager: m,
		conn:    conn,
		stream:  stream,
		addr:    addr,
		user:    channels.UserRef{ID: claims.UserID},
		sub:     channels.NewSubscriber(uuid.NewString(), m.opts.SendBuffer),
	}
}

func (c *Client) run(ctx context.Context) {
	deps := c.manager.deps

	if err := deps.Hub.Join(ctx, c.addr, c.sub); err != nil {
		logger.CtxWithError(ctx, "websocket join failed", err, "group", c.addr.Group())
		_ = c.conn.Close()
		return
	}
	gauge := deps.Metrics.WSConnections.WithLabelValues(string(c.stream))
	gauge.Inc()
	defer gauge.Dec()

	hello := channels.NewMessage(channels.FrameConnectionEstablished)
	hello.Message = connectedMessageText
	hello.Group = c.addr.Group()
	c.enqueue(ctx, hello)

	switch c.stream {
	case StreamUser:
		snapshot, err := deps.Inbox.UnreadSnapshot(ctx, c.addr.ID())
		if err != nil {
			logger.CtxWithError(ctx, "unread snapshot failed", err)
		} else {
			c.enqueue(ctx, channels.UnreadMessage(snapshot))
		}
	case StreamMeeting:
		c.user.Username = c.manager.username(ctx, c.user.ID)
		deps.Notifier.PublishToGroup(ctx, c.addr, c.presence(channels.FrameUserJoined))
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		c.writePump(done)
		close(stopped)
	}()

	c.readPump(ctx)

	if err := deps.Hub.Leave(ctx, c.addr, c.sub); err != nil {
		logger.CtxWithError(ctx, "websocket leave failed", err, "group", c.addr.Group())
	}
	if c.stream == StreamMeeting {
		deps.Notifier.PublishToGroup(ctx, c.addr, c.presence(channels.FrameUserLeft))
	}
	close(done)
	<-stopped
}

func (c *Client) presence(frameType string) channels.Message {
	msg := channels.NewMessage(frameType)
	user := c.user
	msg.User = &user
	return msg
}

// enqueue hands a frame to the write pump without blocking. Frames that do
// not fit are dropped; the hub evicts subscribers that stay full.
func (c *Client) enqueue(ctx context.Context, msg channels.Message) {
	select {
	case c.sub.Send <- msg:
	default:
		logger.CtxWarn(ctx, "websocket send buffer full", "type", msg.Type, "group", c.addr.Group())
	}
}

func (c *Client) writePump(done <-chan struct{}) {
	opts := c.manager.opts
	ticker := time.NewTicker(opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	closeWith := func(code int, reason string) {
		deadline := time.Now().Add(opts.WriteWait)
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	}

	for {
		select {
		case msg := <-c.sub.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-c.sub.Dropped():
			closeWith(websocket.CloseTryAgainLater, "consumer too slow")
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			closeWith(websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (c *Client) readPump(ctx context.Context) {
	opts := c.manager.opts
	c.conn.SetReadLimit(opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.CtxWarn(ctx, "websocket closed unexpectedly", "group", c.addr.Group(), "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		c.handle(ctx, data)
	}
}

func (c *Client) handle(ctx context.Context, data []byte) {
	var frame incomingFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.enqueue(ctx, channels.ErrorMessage("Format JSON invalide"))
		return
	}

	deps := c.manager.deps
	switch {
	case frame.Type == ActionPing:
		c.enqueue(ctx, channels.NewMessage(channels.FramePong))

	case frame.Type == ActionMarkAsRead && c.stream == StreamUser:
		if frame.NotificationID == "" {
			c.enqueue(ctx, channels.ErrorMessage("notification_id requis"))
			return
		}
		if err := deps.Inbox.MarkAsRead(ctx, c.user.ID, frame.NotificationID); err != nil {
			c.enqueue(ctx, channels.ErrorMessage("Notification introuvable"))
		}

	case frame.Type == ActionMarkAllAsRead && c.stream == StreamUser:
		if _, err := deps.Inbox.MarkAllAsRead(ctx, c.user.ID); err != nil {
			logger.CtxWithError(ctx, "mark all as read failed", err)
			c.enqueue(ctx, channels.ErrorMessage("Impossible de marquer les notifications"))
		}

	case frame.Type == ActionChatMessage && c.stream == StreamMeeting:
		text := strings.TrimSpace(frame.Message)
		if text == "" {
			c.enqueue(ctx, channels.ErrorMessage("Message vide"))
			return
		}
		if err := deps.Meetings.Chat(ctx, c.addr.ID(), c.user, text); err != nil {
			logger.CtxWithError(ctx, "meeting chat failed", err)
			c.enqueue(ctx, channels.ErrorMessage("Message non envoyé"))
		}

	default:
		c.enqueue(ctx, channels.ErrorMessage("Type de message inconnu: "+frame.Type))
	}
}
