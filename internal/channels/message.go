package channels

import "time"

// Server frame types.
const (
	FrameConnectionEstablished = "connection_established"
	FrameNotification          = "notification"
	FrameUnreadNotifications   = "unread_notifications"
	FrameProjectUpdate         = "project_update"
	FrameSystemNotification    = "system_notification"
	FrameChatMessage           = "chat_message"
	FrameUserJoined            = "user_joined"
	FrameUserLeft              = "user_left"
	FramePong                  = "pong"
	FrameError                 = "error"
)

// Payload is the notification content carried by notification frames.
type Payload struct {
	ID                string                 `json:"id,omitempty"`
	Title             string                 `json:"title"`
	Message           string                 `json:"message"`
	Type              string                 `json:"notification_type"`
	Category          string                 `json:"category"`
	SenderID          string                 `json:"sender_id,omitempty"`
	RelatedObjectID   string                 `json:"related_object_id,omitempty"`
	RelatedObjectType string                 `json:"related_object_type,omitempty"`
	ActionURL         string                 `json:"action_url,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	IsRead            bool                   `json:"is_read"`
	CreatedAt         *time.Time             `json:"created_at,omitempty"`
}

// UserRef identifies the author of a chat or presence frame.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Message is one server-to-client frame. Every frame carries a timestamp.
type Message struct {
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	Message       string    `json:"message,omitempty"`
	Notification  *Payload  `json:"notification,omitempty"`
	Notifications []Payload `json:"notifications,omitempty"`
	Count         *int      `json:"count,omitempty"`
	User          *UserRef  `json:"user,omitempty"`
	Group         string    `json:"group,omitempty"`
}

// NewMessage stamps a frame of the given type with the current time.
func NewMessage(frameType string) Message {
	return Message{Type: frameType, Timestamp: time.Now().UTC()}
}

func NotificationMessage(p Payload) Message {
	m := NewMessage(FrameNotification)
	m.Notification = &p
	return m
}

func UnreadMessage(list []Payload) Message {
	m := NewMessage(FrameUnreadNotifications)
	if list == nil {
		list = []Payload{}
	}
	n := len(list)
	m.Notifications = list
	m.Count = &n
	return m
}

func ErrorMessage(text string) Message {
	m := NewMessage(FrameError)
	m.Message = text
	return m
}
