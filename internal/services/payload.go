package services

import (
	"encoding/json"
	"strings"

	"ecosystia_backend/internal/channels"
	"ecosystia_backend/internal/models"

	"gorm.io/datatypes"
)

// Payload is the content of a notification before it is addressed.
type Payload struct {
	Title             string
	Message           string
	Type              models.NotificationType
	Category          models.NotificationCategory
	SenderID          string
	RelatedObjectID   string
	RelatedObjectType string
	ActionURL         string
	Metadata          map[string]interface{}

	// Side channels, subject to the recipient's preferences.
	SendEmail bool
	SendPush  bool
}

func (p Payload) withDefaults() Payload {
	if p.Type == "" {
		p.Type = models.NotificationTypeInfo
	}
	if p.Category == "" {
		p.Category = models.CategorySystem
	}
	return p
}

// copyFor returns an independent copy, so per-recipient sends never share maps.
func (p Payload) copyFor() Payload {
	if p.Metadata != nil {
		m := make(map[string]interface{}, len(p.Metadata))
		for k, v := range p.Metadata {
			m[k] = v
		}
		p.Metadata = m
	}
	return p
}

func (p Payload) toModel(recipientID string) *models.Notification {
	n := &models.Notification{
		RecipientID:       recipientID,
		Title:             p.Title,
		Message:           p.Message,
		Type:              p.Type,
		Category:          p.Category,
		RelatedObjectID:   p.RelatedObjectID,
		RelatedObjectType: p.RelatedObjectType,
		ActionURL:         p.ActionURL,
	}
	if p.SenderID != "" {
		sender := p.SenderID
		n.SenderID = &sender
	}
	if len(p.Metadata) > 0 {
		if raw, err := json.Marshal(p.Metadata); err == nil {
			n.Metadata = datatypes.JSON(raw)
		}
	}
	return n
}

func (p Payload) frame() channels.Payload {
	return channels.Payload{
		Title:             p.Title,
		Message:           p.Message,
		Type:              string(p.Type),
		Category:          string(p.Category),
		SenderID:          p.SenderID,
		RelatedObjectID:   p.RelatedObjectID,
		RelatedObjectType: p.RelatedObjectType,
		ActionURL:         p.ActionURL,
		Metadata:          p.Metadata,
	}
}

// FramePayload converts a stored notification into its wire form.
func FramePayload(n *models.Notification) channels.Payload {
	out := channels.Payload{
		ID:                n.ID,
		Title:             n.Title,
		Message:           n.Message,
		Type:              string(n.Type),
		Category:          string(n.Category),
		RelatedObjectID:   n.RelatedObjectID,
		RelatedObjectType: n.RelatedObjectType,
		ActionURL:         n.ActionURL,
		IsRead:            n.IsRead,
	}
	if n.SenderID != nil {
		out.SenderID = *n.SenderID
	}
	if len(n.Metadata) > 0 {
		_ = json.Unmarshal(n.Metadata, &out.Metadata)
	}
	created := n.CreatedAt
	out.CreatedAt = &created
	return out
}

// RenderTemplate performs naive {key} substitution. Unknown placeholders are left as-is.
func RenderTemplate(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
