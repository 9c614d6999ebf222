package dto

import (
	"time"

	"ecosystia_backend/internal/models"
)

// ---------------- Requests ----------------

type CreateNotificationRequest struct {
	// RecipientID defaults to the caller; only staff may address someone else.
	RecipientID       string                 `json:"recipient_id" validate:"omitempty,uuid"`
	Title             string                 `json:"title" validate:"required,max=255"`
	Message           string                 `json:"message" validate:"required,max=5000"`
	Type              string                 `json:"notification_type" validate:"omitempty,is-notification-type"`
	Category          string                 `json:"category" validate:"omitempty,is-notification-category"`
	RelatedObjectID   string                 `json:"related_object_id" validate:"omitempty,max=64"`
	RelatedObjectType string                 `json:"related_object_type" validate:"omitempty,max=50"`
	ActionURL         string                 `json:"action_url" validate:"omitempty,max=500"`
	Metadata          map[string]interface{} `json:"metadata"`
}

// UpdateNotificationRequest only accepts the unread -> read transition.
type UpdateNotificationRequest struct {
	IsRead *bool `json:"is_read" validate:"required"`
}

type NotificationListQuery struct {
	Type     string `form:"notification_type" validate:"omitempty,is-notification-type"`
	Category string `form:"category" validate:"omitempty,is-notification-category"`
	IsRead   *bool  `form:"is_read"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

type UpdatePreferencesRequest struct {
	EmailNotifications   *bool  `json:"email_notifications"`
	PushNotifications    *bool  `json:"push_notifications"`
	InAppNotifications   *bool  `json:"in_app_notifications"`
	ProjectNotifications *bool  `json:"project_notifications"`
	CourseNotifications  *bool  `json:"course_notifications"`
	MeetingNotifications *bool  `json:"meeting_notifications"`
	FinanceNotifications *bool  `json:"finance_notifications"`
	CRMNotifications     *bool  `json:"crm_notifications"`
	GoalNotifications    *bool  `json:"goal_notifications"`
	JobNotifications     *bool  `json:"job_notifications"`
	SystemNotifications  *bool  `json:"system_notifications"`
	DigestFrequency      string `json:"digest_frequency" validate:"omitempty,is-digest-frequency"`
}

type SystemNotificationRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Message string `json:"message" validate:"required,max=5000"`
	Type    string `json:"notification_type" validate:"omitempty,is-notification-type"`
}

type CreateTemplateRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	TitleTemplate   string `json:"title_template" validate:"required,max=255"`
	MessageTemplate string `json:"message_template" validate:"required"`
	Type            string `json:"notification_type" validate:"required,is-notification-type"`
	Category        string `json:"category" validate:"required,is-notification-category"`
	SendEmail       bool   `json:"send_email"`
	SendPush        bool   `json:"send_push"`
	IsActive        *bool  `json:"is_active"`
}

type SendTemplateRequest struct {
	UserIDs []string          `json:"user_ids" validate:"required,min=1,dive,uuid"`
	Context map[string]string `json:"context"`
}

// BulkNotificationRequest sends the same notification to many users, now or
// after DelaySeconds.
type BulkNotificationRequest struct {
	UserIDs      []string `json:"user_ids" validate:"required,min=1,max=5000,dive,uuid"`
	Title        string   `json:"title" validate:"required,max=255"`
	Message      string   `json:"message" validate:"required,max=5000"`
	Type         string   `json:"notification_type" validate:"omitempty,is-notification-type"`
	Category     string   `json:"category" validate:"omitempty,is-notification-category"`
	ActionURL    string   `json:"action_url" validate:"omitempty,max=500"`
	DelaySeconds int      `json:"delay_seconds" validate:"gte=0,lte=604800"`
}

// ---------------- Responses ----------------

type NotificationResponse struct {
	ID                string                      `json:"id"`
	RecipientID       string                      `json:"recipient_id"`
	SenderID          *string                     `json:"sender_id,omitempty"`
	Title             string                      `json:"title"`
	Message           string                      `json:"message"`
	Type              models.NotificationType     `json:"notification_type"`
	Category          models.NotificationCategory `json:"category"`
	IsRead            bool                        `json:"is_read"`
	ReadAt            *time.Time                  `json:"read_at"`
	CreatedAt         time.Time                   `json:"created_at"`
	RelatedObjectID   string                      `json:"related_object_id,omitempty"`
	RelatedObjectType string                      `json:"related_object_type,omitempty"`
	ActionURL         string                      `json:"action_url,omitempty"`
	Metadata          map[string]interface{}      `json:"metadata,omitempty"`
}

type NotificationListResponse struct {
	Notifications []*NotificationResponse `json:"notifications"`
	Total         int64                   `json:"total"`
	Page          int                     `json:"page"`
	PageSize      int                     `json:"page_size"`
	TotalPages    int                     `json:"total_pages"`
}

type UnreadCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}

type BulkNotificationResponse struct {
	Recipients   int    `json:"recipients"`
	Sent         int    `json:"sent"`
	DelaySeconds int    `json:"delay_seconds,omitempty"`
	Status       string `json:"status"`
}
