package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is one message addressed to exactly one recipient.
// ReadAt is set if and only if IsRead is true. RecipientID and CreatedAt are write-once.
type Notification struct {
	BaseModel
	RecipientID       string               `gorm:"type:uuid;not null;index:idx_notifications_recipient_read;<-:create" json:"recipient_id"`
	SenderID          *string              `gorm:"type:uuid" json:"sender_id,omitempty"`
	Title             string               `gorm:"size:255;not null" json:"title"`
	Message           string               `gorm:"type:text;not null" json:"message"`
	Type              NotificationType     `gorm:"column:notification_type;size:20;not null;index" json:"notification_type"`
	Category          NotificationCategory `gorm:"size:20;not null;index" json:"category"`
	IsRead            bool                 `gorm:"not null;index:idx_notifications_recipient_read" json:"is_read"`
	ReadAt            *time.Time           `json:"read_at"`
	RelatedObjectID   string               `gorm:"size:64" json:"related_object_id,omitempty"`
	RelatedObjectType string               `gorm:"size:50" json:"related_object_type,omitempty"`
	ActionURL         string               `gorm:"size:500" json:"action_url,omitempty"`
	Metadata          datatypes.JSON       `json:"metadata,omitempty"`
}

// NotificationPreference is created lazily for each user on first access.
type NotificationPreference struct {
	BaseModel
	UserID string `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`

	EmailNotifications bool `gorm:"not null" json:"email_notifications"`
	PushNotifications  bool `gorm:"not null" json:"push_notifications"`
	InAppNotifications bool `gorm:"not null" json:"in_app_notifications"`

	ProjectNotifications bool `gorm:"not null" json:"project_notifications"`
	CourseNotifications  bool `gorm:"not null" json:"course_notifications"`
	MeetingNotifications bool `gorm:"not null" json:"meeting_notifications"`
	FinanceNotifications bool `gorm:"not null" json:"finance_notifications"`
	CRMNotifications     bool `gorm:"not null" json:"crm_notifications"`
	GoalNotifications    bool `gorm:"not null" json:"goal_notifications"`
	JobNotifications     bool `gorm:"not null" json:"job_notifications"`
	SystemNotifications  bool `gorm:"not null" json:"system_notifications"`

	DigestFrequency DigestFrequency `gorm:"size:10;not null" json:"digest_frequency"`
}

// DefaultPreference is what get-or-create stores for a new user: everything on, daily digest.
func DefaultPreference(userID string) *NotificationPreference {
	return &NotificationPreference{
		UserID:               userID,
		EmailNotifications:   true,
		PushNotifications:    true,
		InAppNotifications:   true,
		ProjectNotifications: true,
		CourseNotifications:  true,
		MeetingNotifications: true,
		FinanceNotifications: true,
		CRMNotifications:     true,
		GoalNotifications:    true,
		JobNotifications:     true,
		SystemNotifications:  true,
		DigestFrequency:      DigestDaily,
	}
}

// Allows reports whether the user accepts notifications of category c at all.
func (p *NotificationPreference) Allows(c NotificationCategory) bool {
	switch c {
	case CategoryProject:
		return p.ProjectNotifications
	case CategoryCourse:
		return p.CourseNotifications
	case CategoryMeeting:
		return p.MeetingNotifications
	case CategoryFinance:
		return p.FinanceNotifications
	case CategoryCRM:
		return p.CRMNotifications
	case CategoryGoal:
		return p.GoalNotifications
	case CategoryJob:
		return p.JobNotifications
	case CategorySystem:
		return p.SystemNotifications
	}
	return true
}

// NotificationTemplate is reusable copy with {placeholder} substitution.
type NotificationTemplate struct {
	BaseModel
	Name            string               `gorm:"size:100;not null;uniqueIndex" json:"name"`
	TitleTemplate   string               `gorm:"size:255;not null" json:"title_template"`
	MessageTemplate string               `gorm:"type:text;not null" json:"message_template"`
	Type            NotificationType     `gorm:"size:20;not null" json:"notification_type"`
	Category        NotificationCategory `gorm:"size:20;not null" json:"category"`
	SendEmail       bool                 `gorm:"not null" json:"send_email"`
	SendPush        bool                 `gorm:"not null" json:"send_push"`
	IsActive        bool                 `gorm:"not null" json:"is_active"`
}
