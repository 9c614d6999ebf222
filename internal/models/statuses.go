package models

type NotificationType string
type NotificationCategory string
type DigestFrequency string
type ProjectStatus string
type TaskStatus string
type MeetingStatus string
type InvoiceStatus string

const (
	NotificationTypeInfo     NotificationType = "info"
	NotificationTypeSuccess  NotificationType = "success"
	NotificationTypeWarning  NotificationType = "warning"
	NotificationTypeError    NotificationType = "error"
	NotificationTypeMessage  NotificationType = "message"
	NotificationTypeReminder NotificationType = "reminder"

	CategorySystem  NotificationCategory = "system"
	CategoryProject NotificationCategory = "project"
	CategoryCourse  NotificationCategory = "course"
	CategoryMeeting NotificationCategory = "meeting"
	CategoryFinance NotificationCategory = "finance"
	CategoryCRM     NotificationCategory = "crm"
	CategoryGoal    NotificationCategory = "goal"
	CategoryJob     NotificationCategory = "job"
	CategoryUser    NotificationCategory = "user"

	DigestNever   DigestFrequency = "never"
	DigestDaily   DigestFrequency = "daily"
	DigestWeekly  DigestFrequency = "weekly"
	DigestMonthly DigestFrequency = "monthly"

	ProjectStatusPlanning   ProjectStatus = "planning"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusOnHold     ProjectStatus = "on_hold"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"

	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"

	MeetingStatusScheduled MeetingStatus = "scheduled"
	MeetingStatusCompleted MeetingStatus = "completed"
	MeetingStatusCancelled MeetingStatus = "cancelled"

	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeInfo, NotificationTypeSuccess, NotificationTypeWarning,
		NotificationTypeError, NotificationTypeMessage, NotificationTypeReminder:
		return true
	}
	return false
}

func (c NotificationCategory) Valid() bool {
	switch c {
	case CategorySystem, CategoryProject, CategoryCourse, CategoryMeeting, CategoryFinance,
		CategoryCRM, CategoryGoal, CategoryJob, CategoryUser:
		return true
	}
	return false
}

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusPlanning, ProjectStatusInProgress, ProjectStatusOnHold,
		ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}
