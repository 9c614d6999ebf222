package dto

import "time"

type CreateProjectRequest struct {
	Name          string   `json:"name" validate:"required,max=200"`
	TeamMemberIDs []string `json:"team_member_ids" validate:"omitempty,dive,uuid"`
}

type ChangeProjectStatusRequest struct {
	Status string `json:"status" validate:"required,is-project-status"`
}

type AssignTaskRequest struct {
	// AssigneeID empty means unassign.
	AssigneeID string `json:"assignee_id" validate:"omitempty,uuid"`
}

type CreateMeetingRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	AttendeeIDs []string  `json:"attendee_ids" validate:"omitempty,dive,uuid"`
}

type ChangeInvoiceStatusRequest struct {
	Status string `json:"status" validate:"required,is-invoice-status"`
}

type CreateCommentRequest struct {
	ObjectType string `json:"object_type" validate:"required,oneof=project task"`
	ObjectID   string `json:"object_id" validate:"required,uuid"`
	Content    string `json:"content" validate:"required,max=5000"`
}

// TransitionResponse reports the state change a domain operation performed.
type TransitionResponse struct {
	ID      string `json:"id"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Changed bool   `json:"changed"`
}
