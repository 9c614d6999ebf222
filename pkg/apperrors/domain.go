package apperrors

import (
	"net/http"
)

// ErrInvalidStatus rejects a status value the domain does not know.
func ErrInvalidStatus(domain, message string) *AppError {
	return New(CodeInvalidStatus, domain, message, http.StatusBadRequest)
}

// Notifications

var ErrNotificationNotFound = New(
	CodeNotFound,
	"notification",
	"Notification not found",
	http.StatusNotFound,
)

// ErrNotificationUnreadOnly is returned when a client tries to flip a read notification back.
var ErrNotificationUnreadOnly = New(
	CodeInvalidOperation,
	"notification",
	"A notification can only transition from unread to read",
	http.StatusBadRequest,
)

var ErrTemplateNotFound = New(
	CodeNotFound,
	"notification_template",
	"Notification template not found",
	http.StatusNotFound,
)

var ErrStaffOnly = New(
	CodeForbidden,
	"auth",
	"This action requires staff rights",
	http.StatusForbidden,
)

// Auth

var ErrEmailAlreadyExists = New(
	CodeAlreadyExists,
	"auth",
	"User with this email already exists",
	http.StatusConflict,
)

var ErrInvalidCredentials = New(
	CodeInvalidCredentials,
	"auth",
	"Invalid email or password",
	http.StatusUnauthorized,
)

var ErrInvalidToken = New(
	CodeInvalidToken,
	"auth",
	"Invalid or expired token",
	http.StatusUnauthorized,
)

// Domain entities the notification triggers act on

var ErrProjectNotFound = New(CodeNotFound, "project", "Project not found", http.StatusNotFound)
var ErrTaskNotFound = New(CodeNotFound, "task", "Task not found", http.StatusNotFound)
var ErrMeetingNotFound = New(CodeNotFound, "meeting", "Meeting not found", http.StatusNotFound)
var ErrCourseNotFound = New(CodeNotFound, "course", "Course not found", http.StatusNotFound)
var ErrInvoiceNotFound = New(CodeNotFound, "invoice", "Invoice not found", http.StatusNotFound)
var ErrUserNotFound = New(CodeNotFound, "user", "User not found", http.StatusNotFound)

var ErrAlreadyEnrolled = New(
	CodeAlreadyExists,
	"course",
	"User is already enrolled in this course",
	http.StatusConflict,
)
