package services

import (
	"ecosystia_backend/internal/auth"
	"ecosystia_backend/internal/channels"
	"ecosystia_backend/internal/email"
	"ecosystia_backend/internal/metrics"
	"ecosystia_backend/internal/push"
	"ecosystia_backend/internal/repositories"
)

// ServiceContainer holds every application service.
type ServiceContainer struct {
	NotificationService NotificationService
	InboxService        InboxService
	DigestService       DigestService
	AuthService         AuthService
	ProjectService      ProjectService
	TaskService         TaskService
	MeetingService      MeetingService
	CourseService       CourseService
	InvoiceService      InvoiceService
	CommentService      CommentService
}

// Dependencies groups the infrastructure services are built from.
type Dependencies struct {
	Repos   *repositories.Container
	Broker  channels.Broker
	Metrics *metrics.Metrics
	Mailer  email.Provider
	Pusher  push.Provider
	Tokens  *auth.TokenManager
}

func NewServiceContainer(deps Dependencies) *ServiceContainer {
	notifier := NewNotificationService(deps.Repos, deps.Broker, deps.Metrics, deps.Mailer, deps.Pusher)

	return &ServiceContainer{
		NotificationService: notifier,
		InboxService:        NewInboxService(deps.Repos, notifier),
		DigestService:       NewDigestService(deps.Repos, notifier, deps.Mailer, deps.Metrics),
		AuthService:         NewAuthService(deps.Repos, deps.Tokens, notifier),
		ProjectService:      NewProjectService(deps.Repos, notifier),
		TaskService:         NewTaskService(deps.Repos, notifier),
		MeetingService:      NewMeetingService(deps.Repos, notifier),
		CourseService:       NewCourseService(deps.Repos, notifier),
		InvoiceService:      NewInvoiceService(deps.Repos, notifier),
		CommentService:      NewCommentService(deps.Repos, notifier),
	}
}
