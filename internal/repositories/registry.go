package repositories

import "gorm.io/gorm"

// Container groups every repository the services need.
type Container struct {
	Notifications NotificationRepository
	Preferences   PreferenceRepository
	Templates     TemplateRepository
	Users         UserRepository
	Projects      ProjectRepository
	Tasks         TaskRepository
	Meetings      MeetingRepository
	Courses       CourseRepository
	Invoices      InvoiceRepository
	Comments      CommentRepository
}

func NewContainer(db *gorm.DB) *Container {
	return &Container{
		Notifications: NewNotificationRepository(db),
		Preferences:   NewPreferenceRepository(db),
		Templates:     NewTemplateRepository(db),
		Users:         NewUserRepository(db),
		Projects:      NewProjectRepository(db),
		Tasks:         NewTaskRepository(db),
		Meetings:      NewMeetingRepository(db),
		Courses:       NewCourseRepository(db),
		Invoices:      NewInvoiceRepository(db),
		Comments:      NewCommentRepository(db),
	}
}
