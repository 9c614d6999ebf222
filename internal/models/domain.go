package models

import "time"

// The entities below carry only the fields notification triggers read.

type Project struct {
	BaseModel
	Name        string        `gorm:"size:200;not null" json:"name"`
	OwnerID     string        `gorm:"type:uuid;not null;index" json:"owner_id"`
	Status      ProjectStatus `gorm:"size:20;not null" json:"status"`
	TeamMembers []User        `gorm:"many2many:project_team_members" json:"-"`
}

type Task struct {
	BaseModel
	ProjectID  string     `gorm:"type:uuid;not null;index" json:"project_id"`
	Title      string     `gorm:"size:200;not null" json:"title"`
	AssigneeID *string    `gorm:"type:uuid;index" json:"assignee_id"`
	Status     TaskStatus `gorm:"size:20;not null" json:"status"`
	DueDate    *time.Time `gorm:"index" json:"due_date"`
}

type Meeting struct {
	BaseModel
	Title       string        `gorm:"size:200;not null" json:"title"`
	OrganizerID string        `gorm:"type:uuid;not null;index" json:"organizer_id"`
	StartTime   time.Time     `gorm:"not null;index" json:"start_time"`
	Status      MeetingStatus `gorm:"size:20;not null" json:"status"`
	Attendees   []User        `gorm:"many2many:meeting_attendees" json:"-"`
}

type Course struct {
	BaseModel
	Title        string `gorm:"size:200;not null" json:"title"`
	InstructorID string `gorm:"type:uuid;index" json:"instructor_id"`
}

type Enrollment struct {
	BaseModel
	CourseID  string `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_course_student" json:"course_id"`
	StudentID string `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_course_student" json:"student_id"`
}

type Assignment struct {
	BaseModel
	CourseID string    `gorm:"type:uuid;not null;index" json:"course_id"`
	Title    string    `gorm:"size:200;not null" json:"title"`
	DueDate  time.Time `gorm:"not null;index" json:"due_date"`
}

type Invoice struct {
	BaseModel
	Number       string        `gorm:"size:50;not null;uniqueIndex" json:"number"`
	ClientUserID string        `gorm:"type:uuid;not null;index" json:"client_user_id"`
	Amount       float64       `gorm:"not null" json:"amount"`
	Currency     string        `gorm:"size:3;not null" json:"currency"`
	Status       InvoiceStatus `gorm:"size:20;not null" json:"status"`
}

// Comment targets either a project or a task, by type and id.
type Comment struct {
	BaseModel
	AuthorID   string `gorm:"type:uuid;not null;index" json:"author_id"`
	ObjectType string `gorm:"size:20;not null" json:"object_type"`
	ObjectID   string `gorm:"type:uuid;not null;index" json:"object_id"`
	Content    string `gorm:"type:text;not null" json:"content"`
}

// AllModels lists every table for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Notification{},
		&NotificationPreference{},
		&NotificationTemplate{},
		&Project{},
		&Task{},
		&Meeting{},
		&Course{},
		&Enrollment{},
		&Assignment{},
		&Invoice{},
		&Comment{},
	}
}
