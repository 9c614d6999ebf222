package repositories

import (
	"context"
	"errors"
	"time"

	"ecosystia_backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrCourseNotFound  = errors.New("course not found")
	ErrAlreadyEnrolled = errors.New("already enrolled")
)

type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Enroll(ctx context.Context, enrollment *models.Enrollment) error
	StudentIDs(ctx context.Context, courseID string) ([]string, error)
	CreateAssignment(ctx context.Context, a *models.Assignment) error
	FindAssignmentsDueBetween(ctx context.Context, from, to time.Time) ([]models.Assignment, error)
}

type CourseRepositoryImpl struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &CourseRepositoryImpl{db: db}
}

func (r *CourseRepositoryImpl) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *CourseRepositoryImpl) FindByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&course).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepositoryImpl) Enroll(ctx context.Context, enrollment *models.Enrollment) error {
	db := r.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Enrollment{}).
		Where("course_id = ? AND student_id = ?", enrollment.CourseID, enrollment.StudentID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrAlreadyEnrolled
	}
	return db.Create(enrollment).Error
}

func (r *CourseRepositoryImpl) StudentIDs(ctx context.Context, courseID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("course_id = ?", courseID).
		Pluck("student_id", &ids).Error
	return ids, err
}

func (r *CourseRepositoryImpl) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *CourseRepositoryImpl) FindAssignmentsDueBetween(ctx context.Context, from, to time.Time) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Where("due_date >= ? AND due_date <= ?", from, to).
		Order("due_date").
		Find(&assignments).Error
	return assignments, err
}
