package services

import (
	"context"
	"errors"
	"fmt"

	"ecosystia_backend/internal/logger"
	"ecosystia_backend/internal/models"
	"ecosystia_backend/internal/repositories"
	"ecosystia_backend/pkg/apperrors"
)

type CourseService interface {
	Enroll(ctx context.Context, courseID, studentID string) (*models.Enrollment, error)
}

type courseService struct {
	courses  repositories.CourseRepository
	notifier NotificationService
}

func NewCourseService(repos *repositories.Container, notifier NotificationService) CourseService {
	return &courseService{courses: repos.Courses, notifier: notifier}
}

func (s *courseService) Enroll(ctx context.Context, courseID, studentID string) (*models.Enrollment, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, repositories.ErrCourseNotFound) {
			return nil, apperrors.ErrCourseNotFound
		}
		return nil, apperrors.InternalError(err)
	}

	enrollment := &models.Enrollment{CourseID: courseID, StudentID: studentID}
	if err := s.courses.Enroll(ctx, enrollment); err != nil {
		if errors.Is(err, repositories.ErrAlreadyEnrolled) {
			return nil, apperrors.ErrAlreadyEnrolled
		}
		return nil, apperrors.InternalError(err)
	}

	p := Payload{
		Title:             "Inscription confirmée",
		Message:           fmt.Sprintf("Vous êtes maintenant inscrit au cours \"%s\"", course.Title),
		Type:              models.NotificationTypeSuccess,
		Category:          models.CategoryCourse,
		RelatedObjectID:   courseID,
		RelatedObjectType: "course",
		ActionURL:         fmt.Sprintf("/courses/%s/", courseID),
		SendEmail:         true,
	}
	if err := s.notifier.SendToUser(ctx, studentID, p, true); err != nil {
		logger.CtxWithError(ctx, "enrollment saved but notification failed", err, "course_id", courseID)
	}
	return enrollment, nil
}
