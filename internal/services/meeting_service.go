package services

import (
	"context"
	"fmt"

	"ecosystia_backend/internal/channels"
	"ecosystia_backend/internal/logger"
	"ecosystia_backend/internal/models"
	"ecosystia_backend/internal/repositories"
	"ecosystia_backend/internal/services/dto"
	"ecosystia_backend/pkg/apperrors"
)

type MeetingService interface {
	Create(ctx context.Context, organizerID string, req *dto.CreateMeetingRequest) (*models.Meeting, error)
	// IsParticipant reports whether userID may join the meeting's chat stream.
	IsParticipant(ctx context.Context, meetingID, userID string) (bool, error)
	Chat(ctx context.Context, meetingID string, sender channels.UserRef, text string) error
}

type meetingService struct {
	meetings repositories.MeetingRepository
	users    repositories.UserRepository
	notifier NotificationService
}

func NewMeetingService(repos *repositories.Container, notifier NotificationService) MeetingService {
	return &meetingService{meetings: repos.Meetings, users: repos.Users, notifier: notifier}
}

func (s *meetingService) Create(ctx context.Context, organizerID string, req *dto.CreateMeetingRequest) (*models.Meeting, error) {
	organizer, err := s.users.FindByID(ctx, organizerID)
	if err != nil {
		return nil, mapUserErr(err)
	}

	ids := unique(req.AttendeeIDs)
	attendees, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if len(attendees) != len(ids) {
		return nil, apperrors.ErrUserNotFound
	}

	meeting := &models.Meeting{
		Title:       req.Title,
		OrganizerID: organizerID,
		StartTime:   req.StartTime.UTC(),
		Status:      models.MeetingStatusScheduled,
		Attendees:   attendees,
	}
	if err := s.meetings.Create(ctx, meeting); err != nil {
		return nil, apperrors.InternalError(err)
	}

	p := Payload{
		Title:             "Nouvelle réunion programmée",
		Message:           fmt.Sprintf("%s vous a invité à la réunion \"%s\"", organizer.Username, meeting.Title),
		Type:              models.NotificationTypeInfo,
		Category:          models.CategoryMeeting,
		SenderID:          organizerID,
		RelatedObjectID:   meeting.ID,
		RelatedObjectType: "meeting",
		ActionURL:         fmt.Sprintf("/meetings/%s/", meeting.ID),
	}
	if err := s.notifier.SendToMultipleUsers(ctx, exclude(ids, organizerID), p, true); err != nil {
		logger.CtxWithError(ctx, "meeting created but notification failed", err, "meeting_id", meeting.ID)
	}
	return meeting, nil
}

func (s *meetingService) IsParticipant(ctx context.Context, meetingID, userID string) (bool, error) {
	return s.meetings.IsParticipant(ctx, meetingID, userID)
}

func (s *meetingService) Chat(ctx context.Context, meetingID string, sender channels.UserRef, text string) error {
	return s.notifier.SendMeetingChatMessage(ctx, meetingID, sender, text)
}
