package repositories

import (
	"context"
	"errors"
	"time"

	"ecosystia_backend/internal/models"

	"gorm.io/gorm"
)

var ErrMeetingNotFound = errors.New("meeting not found")

type MeetingRepository interface {
	Create(ctx context.Context, meeting *models.Meeting) error
	FindByID(ctx context.Context, id string) (*models.Meeting, error)
	// ParticipantIDs returns attendees and the organizer, without duplicates.
	ParticipantIDs(ctx context.Context, id string) ([]string, error)
	IsParticipant(ctx context.Context, id, userID string) (bool, error)
	FindStartingBetween(ctx context.Context, from, to time.Time) ([]models.Meeting, error)
}

type MeetingRepositoryImpl struct {
	db *gorm.DB
}

func NewMeetingRepository(db *gorm.DB) MeetingRepository {
	return &MeetingRepositoryImpl{db: db}
}

func (r *MeetingRepositoryImpl) Create(ctx context.Context, meeting *models.Meeting) error {
	return r.db.WithContext(ctx).Create(meeting).Error
}

func (r *MeetingRepositoryImpl) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	var meeting models.Meeting
	err := r.db.WithContext(ctx).Preload("Attendees").Where("id = ?", id).First(&meeting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, err
	}
	return &meeting, nil
}

func (r *MeetingRepositoryImpl) ParticipantIDs(ctx context.Context, id string) ([]string, error) {
	meeting, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(meeting.Attendees)+1)
	for _, a := range meeting.Attendees {
		ids = append(ids, a.ID)
	}
	return appendUnique(ids, meeting.OrganizerID), nil
}

func (r *MeetingRepositoryImpl) IsParticipant(ctx context.Context, id, userID string) (bool, error) {
	db := r.db.WithContext(ctx)

	var organized int64
	if err := db.Model(&models.Meeting{}).Where("id = ? AND organizer_id = ?", id, userID).Count(&organized).Error; err != nil {
		return false, err
	}
	if organized > 0 {
		return true, nil
	}

	var attending int64
	err := db.Table("meeting_attendees").
		Where("meeting_id = ? AND user_id = ?", id, userID).
		Count(&attending).Error
	return attending > 0, err
}

// FindStartingBetween returns scheduled meetings with from <= start_time <= to.
func (r *MeetingRepositoryImpl) FindStartingBetween(ctx context.Context, from, to time.Time) ([]models.Meeting, error) {
	var meetings []models.Meeting
	err := r.db.WithContext(ctx).
		Preload("Attendees").
		Where("status = ? AND start_time >= ? AND start_time <= ?", models.MeetingStatusScheduled, from, to).
		Order("start_time").
		Find(&meetings).Error
	return meetings, err
}
