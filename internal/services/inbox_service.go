package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ecosystia_backend/internal/channels"
	"ecosystia_backend/internal/models"
	"ecosystia_backend/internal/repositories"
	"ecosystia_backend/internal/services/dto"
	"ecosystia_backend/pkg/apperrors"
)

const (
	UnreadSnapshotLimit = 20
	recentWindow        = 24 * time.Hour
	recentLimit         = 20
)

// InboxService is the recipient-facing side of notifications: listing,
// reading, deleting and preferences.
type InboxService interface {
	List(ctx context.Context, userID string, q dto.NotificationListQuery) (*dto.NotificationListResponse, error)
	// Get returns one notification and marks it read if it was unread.
	Get(ctx context.Context, userID, id string) (*dto.NotificationResponse, error)
	Create(ctx context.Context, callerID string, callerIsStaff bool, req *dto.CreateNotificationRequest) (*dto.NotificationResponse, error)
	Update(ctx context.Context, userID, id string, req *dto.UpdateNotificationRequest) (*dto.NotificationResponse, error)
	Delete(ctx context.Context, userID, id string) error

	MarkAsRead(ctx context.Context, userID, id string) error
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
	DeleteRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	Recent(ctx context.Context, userID string) ([]*dto.NotificationResponse, error)
	UnreadSnapshot(ctx context.Context, userID string) ([]channels.Payload, error)
	Stats(ctx context.Context, userID string) (*repositories.NotificationStats, error)

	GetPreferences(ctx context.Context, userID string) (*models.NotificationPreference, error)
	UpdatePreferences(ctx context.Context, userID string, req *dto.UpdatePreferencesRequest) (*models.NotificationPreference, error)

	ListTemplates(ctx context.Context) ([]models.NotificationTemplate, error)
	CreateTemplate(ctx context.Context, req *dto.CreateTemplateRequest) (*models.NotificationTemplate, error)
}

type inboxService struct {
	notifications repositories.NotificationRepository
	preferences   repositories.PreferenceRepository
	templates     repositories.TemplateRepository
	users         repositories.UserRepository
	notifier      NotificationService
	now           func() time.Time
}

func NewInboxService(repos *repositories.Container, notifier NotificationService) InboxService {
	return &inboxService{
		notifications: repos.Notifications,
		preferences:   repos.Preferences,
		templates:     repos.Templates,
		users:         repos.Users,
		notifier:      notifier,
		now:           time.Now,
	}
}

func (s *inboxService) List(ctx context.Context, userID string, q dto.NotificationListQuery) (*dto.NotificationListResponse, error) {
	page, pageSize := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	list, total, err := s.notifications.FindForRecipient(ctx, userID, repositories.NotificationFilter{
		Type:     models.NotificationType(q.Type),
		Category: models.NotificationCategory(q.Category),
		IsRead:   q.IsRead,
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return &dto.NotificationListResponse{
		Notifications: toResponses(list),
		Total:         total,
		Page:          page,
		PageSize:      pageSize,
		TotalPages:    int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}

func (s *inboxService) Get(ctx context.Context, userID, id string) (*dto.NotificationResponse, error) {
	n, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !n.IsRead {
		if _, err := s.notifications.MarkAsRead(ctx, userID, id); err != nil {
			return nil, mapNotificationErr(err)
		}
		if n, err = s.notifications.FindByID(ctx, id); err != nil {
			return nil, mapNotificationErr(err)
		}
	}
	return toResponse(n), nil
}

func (s *inboxService) Create(ctx context.Context, callerID string, callerIsStaff bool, req *dto.CreateNotificationRequest) (*dto.NotificationResponse, error) {
	recipientID := req.RecipientID
	if recipientID == "" {
		recipientID = callerID
	}
	if recipientID != callerID && !callerIsStaff {
		return nil, apperrors.ErrStaffOnly
	}
	if _, err := s.users.FindByID(ctx, recipientID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.InternalError(err)
	}

	p := Payload{
		Title:             req.Title,
		Message:           req.Message,
		Type:              models.NotificationType(req.Type),
		Category:          models.NotificationCategory(req.Category),
		RelatedObjectID:   req.RelatedObjectID,
		RelatedObjectType: req.RelatedObjectType,
		ActionURL:         req.ActionURL,
		Metadata:          req.Metadata,
	}.withDefaults()
	if recipientID != callerID {
		p.SenderID = callerID
	}

	n := p.toModel(recipientID)
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, apperrors.InternalError(err)
	}
	s.notifier.PublishToGroup(ctx, channels.PerUser(recipientID), channels.NotificationMessage(FramePayload(n)))
	return toResponse(n), nil
}

func (s *inboxService) Update(ctx context.Context, userID, id string, req *dto.UpdateNotificationRequest) (*dto.NotificationResponse, error) {
	n, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.IsRead != nil && !*req.IsRead {
		if n.IsRead {
			return nil, apperrors.ErrNotificationUnreadOnly
		}
		return toResponse(n), nil
	}
	return s.Get(ctx, userID, id)
}

func (s *inboxService) Delete(ctx context.Context, userID, id string) error {
	return mapNotificationErr(s.notifications.Delete(ctx, userID, id))
}

func (s *inboxService) MarkAsRead(ctx context.Context, userID, id string) error {
	_, err := s.notifications.MarkAsRead(ctx, userID, id)
	return mapNotificationErr(err)
}

func (s *inboxService) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.notifications.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, apperrors.InternalError(err)
	}
	return n, nil
}

func (s *inboxService) DeleteRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.notifications.DeleteRead(ctx, userID)
	if err != nil {
		return 0, apperrors.InternalError(err)
	}
	return n, nil
}

func (s *inboxService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.InternalError(err)
	}
	return n, nil
}

func (s *inboxService) Recent(ctx context.Context, userID string) ([]*dto.NotificationResponse, error) {
	list, _, err := s.notifications.FindForRecipient(ctx, userID, repositories.NotificationFilter{
		Since: s.now().Add(-recentWindow),
		Limit: recentLimit,
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return toResponses(list), nil
}

// UnreadSnapshot returns the most recent unread notifications pushed to a
// client when it opens its personal stream.
func (s *inboxService) UnreadSnapshot(ctx context.Context, userID string) ([]channels.Payload, error) {
	list, err := s.notifications.FindUnread(ctx, userID, UnreadSnapshotLimit)
	if err != nil {
		return nil, err
	}
	out := make([]channels.Payload, 0, len(list))
	for i := range list {
		out = append(out, FramePayload(&list[i]))
	}
	return out, nil
}

func (s *inboxService) Stats(ctx context.Context, userID string) (*repositories.NotificationStats, error) {
	stats, err := s.notifications.Stats(ctx, userID, s.now())
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return stats, nil
}

func (s *inboxService) GetPreferences(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	pref, err := s.preferences.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return pref, nil
}

func (s *inboxService) UpdatePreferences(ctx context.Context, userID string, req *dto.UpdatePreferencesRequest) (*models.NotificationPreference, error) {
	pref, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&pref.EmailNotifications, req.EmailNotifications)
	set(&pref.PushNotifications, req.PushNotifications)
	set(&pref.InAppNotifications, req.InAppNotifications)
	set(&pref.ProjectNotifications, req.ProjectNotifications)
	set(&pref.CourseNotifications, req.CourseNotifications)
	set(&pref.MeetingNotifications, req.MeetingNotifications)
	set(&pref.FinanceNotifications, req.FinanceNotifications)
	set(&pref.CRMNotifications, req.CRMNotifications)
	set(&pref.GoalNotifications, req.GoalNotifications)
	set(&pref.JobNotifications, req.JobNotifications)
	set(&pref.SystemNotifications, req.SystemNotifications)
	if req.DigestFrequency != "" {
		pref.DigestFrequency = models.DigestFrequency(req.DigestFrequency)
	}

	if err := s.preferences.Update(ctx, pref); err != nil {
		return nil, apperrors.InternalError(err)
	}
	return pref, nil
}

func (s *inboxService) ListTemplates(ctx context.Context) ([]models.NotificationTemplate, error) {
	list, err := s.templates.List(ctx)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return list, nil
}

func (s *inboxService) CreateTemplate(ctx context.Context, req *dto.CreateTemplateRequest) (*models.NotificationTemplate, error) {
	tpl := &models.NotificationTemplate{
		Name:            req.Name,
		TitleTemplate:   req.TitleTemplate,
		MessageTemplate: req.MessageTemplate,
		Type:            models.NotificationType(req.Type),
		Category:        models.NotificationCategory(req.Category),
		SendEmail:       req.SendEmail,
		SendPush:        req.SendPush,
		IsActive:        req.IsActive == nil || *req.IsActive,
	}
	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, apperrors.InternalError(err)
	}
	return tpl, nil
}

func (s *inboxService) findOwned(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := s.notifications.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotificationErr(err)
	}
	// Other users' notifications look absent rather than forbidden.
	if n.RecipientID != userID {
		return nil, apperrors.ErrNotificationNotFound
	}
	return n, nil
}

func mapNotificationErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotificationNotFound):
		return apperrors.ErrNotificationNotFound
	default:
		return apperrors.InternalError(err)
	}
}

func toResponse(n *models.Notification) *dto.NotificationResponse {
	resp := &dto.NotificationResponse{
		ID:                n.ID,
		RecipientID:       n.RecipientID,
		SenderID:          n.SenderID,
		Title:             n.Title,
		Message:           n.Message,
		Type:              n.Type,
		Category:          n.Category,
		IsRead:            n.IsRead,
		ReadAt:            n.ReadAt,
		CreatedAt:         n.CreatedAt,
		RelatedObjectID:   n.RelatedObjectID,
		RelatedObjectType: n.RelatedObjectType,
		ActionURL:         n.ActionURL,
	}
	if len(n.Metadata) > 0 {
		_ = json.Unmarshal(n.Metadata, &resp.Metadata)
	}
	return resp
}

func toResponses(list []models.Notification) []*dto.NotificationResponse {
	out := make([]*dto.NotificationResponse, 0, len(list))
	for i := range list {
		out = append(out, toResponse(&list[i]))
	}
	return out
}
