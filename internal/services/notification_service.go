package services

import (
	"context"
	"errors"
	"fmt"

	"ecosystia_backend/internal/channels"
	"ecosystia_backend/internal/email"
	"ecosystia_backend/internal/logger"
	"ecosystia_backend/internal/metrics"
	"ecosystia_backend/internal/push"
	"ecosystia_backend/internal/repositories"
)

// NotificationService is the single entry point for producing notifications.
//
// Missing projects, meetings and templates, and publish failures, never reach
// the caller: they are logged as warnings and counted in
// notifications_dropped_total. Only persistence errors are returned.
type NotificationService interface {
	SendToUser(ctx context.Context, userID string, p Payload, persist bool) error
	SendToMultipleUsers(ctx context.Context, userIDs []string, p Payload, persist bool) error
	SendToProjectMembers(ctx context.Context, projectID string, p Payload, excludeUserID string) error
	SendToMeetingParticipants(ctx context.Context, meetingID string, p Payload, excludeUserID string) error
	SendSystemNotification(ctx context.Context, p Payload) error
	SendFromTemplate(ctx context.Context, templateName string, userIDs []string, vars map[string]string) error
	SendMeetingChatMessage(ctx context.Context, meetingID string, sender channels.UserRef, text string) error
	// PublishToGroup sends a raw frame to a group without persisting anything.
	PublishToGroup(ctx context.Context, addr channels.Address, msg channels.Message)
}

type notificationService struct {
	repos   *repositories.Container
	broker  channels.Broker
	metrics *metrics.Metrics
	mailer  email.Provider
	pusher  push.Provider
}

// NewNotificationService wires the service. mailer and pusher may be nil, in
// which case the corresponding side channel is skipped.
func NewNotificationService(
	repos *repositories.Container,
	broker channels.Broker,
	m *metrics.Metrics,
	mailer email.Provider,
	pusher push.Provider,
) NotificationService {
	return &notificationService{
		repos:   repos,
		broker:  broker,
		metrics: m,
		mailer:  mailer,
		pusher:  pusher,
	}
}

func (s *notificationService) SendToUser(ctx context.Context, userID string, p Payload, persist bool) error {
	p = p.withDefaults()
	frame := p.frame()

	if persist {
		n := p.toModel(userID)
		if err := s.repos.Notifications.Create(ctx, n); err != nil {
			return fmt.Errorf("persist notification for %s: %w", userID, err)
		}
		s.metrics.NotificationsPersisted.WithLabelValues(string(n.Category)).Inc()
		frame = FramePayload(n)
	}

	s.PublishToGroup(ctx, channels.PerUser(userID), channels.NotificationMessage(frame))

	if p.SendEmail || p.SendPush {
		s.deliverSideChannels(ctx, userID, p)
	}
	return nil
}

func (s *notificationService) SendToMultipleUsers(ctx context.Context, userIDs []string, p Payload, persist bool) error {
	var errs []error
	for _, id := range userIDs {
		if err := s.SendToUser(ctx, id, p.copyFor(), persist); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *notificationService) SendToProjectMembers(ctx context.Context, projectID string, p Payload, excludeUserID string) error {
	ids, err := s.repos.Projects.MemberIDs(ctx, projectID)
	if err != nil {
		if errors.Is(err, repositories.ErrProjectNotFound) {
			s.drop(ctx, metrics.ReasonProjectNotFound, "project_id", projectID)
			return nil
		}
		return err
	}

	err = s.SendToMultipleUsers(ctx, exclude(ids, excludeUserID), p, true)

	update := channels.NewMessage(channels.FrameProjectUpdate)
	frame := p.withDefaults().frame()
	update.Notification = &frame
	s.PublishToGroup(ctx, channels.PerProject(projectID), update)
	return err
}

func (s *notificationService) SendToMeetingParticipants(ctx context.Context, meetingID string, p Payload, excludeUserID string) error {
	ids, err := s.repos.Meetings.ParticipantIDs(ctx, meetingID)
	if err != nil {
		if errors.Is(err, repositories.ErrMeetingNotFound) {
			s.drop(ctx, metrics.ReasonMeetingNotFound, "meeting_id", meetingID)
			return nil
		}
		return err
	}
	return s.SendToMultipleUsers(ctx, exclude(ids, excludeUserID), p, true)
}

// SendSystemNotification broadcasts to every connected client. Nothing is stored.
func (s *notificationService) SendSystemNotification(ctx context.Context, p Payload) error {
	p = p.withDefaults()
	frame := p.frame()
	msg := channels.NewMessage(channels.FrameSystemNotification)
	msg.Notification = &frame
	s.PublishToGroup(ctx, channels.System(), msg)
	return nil
}

func (s *notificationService) SendFromTemplate(ctx context.Context, templateName string, userIDs []string, vars map[string]string) error {
	tpl, err := s.repos.Templates.FindActiveByName(ctx, templateName)
	if err != nil {
		if errors.Is(err, repositories.ErrTemplateNotFound) {
			s.drop(ctx, metrics.ReasonTemplateNotFound, "template", templateName)
			return nil
		}
		return err
	}

	p := Payload{
		Title:     RenderTemplate(tpl.TitleTemplate, vars),
		Message:   RenderTemplate(tpl.MessageTemplate, vars),
		Type:      tpl.Type,
		Category:  tpl.Category,
		SendEmail: tpl.SendEmail,
		SendPush:  tpl.SendPush,
	}
	return s.SendToMultipleUsers(ctx, userIDs, p, true)
}

func (s *notificationService) SendMeetingChatMessage(ctx context.Context, meetingID string, sender channels.UserRef, text string) error {
	msg := channels.NewMessage(channels.FrameChatMessage)
	msg.Message = text
	msg.User = &sender
	s.PublishToGroup(ctx, channels.PerMeeting(meetingID), msg)
	return nil
}

func (s *notificationService) PublishToGroup(ctx context.Context, addr channels.Address, msg channels.Message) {
	if err := s.broker.Publish(ctx, addr, msg); err != nil {
		s.drop(ctx, metrics.ReasonPublish, "group", addr.Group(), "error", err.Error())
		return
	}
	s.metrics.NotificationsPublished.WithLabelValues(addr.Kind().String()).Inc()
}

func (s *notificationService) deliverSideChannels(ctx context.Context, userID string, p Payload) {
	pref, err := s.repos.Preferences.GetOrCreate(ctx, userID)
	if err != nil {
		logger.CtxWarn(ctx, "side channels skipped: preferences unavailable", "recipient_id", userID, "error", err)
		return
	}
	if !pref.Allows(p.Category) {
		return
	}

	user, err := s.repos.Users.FindByID(ctx, userID)
	if err != nil {
		s.drop(ctx, metrics.ReasonUserNotFound, "recipient_id", userID)
		return
	}

	if p.SendEmail && pref.EmailNotifications && s.mailer != nil {
		err := s.mailer.SendTemplate(ctx, []string{user.Email}, p.Title, email.TemplateNotification, email.TemplateData{
			"Title":     p.Title,
			"Message":   p.Message,
			"ActionURL": p.ActionURL,
		})
		if err != nil {
			s.drop(ctx, metrics.ReasonEmail, "recipient_id", userID, "error", err.Error())
		}
	}

	if p.SendPush && pref.PushNotifications && s.pusher != nil && user.DeviceEndpoint != "" {
		err := s.pusher.Send(ctx, user.DeviceEndpoint, push.Message{
			Title:     p.Title,
			Body:      p.Message,
			ActionURL: p.ActionURL,
			Data:      map[string]string{"category": string(p.Category)},
		})
		if err != nil {
			s.drop(ctx, metrics.ReasonPush, "recipient_id", userID, "error", err.Error())
		}
	}
}

func (s *notificationService) drop(ctx context.Context, reason string, fields ...any) {
	logger.DeliveryLog(ctx, reason, fields...)
	s.metrics.Dropped(reason)
}

func exclude(ids []string, excludeID string) []string {
	if excludeID == "" {
		return ids
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != excludeID {
			out = append(out, id)
		}
	}
	return out
}
