// Package events turns domain events published by other EcosystIA services
// into notification triggers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ecosystia_backend/internal/logger"
	"ecosystia_backend/internal/metrics"
	"ecosystia_backend/internal/models"
	"ecosystia_backend/internal/services"
	"ecosystia_backend/internal/services/dto"

	"github.com/segmentio/kafka-go"
)

// Event types understood by Dispatch.
const (
	ProjectCreated       = "project.created"
	ProjectStatusChanged = "project.status_changed"
	TaskAssigned         = "task.assigned"
	MeetingCreated       = "meeting.created"
	CourseEnrolled       = "course.enrolled"
	InvoicePaid          = "invoice.paid"
	UserRegistered       = "user.registered"
	CommentCreated       = "comment.created"
	SystemBroadcast      = "system.broadcast"
)

var ErrUnknownEvent = errors.New("unknown event type")

// Event is the envelope every producer writes. Data depends on Type.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	ActorID    string          `json:"actor_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type projectStatusData struct {
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
}

type taskAssignedData struct {
	TaskID     string `json:"task_id"`
	AssigneeID string `json:"assignee_id"`
}

type enrollmentData struct {
	CourseID  string `json:"course_id"`
	StudentID string `json:"student_id"`
}

type invoiceData struct {
	InvoiceID string `json:"invoice_id"`
}

type userData struct {
	UserID string `json:"user_id"`
}

type broadcastData struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"notification_type"`
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
}

type Consumer struct {
	reader  MessageReader
	svc     *services.ServiceContainer
	metrics *metrics.Metrics
	backoff time.Duration
}

func NewConsumer(reader MessageReader, svc *services.ServiceContainer, m *metrics.Metrics) *Consumer {
	return &Consumer{reader: reader, svc: svc, metrics: m, backoff: time.Second}
}

// Run consumes until ctx is cancelled. Every fetched message is committed,
// including ones that failed to decode or dispatch: a bad event is logged,
// never retried forever.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		_ = c.reader.Close()
	}()
	logger.Info("Domain event consumer started")

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("Domain event consumer stopped")
				return nil
			}
			logger.Error("Kafka fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		c.handle(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			logger.Error("Kafka commit failed", "error", err, "offset", m.Offset)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	var ev Event
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		c.metrics.EventsConsumed.WithLabelValues("invalid", "error").Inc()
		logger.Warn("Undecodable domain event", "error", err, "offset", m.Offset)
		return
	}

	ctx = logger.WithEventID(ctx, ev.ID)
	err := c.Dispatch(ctx, ev)
	switch {
	case errors.Is(err, ErrUnknownEvent):
		c.metrics.EventsConsumed.WithLabelValues("unknown", "skipped").Inc()
		logger.CtxWarn(ctx, "Unknown domain event", "type", ev.Type)
	case err != nil:
		c.metrics.EventsConsumed.WithLabelValues(ev.Type, "error").Inc()
		logger.CtxWithError(ctx, "Domain event dispatch failed", err, "type", ev.Type)
	default:
		c.metrics.EventsConsumed.WithLabelValues(ev.Type, "ok").Inc()
	}
}

// Dispatch runs the trigger matching ev.Type.
func (c *Consumer) Dispatch(ctx context.Context, ev Event) error {
	switch ev.Type {
	case ProjectCreated:
		var req dto.CreateProjectRequest
		if err := decode(ev, &req); err != nil {
			return err
		}
		_, err := c.svc.ProjectService.Create(ctx, ev.ActorID, &req)
		return err

	case ProjectStatusChanged:
		var d projectStatusData
		if err := decode(ev, &d); err != nil {
			return err
		}
		_, err := c.svc.ProjectService.ChangeStatus(ctx, ev.ActorID, d.ProjectID, models.ProjectStatus(d.Status))
		return err

	case TaskAssigned:
		var d taskAssignedData
		if err := decode(ev, &d); err != nil {
			return err
		}
		_, err := c.svc.TaskService.Assign(ctx, ev.ActorID, d.TaskID, d.AssigneeID)
		return err

	case MeetingCreated:
		var req dto.CreateMeetingRequest
		if err := decode(ev, &req); err != nil {
			return err
		}
		_, err := c.svc.MeetingService.Create(ctx, ev.ActorID, &req)
		return err

	case CourseEnrolled:
		var d enrollmentData
		if err := decode(ev, &d); err != nil {
			return err
		}
		_, err := c.svc.CourseService.Enroll(ctx, d.CourseID, d.StudentID)
		return err

	case InvoicePaid:
		var d invoiceData
		if err := decode(ev, &d); err != nil {
			return err
		}
		_, err := c.svc.InvoiceService.ChangeStatus(ctx, d.InvoiceID, models.InvoiceStatusPaid)
		return err

	case UserRegistered:
		var d userData
		if err := decode(ev, &d); err != nil {
			return err
		}
		return c.svc.AuthService.Welcome(ctx, d.UserID)

	case CommentCreated:
		var req dto.CreateCommentRequest
		if err := decode(ev, &req); err != nil {
			return err
		}
		_, err := c.svc.CommentService.Create(ctx, ev.ActorID, &req)
		return err

	case SystemBroadcast:
		var d broadcastData
		if err := decode(ev, &d); err != nil {
			return err
		}
		return c.svc.NotificationService.SendSystemNotification(ctx, services.Payload{
			Title:   d.Title,
			Message: d.Message,
			Type:    models.NotificationType(d.Type),
		})
	}
	return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
}

func decode(ev Event, v any) error {
	if len(ev.Data) == 0 {
		return fmt.Errorf("event %s has no data", ev.Type)
	}
	if err := json.Unmarshal(ev.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", ev.Type, err)
	}
	return nil
}
