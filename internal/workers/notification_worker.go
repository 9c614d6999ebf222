package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ecosystia_backend/internal/cache"
	"ecosystia_backend/internal/config"
	"ecosystia_backend/internal/logger"
	"ecosystia_backend/internal/metrics"
	"ecosystia_backend/internal/models"
	"ecosystia_backend/internal/repositories"
	"ecosystia_backend/internal/services"
)

const workerName = "notification_worker"

// Task names, also used as the task label of worker metrics.
const (
	TaskMeetingReminders = "meeting_reminders"
	TaskOverdueTasks     = "overdue_tasks"
	TaskCourseDeadlines  = "course_deadlines"
	TaskDigests          = "digests"
	TaskCleanup          = "cleanup"
	TaskDelayed          = "delayed_send"
	TaskBulk             = "bulk_send"
)

const (
	overdueDedupTTL  = 24 * time.Hour
	deadlineDedupTTL = 24 * time.Hour
	bulkBatchSize    = 100
)

// NotificationWorker runs the periodic notification jobs. Each job is also
// callable directly, which is how the tests drive them.
type NotificationWorker struct {
	repos    *repositories.Container
	notifier services.NotificationService
	digests  services.DigestService
	guard    cache.DedupGuard
	metrics  *metrics.Metrics
	cfg      config.Scheduler
	now      func() time.Time

	// life bounds delayed sends; Start replaces it with the process context.
	life context.Context
	wg   sync.WaitGroup
}

func NewNotificationWorker(
	repos *repositories.Container,
	notifier services.NotificationService,
	digests services.DigestService,
	guard cache.DedupGuard,
	m *metrics.Metrics,
	cfg config.Scheduler,
) *NotificationWorker {
	return &NotificationWorker{
		repos:    repos,
		notifier: notifier,
		digests:  digests,
		guard:    guard,
		metrics:  m,
		cfg:      cfg,
		now:      time.Now,
		life:     context.Background(),
	}
}

// Start launches one ticker goroutine per job. They stop when ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.life = ctx
	if !w.cfg.Enabled {
		logger.Info("Notification worker disabled")
		return
	}

	w.every(ctx, TaskMeetingReminders, w.cfg.ReminderInterval, w.SendMeetingReminders)
	w.every(ctx, TaskOverdueTasks, w.cfg.OverdueInterval, w.CheckOverdueTasks)
	w.every(ctx, TaskCourseDeadlines, w.cfg.DeadlineInterval, w.SendCourseDeadlineReminders)
	w.every(ctx, TaskDigests, w.cfg.DigestInterval, w.SendDigests)
	w.every(ctx, TaskCleanup, w.cfg.CleanupInterval, w.CleanupOldNotifications)
	logger.Info("Notification worker started")
}

// Wait blocks until every goroutine started by the worker has returned.
func (w *NotificationWorker) Wait() {
	w.wg.Wait()
}

func (w *NotificationWorker) every(ctx context.Context, task string, interval time.Duration, job func(context.Context) (int, error)) {
	if interval <= 0 {
		logger.Warn("Scheduled task disabled: no interval", "task", task)
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("Scheduled task stopped", "task", task)
				return
			case <-ticker.C:
				w.run(ctx, task, job)
			}
		}
	}()
}

func (w *NotificationWorker) run(ctx context.Context, task string, job func(context.Context) (int, error)) {
	start := time.Now()
	sent, err := job(ctx)
	w.metrics.WorkerDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	w.metrics.WorkerRuns.WithLabelValues(task, outcome).Inc()
	logger.WorkerLog(workerName, task, err)
	if sent > 0 {
		logger.Info("Scheduled task sent notifications", "task", task, "count", sent)
	}
}

// acquire reports whether key is free. A guard failure is logged and treated
// as free: a duplicate reminder is better than a missing one.
func (w *NotificationWorker) acquire(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := w.guard.Acquire(ctx, key, ttl)
	if err != nil {
		logger.CtxWithError(ctx, "dedup guard unavailable", err, "key", key)
		return true
	}
	return ok
}

// SendMeetingReminders notifies participants of scheduled meetings starting
// within the reminder window. Each meeting is reminded once per dedup TTL.
func (w *NotificationWorker) SendMeetingReminders(ctx context.Context) (int, error) {
	now := w.now()
	window := w.cfg.ReminderWindow
	meetings, err := w.repos.Meetings.FindStartingBetween(ctx, now, now.Add(window))
	if err != nil {
		return 0, fmt.Errorf("find upcoming meetings: %w", err)
	}

	sent := 0
	var errs []error
	for _, m := range meetings {
		if !w.acquire(ctx, fmt.Sprintf("meeting_reminder_%s", m.ID), w.cfg.ReminderDedupTTL) {
			continue
		}
		err := w.notifier.SendToMeetingParticipants(ctx, m.ID, services.Payload{
			Title:             "Rappel de réunion",
			Message:           fmt.Sprintf("Votre réunion \"%s\" commence dans %d minutes", m.Title, int(window.Minutes())),
			Type:              models.NotificationTypeReminder,
			Category:          models.CategoryMeeting,
			RelatedObjectID:   m.ID,
			RelatedObjectType: "meeting",
			ActionURL:         fmt.Sprintf("/meetings/%s/", m.ID),
		}, "")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// CheckOverdueTasks warns assignees of unfinished tasks past their due date,
// at most once per task per day.
func (w *NotificationWorker) CheckOverdueTasks(ctx context.Context) (int, error) {
	now := w.now()
	tasks, err := w.repos.Tasks.FindOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find overdue tasks: %w", err)
	}

	sent := 0
	var errs []error
	for _, t := range tasks {
		if t.AssigneeID == nil || t.DueDate == nil {
			continue
		}
		key := fmt.Sprintf("overdue_task_%s_%s", t.ID, now.Format("2006-01-02"))
		if !w.acquire(ctx, key, overdueDedupTTL) {
			continue
		}
		err := w.notifier.SendToUser(ctx, *t.AssigneeID, services.Payload{
			Title:             "Tâche en retard",
			Message:           fmt.Sprintf("La tâche \"%s\" était due le %s", t.Title, t.DueDate.Format("02/01/2006")),
			Type:              models.NotificationTypeWarning,
			Category:          models.CategoryProject,
			RelatedObjectID:   t.ID,
			RelatedObjectType: "task",
			ActionURL:         fmt.Sprintf("/projects/%s/", t.ProjectID),
		}, true)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// SendCourseDeadlineReminders reminds enrolled students of assignments due
// within the deadline horizon.
func (w *NotificationWorker) SendCourseDeadlineReminders(ctx context.Context) (int, error) {
	now := w.now()
	assignments, err := w.repos.Courses.FindAssignmentsDueBetween(ctx, now, now.Add(w.cfg.DeadlineHorizon))
	if err != nil {
		return 0, fmt.Errorf("find upcoming assignments: %w", err)
	}

	days := int(w.cfg.DeadlineHorizon.Hours() / 24)
	sent := 0
	var errs []error
	for _, a := range assignments {
		students, err := w.repos.Courses.StudentIDs(ctx, a.CourseID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, studentID := range students {
			key := fmt.Sprintf("assignment_deadline_%s_%s", a.ID, studentID)
			if !w.acquire(ctx, key, deadlineDedupTTL) {
				continue
			}
			err := w.notifier.SendToUser(ctx, studentID, services.Payload{
				Title:             "Échéance de devoir",
				Message:           fmt.Sprintf("Le devoir \"%s\" est à rendre dans %d jours", a.Title, days),
				Type:              models.NotificationTypeReminder,
				Category:          models.CategoryCourse,
				RelatedObjectID:   a.ID,
				RelatedObjectType: "assignment",
				ActionURL:         fmt.Sprintf("/courses/%s/assignments/%s/", a.CourseID, a.ID),
			}, true)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			sent++
		}
	}
	return sent, errors.Join(errs...)
}

// SendDigests sends the daily digest once per calendar day and the weekly
// digest once per ISO week, on Mondays. The task itself runs more often; the
// dedup guard keeps replicas and restarts from sending twice.
func (w *NotificationWorker) SendDigests(ctx context.Context) (int, error) {
	now := w.now()
	sent := 0
	var errs []error

	if w.acquire(ctx, "digest_daily_"+now.Format("2006-01-02"), 24*time.Hour) {
		n, err := w.digests.Send(ctx, models.DigestDaily, now)
		sent += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	if now.Weekday() == time.Monday {
		year, week := now.ISOWeek()
		if w.acquire(ctx, fmt.Sprintf("digest_weekly_%d_%02d", year, week), 7*24*time.Hour) {
			n, err := w.digests.Send(ctx, models.DigestWeekly, now)
			sent += n
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
	return sent, errors.Join(errs...)
}

// CleanupOldNotifications deletes read notifications older than the retention
// period and announces the count on the system stream.
func (w *NotificationWorker) CleanupOldNotifications(ctx context.Context) (int, error) {
	cutoff := w.now().AddDate(0, 0, -w.cfg.RetentionDays)
	deleted, err := w.repos.Notifications.DeleteReadOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old notifications: %w", err)
	}
	if deleted == 0 {
		return 0, nil
	}

	err = w.notifier.SendSystemNotification(ctx, services.Payload{
		Title:    "Nettoyage des notifications",
		Message:  fmt.Sprintf("%d anciennes notifications ont été supprimées", deleted),
		Type:     models.NotificationTypeInfo,
		Category: models.CategorySystem,
	})
	return int(deleted), err
}

// ScheduleDelayed sends p to userID after delay, unless ctx or the worker
// stops first.
func (w *NotificationWorker) ScheduleDelayed(ctx context.Context, userID string, p services.Payload, delay time.Duration) {
	w.after(ctx, delay, "user_id", userID, p, func(ctx context.Context) (int, error) {
		if err := w.notifier.SendToUser(ctx, userID, p, true); err != nil {
			return 0, err
		}
		return 1, nil
	})
}

// ScheduleBulk runs SendBulk for userIDs after delay.
func (w *NotificationWorker) ScheduleBulk(ctx context.Context, userIDs []string, p services.Payload, delay time.Duration) {
	ids := append([]string(nil), userIDs...)
	w.after(ctx, delay, "recipients", len(ids), p, func(ctx context.Context) (int, error) {
		return w.SendBulk(ctx, ids, p)
	})
}

func (w *NotificationWorker) after(ctx context.Context, delay time.Duration, key string, target any, p services.Payload, job func(context.Context) (int, error)) {
	life := w.life
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				logger.CtxWarn(ctx, "Delayed notification cancelled", key, target, "title", p.Title)
				return
			case <-life.Done():
				logger.Warn("Delayed notification dropped at shutdown", key, target, "title", p.Title)
				return
			case <-timer.C:
			}
		}
		w.run(ctx, TaskDelayed, job)
	}()
}

// SendBulk persists and publishes p for every user, in batches.
func (w *NotificationWorker) SendBulk(ctx context.Context, userIDs []string, p services.Payload) (int, error) {
	sent := 0
	var errs []error
	for start := 0; start < len(userIDs); start += bulkBatchSize {
		end := min(start+bulkBatchSize, len(userIDs))
		batch := userIDs[start:end]
		if err := w.notifier.SendToMultipleUsers(ctx, batch, p, true); err != nil {
			errs = append(errs, err)
			continue
		}
		sent += len(batch)
	}

	outcome := "ok"
	if len(errs) > 0 {
		outcome = "error"
	}
	w.metrics.WorkerRuns.WithLabelValues(TaskBulk, outcome).Inc()
	return sent, errors.Join(errs...)
}
