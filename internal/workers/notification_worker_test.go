package workers

import (
	"context"
	"testing"
	"time"

	"ecosystia_backend/internal/auth"
	"ecosystia_backend/internal/cache"
	"ecosystia_backend/internal/channels"
	"ecosystia_backend/internal/config"
	"ecosystia_backend/internal/metrics"
	"ecosystia_backend/internal/models"
	"ecosystia_backend/internal/repositories"
	"ecosystia_backend/internal/services"
	"ecosystia_backend/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type workerEnv struct {
	db      *gorm.DB
	repos   *repositories.Container
	hub     *channels.Hub
	metrics *metrics.Metrics
	redis   *miniredis.Miniredis
	worker  *NotificationWorker
}

func newWorkerEnv(t *testing.T) *workerEnv {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := channels.NewHub()
	go hub.Run(ctx)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	db := testutil.NewDB(t)
	env := &workerEnv{
		db:      db,
		repos:   repositories.NewContainer(db),
		hub:     hub,
		metrics: metrics.NewUnregistered(),
		redis:   mr,
	}
	svc := services.NewServiceContainer(services.Dependencies{
		Repos:   env.repos,
		Broker:  channels.NewLocalBroker(hub),
		Metrics: env.metrics,
		Tokens:  auth.NewTokenManager("worker-secret", time.Hour),
	})
	env.worker = NewNotificationWorker(
		env.repos,
		svc.NotificationService,
		svc.DigestService,
		cache.NewRedisGuard(client),
		env.metrics,
		config.Default().Scheduler,
	)
	return env
}

func (e *workerEnv) titled(t *testing.T, recipientID, title string) []models.Notification {
	t.Helper()
	var list []models.Notification
	require.NoError(t, e.db.Where("recipient_id = ? AND title = ?", recipientID, title).Find(&list).Error)
	return list
}

func TestMeetingRemindersAreSentOnce(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()
	organizer := testutil.CreateUser(t, env.db, "organizer", false)
	guest := testutil.CreateUser(t, env.db, "guest", false)
	soon := testutil.CreateMeeting(t, env.db, organizer, time.Now().Add(10*time.Minute), guest)
	testutil.CreateMeeting(t, env.db, organizer, time.Now().Add(2*time.Hour), guest)

	sent, err := env.worker.SendMeetingReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	for _, u := range []*models.User{organizer, guest} {
		list := env.titled(t, u.ID, "Rappel de réunion")
		require.Len(t, list, 1)
		assert.Equal(t, `Votre réunion "Point hebdo" commence dans 15 minutes`, list[0].Message)
		assert.Equal(t, models.NotificationTypeReminder, list[0].Type)
		assert.Equal(t, soon.ID, list[0].RelatedObjectID)
	}
	assert.True(t, env.redis.Exists("ecosystia:dedup:meeting_reminder_"+soon.ID))

	sent, err = env.worker.SendMeetingReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, env.titled(t, guest.ID, "Rappel de réunion"), 1)
}

func TestOverdueTasksWarnAssigneeOncePerDay(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "owner", false)
	dev := testutil.CreateUser(t, env.db, "dev", false)
	project := testutil.CreateProject(t, env.db, owner, dev)

	due := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	late := &models.Task{ProjectID: project.ID, Title: "Rapport", AssigneeID: &dev.ID, Status: models.TaskStatusInProgress, DueDate: &due}
	done := &models.Task{ProjectID: project.ID, Title: "Fini", AssigneeID: &dev.ID, Status: models.TaskStatusDone, DueDate: &due}
	require.NoError(t, env.db.Create(late).Error)
	require.NoError(t, env.db.Create(done).Error)

	sent, err := env.worker.CheckOverdueTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	list := env.titled(t, dev.ID, "Tâche en retard")
	require.Len(t, list, 1)
	assert.Equal(t, `La tâche "Rapport" était due le 14/03/2026`, list[0].Message)
	assert.Equal(t, models.NotificationTypeWarning, list[0].Type)
	assert.Equal(t, late.ID, list[0].RelatedObjectID)

	sent, err = env.worker.CheckOverdueTasks(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestCourseDeadlineRemindersReachEnrolledStudents(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, env.db, "instructor", false)
	student := testutil.CreateUser(t, env.db, "student", false)
	outsider := testutil.CreateUser(t, env.db, "outsider", false)

	course := &models.Course{Title: "Agroécologie", InstructorID: instructor.ID}
	require.NoError(t, env.db.Create(course).Error)
	require.NoError(t, env.db.Create(&models.Enrollment{CourseID: course.ID, StudentID: student.ID}).Error)
	require.NoError(t, env.db.Create(&models.Assignment{CourseID: course.ID, Title: "Compost", DueDate: time.Now().Add(48 * time.Hour)}).Error)
	require.NoError(t, env.db.Create(&models.Assignment{CourseID: course.ID, Title: "Plus tard", DueDate: time.Now().Add(10 * 24 * time.Hour)}).Error)

	sent, err := env.worker.SendCourseDeadlineReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	list := env.titled(t, student.ID, "Échéance de devoir")
	require.Len(t, list, 1)
	assert.Equal(t, `Le devoir "Compost" est à rendre dans 3 jours`, list[0].Message)
	assert.Equal(t, models.CategoryCourse, list[0].Category)
	assert.Empty(t, env.titled(t, outsider.ID, "Échéance de devoir"))

	sent, err = env.worker.SendCourseDeadlineReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestCleanupDeletesOldReadNotificationsAndAnnounces(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice", false)
	oldRead := testutil.CreateNotification(t, env.db, alice.ID, true, 100*24*time.Hour)
	oldUnread := testutil.CreateNotification(t, env.db, alice.ID, false, 100*24*time.Hour)
	recentRead := testutil.CreateNotification(t, env.db, alice.ID, true, 24*time.Hour)

	sub := channels.NewSubscriber("staff", 8)
	require.NoError(t, env.hub.Join(ctx, channels.System(), sub))

	deleted, err := env.worker.CleanupOldNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	var remaining []string
	require.NoError(t, env.db.Model(&models.Notification{}).Pluck("id", &remaining).Error)
	assert.ElementsMatch(t, []string{oldUnread.ID, recentRead.ID}, remaining)
	assert.NotContains(t, remaining, oldRead.ID)

	select {
	case msg := <-sub.Send:
		assert.Equal(t, channels.FrameSystemNotification, msg.Type)
		require.NotNil(t, msg.Notification)
		assert.Equal(t, "1 anciennes notifications ont été supprimées", msg.Notification.Message)
	default:
		t.Fatal("no system notification published")
	}

	deleted, err = env.worker.CleanupOldNotifications(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Empty(t, sub.Send)
}

func TestDailyDigestRunsOncePerDay(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice", false)
	_, err := env.repos.Preferences.GetOrCreate(ctx, alice.ID)
	require.NoError(t, err)
	testutil.CreateNotification(t, env.db, alice.ID, false, time.Hour)

	// Alice's preference is daily, so a Monday run adds no weekly digest.
	sent, err := env.worker.SendDigests(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Len(t, env.titled(t, alice.ID, "Résumé quotidien"), 1)

	sent, err = env.worker.SendDigests(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, env.titled(t, alice.ID, "Résumé quotidien"), 1)
}

func TestSendBulkReachesEveryUser(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()
	var ids []string
	for _, name := range []string{"ana", "ben", "cal"} {
		ids = append(ids, testutil.CreateUser(t, env.db, name, false).ID)
	}

	sent, err := env.worker.SendBulk(ctx, ids, services.Payload{Title: "Annonce", Message: "Bienvenue"})
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	for _, id := range ids {
		assert.Len(t, env.titled(t, id, "Annonce"), 1)
	}
	assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.WorkerRuns.WithLabelValues(TaskBulk, "ok")))
}

func TestScheduleDelayed(t *testing.T) {
	env := newWorkerEnv(t)
	alice := testutil.CreateUser(t, env.db, "alice", false)

	env.worker.ScheduleDelayed(context.Background(), alice.ID, services.Payload{Title: "Plus tard", Message: "Coucou"}, 20*time.Millisecond)
	env.worker.Wait()
	assert.Len(t, env.titled(t, alice.ID, "Plus tard"), 1)
	assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.WorkerRuns.WithLabelValues(TaskDelayed, "ok")))

	ctx, cancel := context.WithCancel(context.Background())
	env.worker.ScheduleDelayed(ctx, alice.ID, services.Payload{Title: "Annulé", Message: "Jamais"}, time.Hour)
	cancel()
	env.worker.Wait()
	assert.Empty(t, env.titled(t, alice.ID, "Annulé"))
}

func TestStartRunsTasksOnTheirInterval(t *testing.T) {
	env := newWorkerEnv(t)
	organizer := testutil.CreateUser(t, env.db, "organizer", false)
	testutil.CreateMeeting(t, env.db, organizer, time.Now().Add(5*time.Minute))

	env.worker.cfg = config.Scheduler{
		Enabled:          true,
		ReminderInterval: 10 * time.Millisecond,
		ReminderWindow:   15 * time.Minute,
		ReminderDedupTTL: 30 * time.Minute,
	}
	ctx, cancel := context.WithCancel(context.Background())
	env.worker.Start(ctx)

	require.Eventually(t, func() bool {
		return len(env.titled(t, organizer.ID, "Rappel de réunion")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	env.worker.Wait()
	assert.GreaterOrEqual(t, promtest.ToFloat64(env.metrics.WorkerRuns.WithLabelValues(TaskMeetingReminders, "ok")), 1.0)
}

func TestScheduleBulkIsBoundToWorkerLifetime(t *testing.T) {
	env := newWorkerEnv(t)
	ana := testutil.CreateUser(t, env.db, "ana", false)
	ben := testutil.CreateUser(t, env.db, "ben", false)
	ids := []string{ana.ID, ben.ID}

	life, stop := context.WithCancel(context.Background())
	env.worker.Start(life)

	env.worker.ScheduleBulk(context.Background(), ids, services.Payload{Title: "Bientôt", Message: "Atelier"}, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(env.titled(t, ana.ID, "Bientôt")) == 1 && len(env.titled(t, ben.ID, "Bientôt")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	env.worker.ScheduleBulk(context.Background(), ids, services.Payload{Title: "Trop tard", Message: "Jamais"}, time.Hour)
	stop()
	env.worker.Wait()
	assert.Empty(t, env.titled(t, ana.ID, "Trop tard"))
}
