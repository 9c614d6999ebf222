package services

import (
	"context"
	"testing"
	"time"

	"ecosystia_backend/internal/models"
	"ecosystia_backend/internal/services/dto"
	"ecosystia_backend/internal/testutil"
	"ecosystia_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectCreateNotifiesTeamOnly(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "owner", false)
	dev := testutil.CreateUser(t, env.db, "dev", false)

	project, err := env.svc.ProjectService.Create(context.Background(), owner.ID, &dto.CreateProjectRequest{
		Name:          "Atlas",
		TeamMemberIDs: []string{dev.ID, owner.ID},
	})
	require.NoError(t, err)

	stored := env.notificationsFor(t, dev.ID)
	require.Len(t, stored, 1)
	assert.Equal(t, "Mise à jour de projet", stored[0].Title)
	assert.Equal(t, `owner a créé le projet "Atlas"`, stored[0].Message)
	assert.Equal(t, project.ID, stored[0].RelatedObjectID)
	assert.Empty(t, env.notificationsFor(t, owner.ID))
}

func TestProjectStatusChangeNotifiesOnlyOnTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "owner", false)
	dev := testutil.CreateUser(t, env.db, "dev", false)
	project := testutil.CreateProject(t, env.db, owner, dev)

	tr, err := env.svc.ProjectService.ChangeStatus(ctx, owner.ID, project.ID, models.ProjectStatusPlanning)
	require.NoError(t, err)
	assert.False(t, tr.Changed())
	assert.Empty(t, env.notificationsFor(t, dev.ID))

	tr, err = env.svc.ProjectService.ChangeStatus(ctx, owner.ID, project.ID, models.ProjectStatusCompleted)
	require.NoError(t, err)
	assert.True(t, tr.Changed())
	assert.Equal(t, "planning", tr.Old)
	assert.Equal(t, "completed", tr.New)

	stored := env.notificationsFor(t, dev.ID)
	require.Len(t, stored, 1)
	assert.Equal(t, "Mise à jour de projet", stored[0].Title)
	assert.Contains(t, stored[0].Message, "terminé")
	assert.Empty(t, env.notificationsFor(t, owner.ID))

	_, err = env.svc.ProjectService.ChangeStatus(ctx, owner.ID, "00000000-0000-0000-0000-000000000000", models.ProjectStatusOnHold)
	assert.ErrorIs(t, err, apperrors.ErrProjectNotFound)
}

func TestTaskAssignNotifiesNewAssignee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lead := testutil.CreateUser(t, env.db, "lead", false)
	dev := testutil.CreateUser(t, env.db, "dev", false)
	project := testutil.CreateProject(t, env.db, lead, dev)
	task := &models.Task{ProjectID: project.ID, Title: "Écrire les tests", Status: models.TaskStatusTodo}
	require.NoError(t, env.repos.Tasks.Create(ctx, task))

	tr, err := env.svc.TaskService.Assign(ctx, lead.ID, task.ID, dev.ID)
	require.NoError(t, err)
	assert.True(t, tr.Changed())

	stored := env.notificationsFor(t, dev.ID)
	require.Len(t, stored, 1)
	assert.Equal(t, "Nouvelle tâche assignée", stored[0].Title)
	assert.Equal(t, `lead vous a assigné la tâche "Écrire les tests"`, stored[0].Message)

	tr, err = env.svc.TaskService.Assign(ctx, lead.ID, task.ID, dev.ID)
	require.NoError(t, err)
	assert.False(t, tr.Changed())
	assert.Len(t, env.notificationsFor(t, dev.ID), 1)

	tr, err = env.svc.TaskService.Assign(ctx, lead.ID, task.ID, "")
	require.NoError(t, err)
	assert.True(t, tr.Changed())
	assert.Len(t, env.notificationsFor(t, dev.ID), 1)

	tr, err = env.svc.TaskService.Assign(ctx, lead.ID, task.ID, lead.ID)
	require.NoError(t, err)
	assert.True(t, tr.Changed())
	assert.Empty(t, env.notificationsFor(t, lead.ID))
}

func TestProjectStatusRejectsUnknownStatusAndActor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "owner", false)
	dev := testutil.CreateUser(t, env.db, "dev", false)
	project := testutil.CreateProject(t, env.db, owner, dev)

	_, err := env.svc.ProjectService.ChangeStatus(ctx, owner.ID, project.ID, models.ProjectStatus("bogus"))
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, apperrors.CodeInvalidStatus, appErr.Code)

	_, err = env.svc.ProjectService.ChangeStatus(ctx, "00000000-0000-0000-0000-000000000000", project.ID, models.ProjectStatusCompleted)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	stored, err := env.repos.Projects.FindByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusPlanning, stored.Status)
	assert.Empty(t, env.notificationsFor(t, dev.ID))
}

func TestCourseEnrollment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, env.db, "student", false)
	course := &models.Course{Title: "Go avancé"}
	require.NoError(t, env.repos.Courses.Create(ctx, course))

	_, err := env.svc.CourseService.Enroll(ctx, course.ID, student.ID)
	require.NoError(t, err)

	stored := env.notificationsFor(t, student.ID)
	require.Len(t, stored, 1)
	assert.Equal(t, "Inscription confirmée", stored[0].Title)
	assert.Equal(t, models.CategoryCourse, stored[0].Category)
	assert.Len(t, env.mailer.Sent(), 1)

	_, err = env.svc.CourseService.Enroll(ctx, course.ID, student.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyEnrolled)
	assert.Len(t, env.notificationsFor(t, student.ID), 1)
}

func TestInvoicePaidNotifiesClientOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := testutil.CreateUser(t, env.db, "client", false)
	invoice := &models.Invoice{Number: "F-2024-001", ClientUserID: client.ID, Amount: 1200, Currency: "EUR", Status: models.InvoiceStatusSent}
	require.NoError(t, env.repos.Invoices.Create(ctx, invoice))

	_, err := env.svc.InvoiceService.ChangeStatus(ctx, invoice.ID, models.InvoiceStatusOverdue)
	require.NoError(t, err)
	assert.Empty(t, env.notificationsFor(t, client.ID))

	_, err = env.svc.InvoiceService.ChangeStatus(ctx, invoice.ID, models.InvoiceStatusPaid)
	require.NoError(t, err)
	_, err = env.svc.InvoiceService.ChangeStatus(ctx, invoice.ID, models.InvoiceStatusPaid)
	require.NoError(t, err)

	stored := env.notificationsFor(t, client.ID)
	require.Len(t, stored, 1)
	assert.Equal(t, "Paiement reçu", stored[0].Title)
	assert.Equal(t, "Le paiement de la facture #F-2024-001 a été confirmé", stored[0].Message)
}

func TestCommentNotifiesOwnerButNeverAuthor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "owner", false)
	dev := testutil.CreateUser(t, env.db, "dev", false)
	project := testutil.CreateProject(t, env.db, owner, dev)

	_, err := env.svc.CommentService.Create(ctx, dev.ID, &dto.CreateCommentRequest{
		ObjectType: "project", ObjectID: project.ID, Content: "Beau travail",
	})
	require.NoError(t, err)
	stored := env.notificationsFor(t, owner.ID)
	require.Len(t, stored, 1)
	assert.Equal(t, "Nouveau commentaire", stored[0].Title)
	assert.Equal(t, "dev a commenté votre projet", stored[0].Message)

	_, err = env.svc.CommentService.Create(ctx, owner.ID, &dto.CreateCommentRequest{
		ObjectType: "project", ObjectID: project.ID, Content: "Merci",
	})
	require.NoError(t, err)
	assert.Len(t, env.notificationsFor(t, owner.ID), 1)
}

func TestRegisterWelcomesUserAndAlertsStaff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staff := testutil.CreateUser(t, env.db, "admin", true)

	resp, err := env.svc.AuthService.Register(ctx, &dto.RegisterRequest{
		Username: "lea",
		Email:    "Lea@Example.com",
		Password: "motdepasse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.False(t, resp.IsStaff)

	welcome := env.notificationsFor(t, resp.UserID)
	require.Len(t, welcome, 1)
	assert.Equal(t, "Bienvenue sur EcosystIA !", welcome[0].Title)
	assert.Equal(t, models.CategoryUser, welcome[0].Category)

	alerts := env.notificationsFor(t, staff.ID)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Nouvel utilisateur", alerts[0].Title)
	assert.Equal(t, "Un nouvel utilisateur s'est inscrit : lea (lea@example.com)", alerts[0].Message)

	_, err = env.svc.AuthService.Register(ctx, &dto.RegisterRequest{Username: "lea2", Email: "lea@example.com", Password: "motdepasse"})
	assert.ErrorIs(t, err, apperrors.ErrEmailAlreadyExists)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.svc.AuthService.Register(ctx, &dto.RegisterRequest{Username: "lea", Email: "lea@example.com", Password: "motdepasse"})
	require.NoError(t, err)

	resp, err := env.svc.AuthService.Login(ctx, &dto.LoginRequest{Email: "lea@example.com", Password: "motdepasse"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)

	_, err = env.svc.AuthService.Login(ctx, &dto.LoginRequest{Email: "lea@example.com", Password: "mauvais"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = env.svc.AuthService.Login(ctx, &dto.LoginRequest{Email: "nobody@example.com", Password: "motdepasse"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestEnsureStaffSeedsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.AuthService.EnsureStaff(ctx, "root@ecosystia.test", "motdepasse"))
	require.NoError(t, env.svc.AuthService.EnsureStaff(ctx, "other@ecosystia.test", "motdepasse"))

	count, err := env.repos.Users.CountStaff(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestDailyDigest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()
	alice := testutil.CreateUser(t, env.db, "alice", false)
	bob := testutil.CreateUser(t, env.db, "bob", false)
	for _, u := range []*models.User{alice, bob} {
		_, err := env.repos.Preferences.GetOrCreate(ctx, u.ID)
		require.NoError(t, err)
	}
	for i := 0; i < 7; i++ {
		testutil.CreateNotification(t, env.db, alice.ID, i < 2, time.Duration(i+1)*time.Hour)
	}
	testutil.CreateNotification(t, env.db, bob.ID, false, 3*24*time.Hour)

	sent, err := env.svc.DigestService.Send(ctx, models.DigestDaily, now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	list := env.notificationsFor(t, alice.ID)
	var digest *models.Notification
	for i := range list {
		if list[i].Title == "Résumé quotidien" {
			digest = &list[i]
		}
	}
	require.NotNil(t, digest)
	assert.Contains(t, digest.Message, "Résumé quotidien : 7 notifications dont 5 non lues.")
	assert.Contains(t, digest.Message, "... et 2 autres notifications.")
	assert.Len(t, env.notificationsFor(t, bob.ID), 1)

	require.Len(t, env.mailer.Sent(), 1)
	assert.Equal(t, "digest", env.mailer.Sent()[0].Template)
}

func TestWeeklyDigestGroupsByCategory(t *testing.T) {
	p := weeklyDigest([]models.Notification{
		{Category: models.CategoryProject},
		{Category: models.CategoryProject, IsRead: true},
		{Category: models.CategoryMeeting},
	}, 2)
	assert.Equal(t, "Résumé hebdomadaire", p.Title)
	assert.Contains(t, p.Message, "• 3 notifications reçues")
	assert.Contains(t, p.Message, "• 2 non lues")
	assert.Contains(t, p.Message, "• meeting: 1\n• project: 2")
}

func TestDailyDigestCountsTheWholeDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice", false)
	_, err := env.repos.Preferences.GetOrCreate(ctx, alice.ID)
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		testutil.CreateNotification(t, env.db, alice.ID, i < 3, time.Duration(i+1)*time.Minute)
	}

	sent, err := env.svc.DigestService.Send(ctx, models.DigestDaily, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	var digest models.Notification
	require.NoError(t, env.db.Where("recipient_id = ? AND title = ?", alice.ID, "Résumé quotidien").First(&digest).Error)
	assert.Contains(t, digest.Message, "Résumé quotidien : 12 notifications dont 9 non lues.")
	assert.Contains(t, digest.Message, "... et 7 autres notifications.")
}
