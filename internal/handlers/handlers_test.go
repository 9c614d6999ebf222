package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ecosystia_backend/internal/auth"
	"ecosystia_backend/internal/cache"
	"ecosystia_backend/internal/channels"
	"ecosystia_backend/internal/config"
	"ecosystia_backend/internal/metrics"
	"ecosystia_backend/internal/middleware"
	"ecosystia_backend/internal/models"
	"ecosystia_backend/internal/repositories"
	"ecosystia_backend/internal/services"
	"ecosystia_backend/internal/services/dto"
	"ecosystia_backend/internal/testutil"
	"ecosystia_backend/internal/validator"
	"ecosystia_backend/internal/workers"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type apiEnv struct {
	db     *gorm.DB
	tokens *auth.TokenManager
	router *gin.Engine
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	tokens := auth.NewTokenManager("handler-secret", time.Hour)
	hub := channels.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	repos := repositories.NewContainer(db)
	m := metrics.NewUnregistered()
	svc := services.NewServiceContainer(services.Dependencies{
		Repos:   repos,
		Broker:  channels.NewLocalBroker(hub),
		Metrics: m,
		Tokens:  tokens,
	})
	worker := workers.NewNotificationWorker(repos, svc.NotificationService, svc.DigestService, cache.NewMemoryGuard(), m, config.Default().Scheduler)
	t.Cleanup(worker.Wait)

	h := NewAppHandlers(svc, worker, validator.New())
	r := gin.New()
	api := r.Group("/api/v1")
	authMW := middleware.AuthMiddleware(tokens)
	h.AuthHandler.RegisterRoutes(api)
	h.NotificationHandler.RegisterRoutes(api, authMW)
	h.DomainHandler.RegisterRoutes(api, authMW)

	return &apiEnv{db: db, tokens: tokens, router: r}
}

func (e *apiEnv) do(t *testing.T, method, path string, user *models.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		tok, err := e.tokens.Generate(user.ID, user.IsStaff)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRegisterThenLogin(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/auth/register", nil, dto.RegisterRequest{
		Username: "awa",
		Email:    "Awa@Ecosystia.test",
		Password: "motdepasse1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	registered := decode[dto.AuthResponse](t, w)
	assert.Equal(t, "Bearer", registered.TokenType)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", nil, dto.LoginRequest{
		Email:    "awa@ecosystia.test",
		Password: "motdepasse1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, registered.UserID, decode[dto.AuthResponse](t, w).UserID)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", nil, dto.LoginRequest{
		Email:    "awa@ecosystia.test",
		Password: "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterRejectsInvalidBody(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/auth/register", nil, map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotificationsRequireToken(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/notifications", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListOnlyReturnsOwnNotifications(t *testing.T) {
	env := newAPIEnv(t)
	alice := testutil.CreateUser(t, env.db, "alice", false)
	bob := testutil.CreateUser(t, env.db, "bob", false)
	testutil.CreateNotification(t, env.db, alice.ID, false, time.Minute)
	testutil.CreateNotification(t, env.db, alice.ID, true, time.Hour)
	testutil.CreateNotification(t, env.db, bob.ID, false, time.Minute)

	w := env.do(t, http.MethodGet, "/api/v1/notifications", alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[dto.NotificationListResponse](t, w)
	assert.EqualValues(t, 2, list.Total)
	for _, n := range list.Notifications {
		assert.Equal(t, alice.ID, n.RecipientID)
	}

	w = env.do(t, http.MethodGet, "/api/v1/notifications?is_read=false", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[dto.NotificationListResponse](t, w).Total)

	w = env.do(t, http.MethodGet, "/api/v1/notifications?category=nope", alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	env := newAPIEnv(t)
	alice := testutil.CreateUser(t, env.db, "alice", false)
	n := testutil.CreateNotification(t, env.db, alice.ID, false, time.Minute)
	testutil.CreateNotification(t, env.db, alice.ID, false, time.Minute)

	w := env.do(t, http.MethodGet, "/api/v1/notifications/unread-count", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[dto.UnreadCountResponse](t, w).UnreadCount)

	w = env.do(t, http.MethodPost, "/api/v1/notifications/"+n.ID+"/mark-read", alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/notifications/unread-count", alice, nil)
	assert.EqualValues(t, 1, decode[dto.UnreadCountResponse](t, w).UnreadCount)

	unread := false
	w = env.do(t, http.MethodPatch, "/api/v1/notifications/"+n.ID, alice, dto.UpdateNotificationRequest{IsRead: &unread})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForeignNotificationIsNotFound(t *testing.T) {
	env := newAPIEnv(t)
	alice := testutil.CreateUser(t, env.db, "alice", false)
	bob := testutil.CreateUser(t, env.db, "bob", false)
	n := testutil.CreateNotification(t, env.db, bob.ID, false, time.Minute)

	w := env.do(t, http.MethodGet, "/api/v1/notifications/"+n.ID, alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/notifications/not-a-uuid", alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSystemBroadcastIsStaffOnly(t *testing.T) {
	env := newAPIEnv(t)
	alice := testutil.CreateUser(t, env.db, "alice", false)
	admin := testutil.CreateUser(t, env.db, "admin", true)
	body := map[string]string{"title": "Maintenance", "message": "Ce soir"}

	w := env.do(t, http.MethodPost, "/api/v1/notifications/system", alice, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/notifications/system", admin, body)
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
}

func TestCreateProjectNotifiesTeam(t *testing.T) {
	env := newAPIEnv(t)
	owner := testutil.CreateUser(t, env.db, "owner", false)
	member := testutil.CreateUser(t, env.db, "member", false)

	w := env.do(t, http.MethodPost, "/api/v1/projects", owner, dto.CreateProjectRequest{
		Name:          "Reboisement",
		TeamMemberIDs: []string{member.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.EqualValues(t, 1, env.countTitled(t, member.ID, "Mise à jour de projet"))
	assert.Zero(t, env.countTitled(t, owner.ID, "Mise à jour de projet"))
}

func (e *apiEnv) countTitled(t *testing.T, recipientID, title string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND title = ?", recipientID, title).Count(&count).Error)
	return count
}

func TestChangeProjectStatusRequiresMembership(t *testing.T) {
	env := newAPIEnv(t)
	owner := testutil.CreateUser(t, env.db, "owner", false)
	member := testutil.CreateUser(t, env.db, "member", false)
	stranger := testutil.CreateUser(t, env.db, "stranger", false)
	project := testutil.CreateProject(t, env.db, owner, member)
	path := "/api/v1/projects/" + project.ID + "/status"

	w := env.do(t, http.MethodPatch, path, stranger, dto.ChangeProjectStatusRequest{Status: "cancelled"})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	var stored models.Project
	require.NoError(t, env.db.First(&stored, "id = ?", project.ID).Error)
	assert.Equal(t, models.ProjectStatusPlanning, stored.Status)
	assert.Zero(t, env.countTitled(t, owner.ID, "Mise à jour de projet"))

	w = env.do(t, http.MethodPatch, path, member, dto.ChangeProjectStatusRequest{Status: "in_progress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[dto.TransitionResponse](t, w).Changed)
	assert.EqualValues(t, 1, env.countTitled(t, owner.ID, "Mise à jour de projet"))
}

func TestAssignTaskRequiresProjectMembership(t *testing.T) {
	env := newAPIEnv(t)
	owner := testutil.CreateUser(t, env.db, "owner", false)
	member := testutil.CreateUser(t, env.db, "member", false)
	stranger := testutil.CreateUser(t, env.db, "stranger", false)
	project := testutil.CreateProject(t, env.db, owner, member)
	task := &models.Task{ProjectID: project.ID, Title: "Inventaire", Status: models.TaskStatusTodo}
	require.NoError(t, env.db.Create(task).Error)
	path := "/api/v1/tasks/" + task.ID + "/assign"

	w := env.do(t, http.MethodPost, path, stranger, dto.AssignTaskRequest{AssigneeID: stranger.ID})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Zero(t, env.countTitled(t, stranger.ID, "Nouvelle tâche assignée"))

	w = env.do(t, http.MethodPost, path, owner, dto.AssignTaskRequest{AssigneeID: member.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, env.countTitled(t, member.ID, "Nouvelle tâche assignée"))
}

func TestInvoiceStatusIsStaffOnly(t *testing.T) {
	env := newAPIEnv(t)
	client := testutil.CreateUser(t, env.db, "client", false)
	stranger := testutil.CreateUser(t, env.db, "stranger", false)
	admin := testutil.CreateUser(t, env.db, "admin", true)
	invoice := &models.Invoice{Number: "F-2026-042", ClientUserID: client.ID, Amount: 50, Currency: "XOF", Status: models.InvoiceStatusSent}
	require.NoError(t, env.db.Create(invoice).Error)
	path := "/api/v1/invoices/" + invoice.ID + "/status"

	w := env.do(t, http.MethodPatch, path, stranger, dto.ChangeInvoiceStatusRequest{Status: "paid"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, env.countTitled(t, client.ID, "Paiement reçu"))

	w = env.do(t, http.MethodPatch, path, admin, dto.ChangeInvoiceStatusRequest{Status: "paid"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, env.countTitled(t, client.ID, "Paiement reçu"))
}

func TestBulkSendNowAndLater(t *testing.T) {
	env := newAPIEnv(t)
	admin := testutil.CreateUser(t, env.db, "admin", true)
	ana := testutil.CreateUser(t, env.db, "ana", false)
	ben := testutil.CreateUser(t, env.db, "ben", false)
	ids := []string{ana.ID, ben.ID}

	body := dto.BulkNotificationRequest{UserIDs: ids, Title: "Annonce", Message: "Assemblée générale"}
	w := env.do(t, http.MethodPost, "/api/v1/notifications/bulk", ana, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/notifications/bulk", admin, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[dto.BulkNotificationResponse](t, w)
	assert.Equal(t, 2, res.Sent)
	for _, id := range ids {
		assert.EqualValues(t, 1, env.countTitled(t, id, "Annonce"))
	}

	later := dto.BulkNotificationRequest{UserIDs: ids, Title: "Rappel", Message: "Demain", DelaySeconds: 1}
	w = env.do(t, http.MethodPost, "/api/v1/notifications/bulk", admin, later)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, "scheduled", decode[dto.BulkNotificationResponse](t, w).Status)
	assert.Zero(t, env.countTitled(t, ana.ID, "Rappel"))

	require.Eventually(t, func() bool {
		return env.countTitled(t, ana.ID, "Rappel") == 1 && env.countTitled(t, ben.ID, "Rappel") == 1
	}, 3*time.Second, 50*time.Millisecond)
}
