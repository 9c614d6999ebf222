package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"ecosystia_backend/internal/auth"
	"ecosystia_backend/internal/channels"
	"ecosystia_backend/internal/email"
	"ecosystia_backend/internal/metrics"
	"ecosystia_backend/internal/models"
	"ecosystia_backend/internal/push"
	"ecosystia_backend/internal/repositories"
	"ecosystia_backend/internal/testutil"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentMail struct {
	To       []string
	Subject  string
	Template string
	Data     email.TemplateData
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(ctx context.Context, e *email.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: e.To, Subject: e.Subject})
	return nil
}

func (m *recordingMailer) SendTemplate(ctx context.Context, to []string, subject, templateName string, data email.TemplateData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Template: templateName, Data: data})
	return nil
}

func (m *recordingMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type recordingPusher struct {
	mu        sync.Mutex
	endpoints []string
}

func (p *recordingPusher) Send(ctx context.Context, endpointARN string, msg push.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoints = append(p.endpoints, endpointARN)
	return nil
}

type failingBroker struct{}

func (failingBroker) Publish(ctx context.Context, addr channels.Address, msg channels.Message) error {
	return channels.ErrHubStopped
}

type testEnv struct {
	db      *gorm.DB
	repos   *repositories.Container
	hub     *channels.Hub
	metrics *metrics.Metrics
	mailer  *recordingMailer
	pusher  *recordingPusher
	svc     *ServiceContainer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := channels.NewHub()
	go hub.Run(ctx)

	return newTestEnvWithBroker(t, hub, channels.NewLocalBroker(hub))
}

func newTestEnvWithBroker(t *testing.T, hub *channels.Hub, broker channels.Broker) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	env := &testEnv{
		db:      db,
		repos:   repositories.NewContainer(db),
		hub:     hub,
		metrics: metrics.NewUnregistered(),
		mailer:  &recordingMailer{},
		pusher:  &recordingPusher{},
	}
	env.svc = NewServiceContainer(Dependencies{
		Repos:   env.repos,
		Broker:  broker,
		Metrics: env.metrics,
		Mailer:  env.mailer,
		Pusher:  env.pusher,
		Tokens:  auth.NewTokenManager("test-secret", time.Hour),
	})
	return env
}

// subscribe joins a buffered subscriber to addr.
func (e *testEnv) subscribe(t *testing.T, addr channels.Address) *channels.Subscriber {
	t.Helper()
	sub := channels.NewSubscriber(addr.Group(), 32)
	require.NoError(t, e.hub.Join(context.Background(), addr, sub))
	return sub
}

// notificationsFor returns every stored notification for recipientID.
func (e *testEnv) notificationsFor(t *testing.T, recipientID string) []models.Notification {
	t.Helper()
	var list []models.Notification
	require.NoError(t, e.db.Where("recipient_id = ?", recipientID).Order("created_at").Find(&list).Error)
	return list
}

func (e *testEnv) dropped(reason string) float64 {
	return counterValue(e.metrics.NotificationsDropped.WithLabelValues(reason))
}

// drain returns the frames already buffered for sub. Local publishing is
// synchronous, so everything sent before the call is visible.
func drain(sub *channels.Subscriber) []channels.Message {
	var out []channels.Message
	for {
		select {
		case msg := <-sub.Send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func counterValue(c prometheus.Collector) float64 {
	return promtest.ToFloat64(c)
}
