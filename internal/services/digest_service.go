package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"ecosystia_backend/internal/email"
	"ecosystia_backend/internal/logger"
	"ecosystia_backend/internal/metrics"
	"ecosystia_backend/internal/models"
	"ecosystia_backend/internal/repositories"
)

const (
	dailyDigestLimit = 10
	digestTopItems   = 5
)

// DigestService summarises recent notifications for users who opted into
// periodic digests.
type DigestService interface {
	// Send delivers one digest per eligible user and returns how many were sent.
	Send(ctx context.Context, freq models.DigestFrequency, now time.Time) (int, error)
}

type digestService struct {
	notifications repositories.NotificationRepository
	preferences   repositories.PreferenceRepository
	users         repositories.UserRepository
	notifier      NotificationService
	mailer        email.Provider
	metrics       *metrics.Metrics
}

func NewDigestService(repos *repositories.Container, notifier NotificationService, mailer email.Provider, m *metrics.Metrics) DigestService {
	return &digestService{
		notifications: repos.Notifications,
		preferences:   repos.Preferences,
		users:         repos.Users,
		notifier:      notifier,
		mailer:        mailer,
		metrics:       m,
	}
}

func (s *digestService) Send(ctx context.Context, freq models.DigestFrequency, now time.Time) (int, error) {
	window, ok := digestWindow(freq)
	if !ok {
		return 0, fmt.Errorf("unsupported digest frequency %q", freq)
	}
	since := now.Add(-window)

	userIDs, err := s.preferences.FindUserIDsByDigest(ctx, freq)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, userID := range userIDs {
		limit := 0
		if freq == models.DigestDaily {
			limit = dailyDigestLimit
		}
		list, total, err := s.notifications.FindForRecipient(ctx, userID, repositories.NotificationFilter{Since: since, Limit: limit})
		if err != nil {
			logger.CtxWithError(ctx, "digest query failed", err, "user_id", userID)
			continue
		}
		if len(list) == 0 {
			continue
		}
		unread, err := s.notifications.CountUnreadSince(ctx, userID, since)
		if err != nil {
			logger.CtxWithError(ctx, "digest unread count failed", err, "user_id", userID)
			continue
		}

		var p Payload
		if freq == models.DigestDaily {
			p = dailyDigest(list, total, unread)
		} else {
			p = weeklyDigest(list, unread)
		}
		if err := s.notifier.SendToUser(ctx, userID, p, true); err != nil {
			logger.CtxWithError(ctx, "digest delivery failed", err, "user_id", userID)
			continue
		}
		s.mail(ctx, userID, p.Title, list, unread, freq)
		sent++
	}
	return sent, nil
}

func (s *digestService) mail(ctx context.Context, userID, title string, list []models.Notification, unread int64, freq models.DigestFrequency) {
	if s.mailer == nil {
		return
	}
	pref, err := s.preferences.GetOrCreate(ctx, userID)
	if err != nil || !pref.EmailNotifications {
		return
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return
	}

	items := make([]map[string]string, 0, len(list))
	for _, n := range list {
		if !n.IsRead {
			items = append(items, map[string]string{"Title": n.Title, "Message": n.Message})
		}
	}
	period := "hier"
	if freq == models.DigestWeekly {
		period = "une semaine"
	}
	err = s.mailer.SendTemplate(ctx, []string{user.Email}, title, email.TemplateDigest, email.TemplateData{
		"Title":  title,
		"Name":   user.DisplayName(),
		"Unread": unread,
		"Period": period,
		"Items":  items,
	})
	if err != nil {
		logger.DeliveryLog(ctx, metrics.ReasonEmail, "user_id", userID, "error", err.Error())
		s.metrics.Dropped(metrics.ReasonEmail)
	}
}

func digestWindow(freq models.DigestFrequency) (time.Duration, bool) {
	switch freq {
	case models.DigestDaily:
		return 24 * time.Hour, true
	case models.DigestWeekly:
		return 7 * 24 * time.Hour, true
	}
	return 0, false
}

// dailyDigest lists the first items of list; total and unread cover the whole day.
func dailyDigest(list []models.Notification, total, unread int64) Payload {
	var b strings.Builder
	fmt.Fprintf(&b, "Résumé quotidien : %d notifications dont %d non lues.\n\n", total, unread)
	for i, n := range list {
		if i == digestTopItems {
			break
		}
		status := "✅"
		if !n.IsRead {
			status = "🔵"
		}
		fmt.Fprintf(&b, "%s %s\n", status, n.Title)
	}
	if total > digestTopItems {
		fmt.Fprintf(&b, "\n... et %d autres notifications.", total-digestTopItems)
	}
	return digestPayload("Résumé quotidien", b.String())
}

func weeklyDigest(list []models.Notification, unread int64) Payload {
	byCategory := make(map[string]int)
	for _, n := range list {
		byCategory[string(n.Category)]++
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("Résumé hebdomadaire EcosystIA\n\n")
	b.WriteString("📊 Cette semaine :\n")
	fmt.Fprintf(&b, "• %d notifications reçues\n", len(list))
	fmt.Fprintf(&b, "• %d non lues\n\n", unread)
	b.WriteString("📂 Répartition :\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "• %s: %d\n", c, byCategory[c])
	}
	b.WriteString("\nConsultez vos notifications pour rester à jour !")
	return digestPayload("Résumé hebdomadaire", b.String())
}

func digestPayload(title, message string) Payload {
	return Payload{
		Title:     title,
		Message:   message,
		Type:      models.NotificationTypeInfo,
		Category:  models.CategorySystem,
		ActionURL: "/notifications/",
	}
}
