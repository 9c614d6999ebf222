package repositories

import (
	"context"
	"errors"
	"time"

	"ecosystia_backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidNotification  = errors.New("invalid notification data")
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	FindForRecipient(ctx context.Context, recipientID string, filter NotificationFilter) ([]models.Notification, int64, error)
	FindUnread(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)

	// MarkAsRead flips one unread notification owned by recipientID. It reports
	// whether a transition happened; a second call is a no-op.
	MarkAsRead(ctx context.Context, recipientID, id string) (bool, error)
	MarkAllAsRead(ctx context.Context, recipientID string) (int64, error)

	Delete(ctx context.Context, recipientID, id string) error
	DeleteRead(ctx context.Context, recipientID string) (int64, error)
	DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	CountUnread(ctx context.Context, recipientID string) (int64, error)
	CountUnreadSince(ctx context.Context, recipientID string, since time.Time) (int64, error)
	Stats(ctx context.Context, recipientID string, now time.Time) (*NotificationStats, error)
}

// NotificationFilter narrows FindForRecipient. Zero values mean "any".
type NotificationFilter struct {
	Type     models.NotificationType
	Category models.NotificationCategory
	IsRead   *bool
	Since    time.Time
	Limit    int
	Offset   int
}

type NotificationStats struct {
	Total      int64            `json:"total"`
	Unread     int64            `json:"unread"`
	Today      int64            `json:"today"`
	ThisWeek   int64            `json:"this_week"`
	ByType     map[string]int64 `json:"by_type"`
	ByCategory map[string]int64 `json:"by_category"`
}

type NotificationRepositoryImpl struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &NotificationRepositoryImpl{db: db}
}

func (r *NotificationRepositoryImpl) Create(ctx context.Context, n *models.Notification) error {
	if err := validateNotification(n); err != nil {
		return err
	}
	n.IsRead = false
	n.ReadAt = nil
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *NotificationRepositoryImpl) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepositoryImpl) FindForRecipient(ctx context.Context, recipientID string, filter NotificationFilter) ([]models.Notification, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		q := db.Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
		if filter.Type != "" {
			q = q.Where("notification_type = ?", filter.Type)
		}
		if filter.Category != "" {
			q = q.Where("category = ?", filter.Category)
		}
		if filter.IsRead != nil {
			q = q.Where("is_read = ?", *filter.IsRead)
		}
		if !filter.Since.IsZero() {
			q = q.Where("created_at >= ?", filter.Since)
		}
		return q
	}

	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := db.Scopes(scope).Order("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var notifications []models.Notification
	if err := q.Find(&notifications).Error; err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *NotificationRepositoryImpl) FindUnread(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

func (r *NotificationRepositoryImpl) MarkAsRead(ctx context.Context, recipientID, id string) (bool, error) {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ? AND is_read = ?", id, recipientID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	// Nothing changed: either already read or not ours.
	var count int64
	if err := db.Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrNotificationNotFound
	}
	return false, nil
}

func (r *NotificationRepositoryImpl) MarkAllAsRead(ctx context.Context, recipientID string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *NotificationRepositoryImpl) Delete(ctx context.Context, recipientID, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepositoryImpl) DeleteRead(ctx context.Context, recipientID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("recipient_id = ? AND is_read = ?", recipientID, true).
		Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}

// DeleteReadOlderThan never touches unread rows, whatever their age.
func (r *NotificationRepositoryImpl) DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}

func (r *NotificationRepositoryImpl) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

func (r *NotificationRepositoryImpl) CountUnreadSince(ctx context.Context, recipientID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ? AND created_at >= ?", recipientID, false, since).
		Count(&count).Error
	return count, err
}

func (r *NotificationRepositoryImpl) Stats(ctx context.Context, recipientID string, now time.Time) (*NotificationStats, error) {
	db := r.db.WithContext(ctx)
	base := func() *gorm.DB {
		return db.Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
	}

	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := now.AddDate(0, 0, -7)

	stats := &NotificationStats{
		ByType:     make(map[string]int64),
		ByCategory: make(map[string]int64),
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := base().Where("is_read = ?", false).Count(&stats.Unread).Error; err != nil {
		return nil, err
	}
	if err := base().Where("created_at >= ?", todayStart).Count(&stats.Today).Error; err != nil {
		return nil, err
	}
	if err := base().Where("created_at >= ?", weekStart).Count(&stats.ThisWeek).Error; err != nil {
		return nil, err
	}

	var byType []struct {
		Name  string
		Count int64
	}
	if err := base().Select("notification_type AS name, COUNT(*) AS count").
		Group("notification_type").Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, row := range byType {
		stats.ByType[row.Name] = row.Count
	}

	var byCategory []struct {
		Name  string
		Count int64
	}
	if err := base().Select("category AS name, COUNT(*) AS count").
		Group("category").Scan(&byCategory).Error; err != nil {
		return nil, err
	}
	for _, row := range byCategory {
		stats.ByCategory[row.Name] = row.Count
	}

	return stats, nil
}

func validateNotification(n *models.Notification) error {
	if n.RecipientID == "" || n.Title == "" {
		return ErrInvalidNotification
	}
	if !n.Type.Valid() || !n.Category.Valid() {
		return ErrInvalidNotification
	}
	return nil
}
