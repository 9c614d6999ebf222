package repositories

import (
	"context"
	"errors"

	"ecosystia_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrTemplateNotFound = errors.New("notification template not found")

type PreferenceRepository interface {
	// GetOrCreate returns the user's preferences, storing the defaults on first access.
	GetOrCreate(ctx context.Context, userID string) (*models.NotificationPreference, error)
	Update(ctx context.Context, pref *models.NotificationPreference) error
	FindUserIDsByDigest(ctx context.Context, freq models.DigestFrequency) ([]string, error)
}

type PreferenceRepositoryImpl struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &PreferenceRepositoryImpl{db: db}
}

func (r *PreferenceRepositoryImpl) GetOrCreate(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	db := r.db.WithContext(ctx)

	var pref models.NotificationPreference
	err := db.Where("user_id = ?", userID).First(&pref).Error
	if err == nil {
		return &pref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := models.DefaultPreference(userID)
	// A concurrent first access may win the insert; re-read in that case.
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(created).Error; err != nil {
		return nil, err
	}
	if err := db.Where("user_id = ?", userID).First(&pref).Error; err != nil {
		return nil, err
	}
	return &pref, nil
}

func (r *PreferenceRepositoryImpl) Update(ctx context.Context, pref *models.NotificationPreference) error {
	return r.db.WithContext(ctx).Save(pref).Error
}

// FindUserIDsByDigest lists active users whose digest frequency is freq.
func (r *PreferenceRepositoryImpl) FindUserIDsByDigest(ctx context.Context, freq models.DigestFrequency) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.NotificationPreference{}).
		Joins("JOIN users ON users.id = notification_preferences.user_id").
		Where("notification_preferences.digest_frequency = ? AND users.is_active = ?", freq, true).
		Pluck("notification_preferences.user_id", &ids).Error
	return ids, err
}

type TemplateRepository interface {
	Create(ctx context.Context, tpl *models.NotificationTemplate) error
	FindActiveByName(ctx context.Context, name string) (*models.NotificationTemplate, error)
	List(ctx context.Context) ([]models.NotificationTemplate, error)
}

type TemplateRepositoryImpl struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &TemplateRepositoryImpl{db: db}
}

func (r *TemplateRepositoryImpl) Create(ctx context.Context, tpl *models.NotificationTemplate) error {
	return r.db.WithContext(ctx).Create(tpl).Error
}

func (r *TemplateRepositoryImpl) FindActiveByName(ctx context.Context, name string) (*models.NotificationTemplate, error) {
	var tpl models.NotificationTemplate
	err := r.db.WithContext(ctx).Where("name = ? AND is_active = ?", name, true).First(&tpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &tpl, nil
}

func (r *TemplateRepositoryImpl) List(ctx context.Context) ([]models.NotificationTemplate, error) {
	var templates []models.NotificationTemplate
	err := r.db.WithContext(ctx).Order("name").Find(&templates).Error
	return templates, err
}
