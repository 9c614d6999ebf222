package repositories

import (
	"context"
	"errors"

	"ecosystia_backend/internal/models"

	"gorm.io/gorm"
)

var ErrProjectNotFound = errors.New("project not found")

type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	FindByID(ctx context.Context, id string) (*models.Project, error)
	UpdateStatus(ctx context.Context, id string, status models.ProjectStatus) error
	// MemberIDs returns team members and the owner, without duplicates.
	MemberIDs(ctx context.Context, id string) ([]string, error)
	IsMember(ctx context.Context, id, userID string) (bool, error)
}

type ProjectRepositoryImpl struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &ProjectRepositoryImpl{db: db}
}

func (r *ProjectRepositoryImpl) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *ProjectRepositoryImpl) FindByID(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).Preload("TeamMembers").Where("id = ?", id).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (r *ProjectRepositoryImpl) UpdateStatus(ctx context.Context, id string, status models.ProjectStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepositoryImpl) MemberIDs(ctx context.Context, id string) ([]string, error) {
	project, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(project.TeamMembers)+1)
	for _, m := range project.TeamMembers {
		ids = append(ids, m.ID)
	}
	return appendUnique(ids, project.OwnerID), nil
}

func (r *ProjectRepositoryImpl) IsMember(ctx context.Context, id, userID string) (bool, error) {
	db := r.db.WithContext(ctx)

	var owned int64
	if err := db.Model(&models.Project{}).Where("id = ? AND owner_id = ?", id, userID).Count(&owned).Error; err != nil {
		return false, err
	}
	if owned > 0 {
		return true, nil
	}

	var member int64
	err := db.Table("project_team_members").
		Where("project_id = ? AND user_id = ?", id, userID).
		Count(&member).Error
	return member > 0, err
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
