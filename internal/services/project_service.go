package services

import (
	"context"
	"errors"
	"fmt"

	"ecosystia_backend/internal/logger"
	"ecosystia_backend/internal/models"
	"ecosystia_backend/internal/repositories"
	"ecosystia_backend/internal/services/dto"
	"ecosystia_backend/pkg/apperrors"
)

// StatusTransition describes a status change performed by a domain operation.
// Notifications are decided from it, never from persistence hooks.
type StatusTransition struct {
	ID  string
	Old string
	New string
}

func (t StatusTransition) Changed() bool { return t.Old != t.New }

func (t StatusTransition) Response() *dto.TransitionResponse {
	return &dto.TransitionResponse{ID: t.ID, Old: t.Old, New: t.New, Changed: t.Changed()}
}

type ProjectService interface {
	Create(ctx context.Context, ownerID string, req *dto.CreateProjectRequest) (*models.Project, error)
	ChangeStatus(ctx context.Context, actorID, projectID string, status models.ProjectStatus) (StatusTransition, error)
	IsMember(ctx context.Context, projectID, userID string) (bool, error)
}

type projectService struct {
	projects repositories.ProjectRepository
	users    repositories.UserRepository
	notifier NotificationService
}

func NewProjectService(repos *repositories.Container, notifier NotificationService) ProjectService {
	return &projectService{projects: repos.Projects, users: repos.Users, notifier: notifier}
}

func (s *projectService) Create(ctx context.Context, ownerID string, req *dto.CreateProjectRequest) (*models.Project, error) {
	owner, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		return nil, mapUserErr(err)
	}

	members, err := s.users.FindByIDs(ctx, req.TeamMemberIDs)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if len(members) != len(unique(req.TeamMemberIDs)) {
		return nil, apperrors.ErrUserNotFound
	}

	project := &models.Project{
		Name:        req.Name,
		OwnerID:     ownerID,
		Status:      models.ProjectStatusPlanning,
		TeamMembers: members,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, apperrors.InternalError(err)
	}

	p := Payload{
		Title:             "Mise à jour de projet",
		Message:           fmt.Sprintf("%s a créé le projet \"%s\"", owner.Username, project.Name),
		Type:              models.NotificationTypeInfo,
		Category:          models.CategoryProject,
		SenderID:          ownerID,
		RelatedObjectID:   project.ID,
		RelatedObjectType: "project",
		ActionURL:         fmt.Sprintf("/projects/%s/", project.ID),
	}
	if err := s.notifier.SendToProjectMembers(ctx, project.ID, p, ownerID); err != nil {
		logger.CtxWithError(ctx, "project created but notification failed", err, "project_id", project.ID)
	}
	return project, nil
}

func (s *projectService) ChangeStatus(ctx context.Context, actorID, projectID string, status models.ProjectStatus) (StatusTransition, error) {
	if !status.Valid() {
		return StatusTransition{}, apperrors.ErrInvalidStatus("project", fmt.Sprintf("unknown project status %q", status))
	}
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repositories.ErrProjectNotFound) {
			return StatusTransition{}, apperrors.ErrProjectNotFound
		}
		return StatusTransition{}, apperrors.InternalError(err)
	}

	tr := StatusTransition{ID: projectID, Old: string(project.Status), New: string(status)}
	if !tr.Changed() {
		return tr, nil
	}
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		return StatusTransition{}, mapUserErr(err)
	}
	if err := s.projects.UpdateStatus(ctx, projectID, status); err != nil {
		return tr, apperrors.InternalError(err)
	}

	p := Payload{
		Title:             "Mise à jour de projet",
		Message:           projectUpdateMessage(actor.Username, project.Name, status),
		Type:              models.NotificationTypeInfo,
		Category:          models.CategoryProject,
		SenderID:          actorID,
		RelatedObjectID:   projectID,
		RelatedObjectType: "project",
		ActionURL:         fmt.Sprintf("/projects/%s/", projectID),
	}
	if err := s.notifier.SendToProjectMembers(ctx, projectID, p, actorID); err != nil {
		logger.CtxWithError(ctx, "project status changed but notification failed", err, "project_id", projectID)
	}
	return tr, nil
}

func (s *projectService) IsMember(ctx context.Context, projectID, userID string) (bool, error) {
	return s.projects.IsMember(ctx, projectID, userID)
}

func projectUpdateMessage(actor, name string, status models.ProjectStatus) string {
	switch status {
	case models.ProjectStatusCompleted:
		return fmt.Sprintf("Le projet \"%s\" a été marqué comme terminé", name)
	case models.ProjectStatusCancelled:
		return fmt.Sprintf("Le projet \"%s\" a été annulé", name)
	default:
		return fmt.Sprintf("%s a mis à jour le projet \"%s\"", actor, name)
	}
}

func mapUserErr(err error) error {
	if errors.Is(err, repositories.ErrUserNotFound) {
		return apperrors.ErrUserNotFound
	}
	return apperrors.InternalError(err)
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
