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

// AssigneeTransition describes a reassignment. An empty side means unassigned.
type AssigneeTransition struct {
	TaskID string
	Old    string
	New    string
}

func (t AssigneeTransition) Changed() bool { return t.Old != t.New }

func (t AssigneeTransition) Response() *dto.TransitionResponse {
	return &dto.TransitionResponse{ID: t.TaskID, Old: t.Old, New: t.New, Changed: t.Changed()}
}

type TaskService interface {
	Assign(ctx context.Context, actorID, taskID, assigneeID string) (AssigneeTransition, error)
	// IsProjectMember reports whether userID belongs to the project owning taskID.
	IsProjectMember(ctx context.Context, taskID, userID string) (bool, error)
}

type taskService struct {
	tasks    repositories.TaskRepository
	projects repositories.ProjectRepository
	users    repositories.UserRepository
	notifier NotificationService
}

func NewTaskService(repos *repositories.Container, notifier NotificationService) TaskService {
	return &taskService{tasks: repos.Tasks, projects: repos.Projects, users: repos.Users, notifier: notifier}
}

func (s *taskService) Assign(ctx context.Context, actorID, taskID, assigneeID string) (AssigneeTransition, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repositories.ErrTaskNotFound) {
			return AssigneeTransition{}, apperrors.ErrTaskNotFound
		}
		return AssigneeTransition{}, apperrors.InternalError(err)
	}

	tr := AssigneeTransition{TaskID: taskID, New: assigneeID}
	if task.AssigneeID != nil {
		tr.Old = *task.AssigneeID
	}
	if !tr.Changed() {
		return tr, nil
	}

	var next *string
	if assigneeID != "" {
		if _, err := s.users.FindByID(ctx, assigneeID); err != nil {
			return AssigneeTransition{}, mapUserErr(err)
		}
		next = &assigneeID
	}
	if err := s.tasks.UpdateAssignee(ctx, taskID, next); err != nil {
		return AssigneeTransition{}, apperrors.InternalError(err)
	}

	// Nobody is told about a task they took themselves.
	if next == nil || assigneeID == actorID {
		return tr, nil
	}

	assigner := "Quelqu'un"
	if actor, err := s.users.FindByID(ctx, actorID); err == nil {
		assigner = actor.Username
	}
	p := Payload{
		Title:             "Nouvelle tâche assignée",
		Message:           fmt.Sprintf("%s vous a assigné la tâche \"%s\"", assigner, task.Title),
		Type:              models.NotificationTypeInfo,
		Category:          models.CategoryProject,
		SenderID:          actorID,
		RelatedObjectID:   taskID,
		RelatedObjectType: "task",
		ActionURL:         fmt.Sprintf("/projects/%s/", task.ProjectID),
	}
	if err := s.notifier.SendToUser(ctx, assigneeID, p, true); err != nil {
		logger.CtxWithError(ctx, "task assigned but notification failed", err, "task_id", taskID)
	}
	return tr, nil
}

func (s *taskService) IsProjectMember(ctx context.Context, taskID, userID string) (bool, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repositories.ErrTaskNotFound) {
			return false, apperrors.ErrTaskNotFound
		}
		return false, apperrors.InternalError(err)
	}
	ok, err := s.projects.IsMember(ctx, task.ProjectID, userID)
	if err != nil {
		return false, apperrors.InternalError(err)
	}
	return ok, nil
}
