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

type CommentService interface {
	Create(ctx context.Context, authorID string, req *dto.CreateCommentRequest) (*models.Comment, error)
}

type commentService struct {
	comments repositories.CommentRepository
	projects repositories.ProjectRepository
	tasks    repositories.TaskRepository
	users    repositories.UserRepository
	notifier NotificationService
}

func NewCommentService(repos *repositories.Container, notifier NotificationService) CommentService {
	return &commentService{
		comments: repos.Comments,
		projects: repos.Projects,
		tasks:    repos.Tasks,
		users:    repos.Users,
		notifier: notifier,
	}
}

func (s *commentService) Create(ctx context.Context, authorID string, req *dto.CreateCommentRequest) (*models.Comment, error) {
	ownerID, actionURL, err := s.ownerOf(ctx, req.ObjectType, req.ObjectID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		AuthorID:   authorID,
		ObjectType: req.ObjectType,
		ObjectID:   req.ObjectID,
		Content:    req.Content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.InternalError(err)
	}

	if ownerID == "" || ownerID == authorID {
		return comment, nil
	}

	author := "Quelqu'un"
	if u, err := s.users.FindByID(ctx, authorID); err == nil {
		author = u.Username
	}
	p := Payload{
		Title:             "Nouveau commentaire",
		Message:           fmt.Sprintf("%s a commenté votre %s", author, objectLabel(req.ObjectType)),
		Type:              models.NotificationTypeInfo,
		Category:          models.CategoryProject,
		SenderID:          authorID,
		RelatedObjectID:   req.ObjectID,
		RelatedObjectType: req.ObjectType,
		ActionURL:         actionURL,
	}
	if err := s.notifier.SendToUser(ctx, ownerID, p, true); err != nil {
		logger.CtxWithError(ctx, "comment saved but notification failed", err, "comment_id", comment.ID)
	}
	return comment, nil
}

// ownerOf resolves who hears about comments on an object: the project owner,
// or the task assignee. Unassigned tasks have nobody.
func (s *commentService) ownerOf(ctx context.Context, objectType, objectID string) (string, string, error) {
	switch objectType {
	case "project":
		project, err := s.projects.FindByID(ctx, objectID)
		if err != nil {
			if errors.Is(err, repositories.ErrProjectNotFound) {
				return "", "", apperrors.ErrProjectNotFound
			}
			return "", "", apperrors.InternalError(err)
		}
		return project.OwnerID, fmt.Sprintf("/projects/%s/", project.ID), nil
	case "task":
		task, err := s.tasks.FindByID(ctx, objectID)
		if err != nil {
			if errors.Is(err, repositories.ErrTaskNotFound) {
				return "", "", apperrors.ErrTaskNotFound
			}
			return "", "", apperrors.InternalError(err)
		}
		if task.AssigneeID == nil {
			return "", "", nil
		}
		return *task.AssigneeID, fmt.Sprintf("/projects/%s/", task.ProjectID), nil
	default:
		return "", "", apperrors.NewBadRequestError("unsupported comment target: " + objectType)
	}
}

func objectLabel(objectType string) string {
	switch objectType {
	case "project":
		return "projet"
	case "task":
		return "tâche"
	}
	return objectType
}
