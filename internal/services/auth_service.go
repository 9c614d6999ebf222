package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ecosystia_backend/internal/auth"
	"ecosystia_backend/internal/logger"
	"ecosystia_backend/internal/models"
	"ecosystia_backend/internal/repositories"
	"ecosystia_backend/internal/services/dto"
	"ecosystia_backend/pkg/apperrors"
)

type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	// EnsureStaff creates the first staff account when none exists yet.
	EnsureStaff(ctx context.Context, email, password string) error
	// Welcome sends the signup notifications for a user created elsewhere.
	Welcome(ctx context.Context, userID string) error
}

type authService struct {
	users    repositories.UserRepository
	tokens   *auth.TokenManager
	notifier NotificationService
}

func NewAuthService(repos *repositories.Container, tokens *auth.TokenManager, notifier NotificationService) AuthService {
	return &authService{users: repos.Users, tokens: tokens, notifier: notifier}
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.NewBadRequestError(err.Error())
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	user := &models.User{
		Username:     req.Username,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserAlreadyExists) {
			return nil, apperrors.ErrEmailAlreadyExists
		}
		return nil, apperrors.InternalError(err)
	}

	s.welcome(ctx, user)
	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.InternalError(err)
	}
	if !user.IsActive || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *authService) EnsureStaff(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	count, err := s.users.CountStaff(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user := &models.User{
		Username:     strings.SplitN(email, "@", 2)[0],
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		IsStaff:      true,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil && !errors.Is(err, repositories.ErrUserAlreadyExists) {
		return err
	}
	logger.Info("staff account seeded", "email", user.Email)
	return nil
}

func (s *authService) Welcome(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return apperrors.ErrUserNotFound
		}
		return apperrors.InternalError(err)
	}
	s.welcome(ctx, user)
	return nil
}

// welcome greets the new user and tells staff about the signup.
func (s *authService) welcome(ctx context.Context, user *models.User) {
	greeting := Payload{
		Title:     "Bienvenue sur EcosystIA !",
		Message:   "Votre compte a été créé avec succès. Explorez toutes les fonctionnalités de la plateforme.",
		Type:      models.NotificationTypeSuccess,
		Category:  models.CategoryUser,
		ActionURL: "/dashboard/",
		SendEmail: true,
	}
	if err := s.notifier.SendToUser(ctx, user.ID, greeting, true); err != nil {
		logger.CtxWithError(ctx, "welcome notification failed", err, "user_id", user.ID)
	}

	staff, err := s.users.FindStaffIDs(ctx)
	if err != nil {
		logger.CtxWithError(ctx, "staff lookup failed", err)
		return
	}
	announce := Payload{
		Title:             "Nouvel utilisateur",
		Message:           fmt.Sprintf("Un nouvel utilisateur s'est inscrit : %s (%s)", user.Username, user.Email),
		Type:              models.NotificationTypeInfo,
		Category:          models.CategorySystem,
		RelatedObjectID:   user.ID,
		RelatedObjectType: "user",
		ActionURL:         fmt.Sprintf("/admin/users/%s/", user.ID),
	}
	if err := s.notifier.SendToMultipleUsers(ctx, exclude(staff, user.ID), announce, true); err != nil {
		logger.CtxWithError(ctx, "staff signup notification failed", err, "user_id", user.ID)
	}
}

func (s *authService) issue(user *models.User) (*dto.AuthResponse, error) {
	token, err := s.tokens.Generate(user.ID, user.IsStaff)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		UserID:      user.ID,
		IsStaff:     user.IsStaff,
	}, nil
}
