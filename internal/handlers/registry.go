package handlers

import (
	"ecosystia_backend/internal/services"
	"ecosystia_backend/internal/validator"
)

// AppHandlers holds every HTTP handler of the API.
type AppHandlers struct {
	AuthHandler         *AuthHandler
	NotificationHandler *NotificationHandler
	DomainHandler       *DomainHandler
}

func NewAppHandlers(svc *services.ServiceContainer, bulk BulkSender, v *validator.Validator) *AppHandlers {
	base := NewBaseHandler(v)
	return &AppHandlers{
		AuthHandler:         NewAuthHandler(base, svc.AuthService),
		NotificationHandler: NewNotificationHandler(base, svc.InboxService, svc.NotificationService, bulk),
		DomainHandler:       NewDomainHandler(base, svc),
	}
}
