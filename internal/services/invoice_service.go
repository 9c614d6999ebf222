package services

import (
	"context"
	"errors"
	"fmt"

	"ecosystia_backend/internal/logger"
	"ecosystia_backend/internal/models"
	"ecosystia_backend/internal/repositories"
	"ecosystia_backend/pkg/apperrors"
)

type InvoiceService interface {
	ChangeStatus(ctx context.Context, invoiceID string, status models.InvoiceStatus) (StatusTransition, error)
}

type invoiceService struct {
	invoices repositories.InvoiceRepository
	notifier NotificationService
}

func NewInvoiceService(repos *repositories.Container, notifier NotificationService) InvoiceService {
	return &invoiceService{invoices: repos.Invoices, notifier: notifier}
}

// ChangeStatus notifies the client only on the transition into paid.
func (s *invoiceService) ChangeStatus(ctx context.Context, invoiceID string, status models.InvoiceStatus) (StatusTransition, error) {
	if !status.Valid() {
		return StatusTransition{}, apperrors.ErrInvalidStatus("invoice", fmt.Sprintf("unknown invoice status %q", status))
	}
	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repositories.ErrInvoiceNotFound) {
			return StatusTransition{}, apperrors.ErrInvoiceNotFound
		}
		return StatusTransition{}, apperrors.InternalError(err)
	}

	tr := StatusTransition{ID: invoiceID, Old: string(invoice.Status), New: string(status)}
	if !tr.Changed() {
		return tr, nil
	}
	if err := s.invoices.UpdateStatus(ctx, invoiceID, status); err != nil {
		return tr, apperrors.InternalError(err)
	}

	if status != models.InvoiceStatusPaid {
		return tr, nil
	}
	p := Payload{
		Title:             "Paiement reçu",
		Message:           fmt.Sprintf("Le paiement de la facture #%s a été confirmé", invoice.Number),
		Type:              models.NotificationTypeSuccess,
		Category:          models.CategoryFinance,
		RelatedObjectID:   invoiceID,
		RelatedObjectType: "invoice",
		ActionURL:         fmt.Sprintf("/finance/invoices/%s/", invoiceID),
		SendEmail:         true,
		SendPush:          true,
	}
	if err := s.notifier.SendToUser(ctx, invoice.ClientUserID, p, true); err != nil {
		logger.CtxWithError(ctx, "invoice paid but notification failed", err, "invoice_id", invoiceID)
	}
	return tr, nil
}
