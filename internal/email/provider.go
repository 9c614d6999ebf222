package email

import (
	"context"

	"ecosystia_backend/internal/logger"
)

// Provider delivers email.
type Provider interface {
	Send(ctx context.Context, email *Email) error
	// SendTemplate renders templateName with data as the HTML body and sends it.
	SendTemplate(ctx context.Context, to []string, subject, templateName string, data TemplateData) error
}

// LogProvider writes messages to the log instead of sending them. It is used
// when email delivery is disabled.
type LogProvider struct {
	renderer *TemplateManager
}

func NewLogProvider(renderer *TemplateManager) *LogProvider {
	return &LogProvider{renderer: renderer}
}

func (p *LogProvider) Send(ctx context.Context, email *Email) error {
	logger.CtxInfo(ctx, "email suppressed", "to", email.To, "subject", email.Subject)
	return nil
}

func (p *LogProvider) SendTemplate(ctx context.Context, to []string, subject, templateName string, data TemplateData) error {
	body, err := p.renderer.Render(templateName, data)
	if err != nil {
		return err
	}
	return p.Send(ctx, &Email{To: to, Subject: subject, HTMLBody: body})
}
