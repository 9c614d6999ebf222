package validator

import (
	"ecosystia_backend/internal/models"

	"github.com/go-playground/validator/v10"
)

func registerCustomRules(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"is-notification-type":     stringRule(func(s string) bool { return models.NotificationType(s).Valid() }),
		"is-notification-category": stringRule(func(s string) bool { return models.NotificationCategory(s).Valid() }),
		"is-digest-frequency":      stringRule(validDigest),
		"is-project-status":        stringRule(func(s string) bool { return models.ProjectStatus(s).Valid() }),
		"is-invoice-status":        stringRule(func(s string) bool { return models.InvoiceStatus(s).Valid() }),
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// stringRule skips empty values; "required" covers those.
func stringRule(ok func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		return ok(value)
	}
}

func validDigest(s string) bool {
	switch models.DigestFrequency(s) {
	case models.DigestNever, models.DigestDaily, models.DigestWeekly, models.DigestMonthly:
		return true
	}
	return false
}
