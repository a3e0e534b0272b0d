package validators

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MKhiriev/go-spirit-connect/models"
)

// Field names accepted by [RecordValidator.Validate].
const (
	FieldUserID      = "user_id"
	FieldDate        = "date"
	FieldDayOfWeek   = "day_of_week"
	FieldCompletedAt = "completed_at"
	FieldReflection  = "journal_entry"
)

var weekdays = map[string]struct{}{
	"sunday": {}, "monday": {}, "tuesday": {}, "wednesday": {},
	"thursday": {}, "friday": {}, "saturday": {},
}

// RecordValidator validates journal entries, entry patches and prayer
// completions.
type RecordValidator struct{}

func NewRecordValidator() Validator {
	return &RecordValidator{}
}

// Validate checks obj. Without fields every rule of the type applies; a
// patch has no fields and only requires one change.
func (v *RecordValidator) Validate(ctx context.Context, obj any, fields ...string) error {
	switch value := obj.(type) {
	case models.JournalEntry:
		return v.validateEntry(value, fields...)
	case *models.JournalEntry:
		return v.validateEntry(*value, fields...)

	case models.JournalEntryPatch:
		return v.validatePatch(value)
	case *models.JournalEntryPatch:
		return v.validatePatch(*value)

	case models.PrayerCompletion:
		return v.validateCompletion(ctx, value, fields...)
	case *models.PrayerCompletion:
		return v.validateCompletion(ctx, *value, fields...)

	default:
		return ErrUnsupportedType
	}
}

func (v *RecordValidator) validateEntry(entry models.JournalEntry, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldUserID, FieldDate}
	}

	for _, field := range fields {
		switch field {
		case FieldUserID:
			if strings.TrimSpace(entry.UserID) == "" {
				return ErrInvalidUserID
			}
		case FieldDate:
			// empty dates are filled in by the service
			if entry.Date == "" {
				continue
			}
			if _, err := time.Parse(models.DateLayout, entry.Date); err != nil {
				return fmt.Errorf("%w: %q", ErrInvalidDate, entry.Date)
			}
		default:
			return fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
	}
	return nil
}

func (v *RecordValidator) validatePatch(patch models.JournalEntryPatch) error {
	if patch.Title == nil && patch.Content == nil && patch.IsAnswered == nil && patch.TestimonyText == nil {
		return ErrNoFieldsToUpdate
	}
	return nil
}

func (v *RecordValidator) validateCompletion(ctx context.Context, c models.PrayerCompletion, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldUserID, FieldDayOfWeek, FieldCompletedAt, FieldReflection}
	}

	for _, field := range fields {
		switch field {
		case FieldUserID:
			if strings.TrimSpace(c.UserID) == "" {
				return ErrInvalidUserID
			}
		case FieldDayOfWeek:
			if _, ok := weekdays[strings.ToLower(c.DayOfWeek)]; !ok {
				return fmt.Errorf("%w: %q", ErrInvalidDayOfWeek, c.DayOfWeek)
			}
		case FieldCompletedAt:
			if c.CompletedAt.IsZero() {
				return ErrMissingCompletionTime
			}
		case FieldReflection:
			if c.JournalEntry == nil {
				continue
			}
			if err := v.validateEntry(*c.JournalEntry, FieldDate); err != nil {
				return fmt.Errorf("reflection: %w", err)
			}
		default:
			return fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
	}
	return nil
}
