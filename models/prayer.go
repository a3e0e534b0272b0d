package models

import (
	"strings"
	"time"
)

// PrayerCompletion records that a user finished the prayer of a guideline
// on a given day. It is uploaded to daily_prayers.
type PrayerCompletion struct {
	ID          string    `json:"id,omitempty"`
	UserID      string    `json:"user_id"`
	GuidelineID *string   `json:"guideline_id,omitempty"`
	DayOfWeek   string    `json:"day_of_week"`
	CompletedAt time.Time `json:"completed_at"`

	// JournalEntry is the reflection written at the end of the session, if any.
	// The server stores it separately in journal_entries.
	JournalEntry *JournalEntry `json:"journal_entry,omitempty"`
}

func (p PrayerCompletion) RecordKey() string { return p.ID }

// Normalize lower-cases the day of week, deriving it from CompletedAt when
// empty.
func (p PrayerCompletion) Normalize() PrayerCompletion {
	if p.DayOfWeek == "" && !p.CompletedAt.IsZero() {
		p.DayOfWeek = p.CompletedAt.Weekday().String()
	}
	p.DayOfWeek = strings.ToLower(p.DayOfWeek)
	return p
}
