package models

import (
	"encoding/json"
	"time"
)

// Guideline is one prayer guideline published by the backend. Guidelines are
// read-only on the client and live in the cache.
type Guideline struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Content         string          `json:"content"`
	WeekNumber      int             `json:"week_number"`
	Day             *int            `json:"day,omitempty"`
	DayOfWeek       *string         `json:"day_of_week,omitempty"`
	Month           *string         `json:"month,omitempty"`
	Steps           json.RawMessage `json:"steps,omitempty"`
	IsCurrentWeek   *bool           `json:"is_current_week,omitempty"`
	IsAutoGenerated *bool           `json:"is_auto_generated,omitempty"`
	CreatedBy       *string         `json:"created_by,omitempty"`
	DateUploaded    *time.Time      `json:"date_uploaded,omitempty"`
}

func (g Guideline) RecordKey() string { return g.ID }

// Announcement is a message broadcast to every user.
type Announcement struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (a Announcement) RecordKey() string { return a.ID }

// Profile is the public profile of a user.
type Profile struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	StreakCount      int        `json:"streak_count"`
	RemindersEnabled bool       `json:"reminders_enabled"`
	LastJournalDate  *string    `json:"last_journal_date,omitempty"`
	VoicePreference  *string    `json:"voice_preference,omitempty"`
	TwoFactorEnabled *bool      `json:"two_factor_enabled,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
}

func (p Profile) RecordKey() string { return p.ID }

// PrayerProgress summarizes the days of a week a user completed a prayer.
type PrayerProgress struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	WeekNumber    int        `json:"week_number"`
	CompletedDays []string   `json:"completed_days"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

func (p PrayerProgress) RecordKey() string { return p.ID }
