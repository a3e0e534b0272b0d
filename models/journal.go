package models

import "time"

// JournalEntry is one prayer journal entry as stored by the backend in
// journal_entries.
type JournalEntry struct {
	ID            string     `json:"id,omitempty"`
	UserID        string     `json:"user_id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Date          string     `json:"date"`
	IsAnswered    bool       `json:"is_answered"`
	IsShared      bool       `json:"is_shared"`
	IsShareable   *bool      `json:"is_shareable,omitempty"`
	ShareableID   *string    `json:"shareable_id,omitempty"`
	SharedAt      *time.Time `json:"shared_at,omitempty"`
	TestimonyText *string    `json:"testimony_text,omitempty"`
	VoiceNoteURL  *string    `json:"voice_note_url,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

func (j JournalEntry) RecordKey() string { return j.ID }

// SortTime is the instant used to order entries newest first: the entry
// date when it parses, the creation time otherwise.
func (j JournalEntry) SortTime() time.Time {
	for _, layout := range []string{DateLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, j.Date); err == nil {
			return t
		}
	}
	if j.CreatedAt != nil {
		return *j.CreatedAt
	}
	return time.Time{}
}

// JournalEntryPatch carries the editable fields of an entry. Nil fields are
// left unchanged.
type JournalEntryPatch struct {
	Title         *string `json:"title,omitempty"`
	Content       *string `json:"content,omitempty"`
	IsAnswered    *bool   `json:"is_answered,omitempty"`
	TestimonyText *string `json:"testimony_text,omitempty"`
}

// DateLayout is the calendar date format of journal entries.
const DateLayout = "2006-01-02"

// Apply returns e with the non-nil fields of p set and UpdatedAt moved to at.
func (p JournalEntryPatch) Apply(e JournalEntry, at time.Time) JournalEntry {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Content != nil {
		e.Content = *p.Content
	}
	if p.IsAnswered != nil {
		e.IsAnswered = *p.IsAnswered
	}
	if p.TestimonyText != nil {
		text := *p.TestimonyText
		e.TestimonyText = &text
	}
	e.UpdatedAt = &at
	return e
}
