package domain

import (
	"slices"
	"strings"
	"time"
)

// Task is a to-do item owned by exactly one user.
type Task struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Text            string    `json:"text"`
	Completed       bool      `json:"completed"`
	CreatedAt       time.Time `json:"created_at"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
}

// IsLinked reports whether a calendar event was created for the task.
func (t *Task) IsLinked() bool {
	return t != nil && t.CalendarEventID != ""
}

// NormalizeTaskText trims the text and rejects blank input.
func NormalizeTaskText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTaskText
	}
	return text, nil
}

// SortNewestFirst orders tasks by CreatedAt descending. A zero timestamp
// counts as the epoch, so such tasks end up last.
func SortNewestFirst(tasks []Task) {
	slices.SortFunc(tasks, func(a, b Task) int {
		return compareMillis(b.CreatedAt, a.CreatedAt)
	})
}

func compareMillis(a, b time.Time) int {
	am, bm := millis(a), millis(b)
	switch {
	case am < bm:
		return -1
	case am > bm:
		return 1
	default:
		return 0
	}
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
