package domain

import "time"

// CalendarEvent is the event created for a linked task.
type CalendarEvent struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
}

// LinkState is the calendar linking state of a task in the UI flow.
type LinkState string

const (
	LinkUnlinked LinkState = "unlinked"
	LinkPending  LinkState = "pending"
	LinkLinked   LinkState = "linked"
)
