package calendarlink

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/todo/domain"
)

// PickerLayout is the format of an HTML datetime-local value.
const PickerLayout = "2006-01-02T15:04"

// EventDescription is attached to every event created for a task.
const EventDescription = "Created from To-Do App"

const (
	eventDuration = time.Hour
	recordTimeout = 5 * time.Second
)

var parseLayouts = []string{PickerLayout, "2006-01-02T15:04:05"}

// Tasks is the part of the task use case the flow writes through.
type Tasks interface {
	Get(ctx context.Context, userID, id string) (*domain.Task, error)
	AttachEvent(ctx context.Context, userID, id, eventID string) (*domain.Task, error)
}

// Calendar creates remote events with a caller-supplied bearer token.
type Calendar interface {
	CreateEvent(ctx context.Context, token string, ev domain.CalendarEvent) (string, error)
}

// Request confirms a picked date/time for a task.
type Request struct {
	UserID   string
	TaskID   string
	DateTime string
	TimeZone string
	Token    string
}

// Result carries the state the picker should show after Confirm. It is set
// even when Confirm returns an error.
type Result struct {
	State domain.LinkState `json:"state"`
	Task  *domain.Task     `json:"task,omitempty"`
}

type Flow struct {
	tasks     Tasks
	calendar  Calendar
	defaultTZ string
	logger    *zap.Logger
}

func New(tasks Tasks, calendar Calendar, defaultTZ string, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultTZ == "" {
		defaultTZ = "UTC"
	}
	return &Flow{
		tasks:     tasks,
		calendar:  calendar,
		defaultTZ: defaultTZ,
		logger:    logger,
	}
}

// Propose returns the picker's initial value: one hour from now in loc.
func (f *Flow) Propose(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = f.location("")
	}
	return now.In(loc).Add(eventDuration).Format(PickerLayout)
}

// Confirm creates a one-hour event for the task and records its id.
func (f *Flow) Confirm(ctx context.Context, req Request) (*Result, error) {
	task, err := f.tasks.Get(ctx, req.UserID, req.TaskID)
	if err != nil {
		return &Result{State: domain.LinkUnlinked}, err
	}
	pending := &Result{State: domain.LinkPending, Task: task}

	loc := f.location(req.TimeZone)
	start, err := ParseDateTime(req.DateTime, loc)
	if err != nil {
		return pending, err
	}

	if req.Token == "" {
		return &Result{State: domain.LinkUnlinked, Task: task}, domain.ErrCalendarTokenMissing
	}

	eventID, err := f.calendar.CreateEvent(ctx, req.Token, domain.CalendarEvent{
		Summary:     task.Text,
		Description: EventDescription,
		Start:       start,
		End:         start.Add(eventDuration),
		TimeZone:    loc.String(),
	})
	if err != nil {
		f.logger.Warn("calendar event creation failed",
			zap.String("user_id", req.UserID),
			zap.String("task_id", req.TaskID),
			zap.Error(err),
		)
		return pending, err
	}

	// The event exists now; record its id even if the request deadline ran out.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	linked, err := f.tasks.AttachEvent(recordCtx, req.UserID, req.TaskID, eventID)
	if err != nil {
		f.logger.Error("failed to record calendar event",
			zap.String("task_id", req.TaskID),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		return pending, err
	}
	return &Result{State: domain.LinkLinked, Task: linked}, nil
}

// Location resolves a time zone name, falling back to the configured default
// and then UTC.
func (f *Flow) Location(name string) *time.Location {
	return f.location(name)
}

func (f *Flow) location(name string) *time.Location {
	for _, candidate := range []string{name, f.defaultTZ} {
		if candidate == "" {
			continue
		}
		if loc, err := time.LoadLocation(candidate); err == nil {
			return loc
		}
	}
	return time.UTC
}

// ParseDateTime accepts picker values, with or without seconds, interpreted
// in loc, and RFC 3339 timestamps.
func ParseDateTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, domain.ErrInvalidDateTime
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, domain.ErrInvalidDateTime
}
