package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/config"
	"github.com/fastygo/todo/internal/metrics"
)

const primaryCalendar = "primary"

// CalendarClient creates and deletes events on the signed-in user's primary
// calendar. The bearer token is passed per call; nothing is cached or refreshed.
type CalendarClient struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	metrics    *metrics.Metrics
}

// NewCalendarClient builds a client. httpClient may be nil.
func NewCalendarClient(cfg config.CalendarConfig, httpClient *http.Client, m *metrics.Metrics) *CalendarClient {
	return &CalendarClient{
		endpoint:   cfg.Endpoint,
		httpClient: httpClient,
		timeout:    cfg.Timeout,
		metrics:    m,
	}
}

// CreateEvent inserts ev and returns the id Google assigned to it.
func (c *CalendarClient) CreateEvent(ctx context.Context, token string, ev domain.CalendarEvent) (string, error) {
	if token == "" {
		return "", domain.ErrCalendarTokenMissing
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	svc, err := c.service(ctx, token)
	if err != nil {
		return "", err
	}

	created, err := svc.Events.Insert(primaryCalendar, &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       eventTime(ev.Start, ev.TimeZone),
		End:         eventTime(ev.End, ev.TimeZone),
	}).Context(ctx).Do()
	c.metrics.CalendarRequest("insert", err)
	if err != nil {
		return "", classify(err)
	}
	return created.Id, nil
}

// DeleteEvent removes an event created earlier by CreateEvent.
func (c *CalendarClient) DeleteEvent(ctx context.Context, token, eventID string) error {
	if token == "" {
		return domain.ErrCalendarTokenMissing
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	svc, err := c.service(ctx, token)
	if err != nil {
		return err
	}

	err = svc.Events.Delete(primaryCalendar, eventID).Context(ctx).Do()
	c.metrics.CalendarRequest("delete", err)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *CalendarClient) service(ctx context.Context, token string) (*calendar.Service, error) {
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, src))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return svc, nil
}

func (c *CalendarClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func eventTime(t time.Time, tz string) *calendar.EventDateTime {
	return &calendar.EventDateTime{
		DateTime: t.UTC().Format(time.RFC3339),
		TimeZone: tz,
	}
}

// classify maps Google API failures onto domain errors.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized {
			return domain.ErrCalendarAccessExpired.Wrap(err)
		}
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.Code)
		}
		return domain.WrapError(domain.ErrCodeUpstream, "Calendar API error: "+msg, err)
	}
	return domain.ErrCalendarUnreachable.Wrap(err)
}
