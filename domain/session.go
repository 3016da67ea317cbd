package domain

import "time"

// Session is a signed-in browser session. CalendarToken is the Google bearer
// token granted for the calendar scope; it lives exactly as long as the session.
type Session struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	CalendarToken string    `json:"calendar_token,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !s.ExpiresAt.After(reference)
}

// HasCalendarToken reports whether calendar calls can be authorized.
func (s *Session) HasCalendarToken() bool {
	return s != nil && s.CalendarToken != ""
}
