package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/fastygo/todo/internal/config"
)

func TestOAuth_AuthCodeURLRequestsCalendarScope(t *testing.T) {
	o := NewOAuth(config.GoogleConfig{ClientID: "cid", ClientSecret: "sec", RedirectURL: "http://localhost/cb"})

	raw := o.AuthCodeURL("state-1")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Contains(t, q.Get("scope"), "https://www.googleapis.com/auth/calendar.events")
	assert.Contains(t, q.Get("scope"), "email")
}

func TestOAuth_Exchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "code-1", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"g-123","email":"Ada@Example.com","name":"Ada"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	o := NewOAuth(config.GoogleConfig{ClientID: "cid", ClientSecret: "sec"},
		WithOAuthEndpoint(oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}),
		WithUserinfoEndpoint(srv.URL+"/"),
		WithOAuthHTTPClient(srv.Client()),
	)

	id, err := o.Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, "g-123", id.Subject)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.Equal(t, "Ada", id.DisplayName)
	assert.Equal(t, "at-1", id.AccessToken)
	assert.False(t, id.Expiry.IsZero())
}

func TestOAuth_ExchangeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	t.Cleanup(srv.Close)

	o := NewOAuth(config.GoogleConfig{ClientID: "cid", ClientSecret: "sec"},
		WithOAuthEndpoint(oauth2.Endpoint{TokenURL: srv.URL + "/token"}),
		WithOAuthHTTPClient(srv.Client()),
	)
	_, err := o.Exchange(context.Background(), "bad")
	assert.Error(t, err)

	_, err = o.Exchange(context.Background(), "")
	assert.Error(t, err)
}
