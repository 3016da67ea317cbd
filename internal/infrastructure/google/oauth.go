package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	oauthapi "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/fastygo/todo/domain"
	"github.com/fastygo/todo/internal/config"
)

// Scopes requested on sign-in and on link. The calendar scope is what makes the
// returned access token usable by CalendarClient.
var Scopes = []string{
	oauthapi.OpenIDScope,
	oauthapi.UserinfoEmailScope,
	oauthapi.UserinfoProfileScope,
	calendar.CalendarEventsScope,
}

// OAuth runs the authorization-code flow against Google.
type OAuth struct {
	config           *oauth2.Config
	userinfoEndpoint string
	httpClient       *http.Client
}

// OAuthOption customizes an OAuth client.
type OAuthOption func(*OAuth)

// WithOAuthEndpoint overrides Google's auth/token URLs.
func WithOAuthEndpoint(endpoint oauth2.Endpoint) OAuthOption {
	return func(o *OAuth) { o.config.Endpoint = endpoint }
}

// WithUserinfoEndpoint overrides the base URL of the userinfo API.
func WithUserinfoEndpoint(endpoint string) OAuthOption {
	return func(o *OAuth) { o.userinfoEndpoint = endpoint }
}

// WithOAuthHTTPClient sets the client used for the token exchange and userinfo.
func WithOAuthHTTPClient(client *http.Client) OAuthOption {
	return func(o *OAuth) { o.httpClient = client }
}

func NewOAuth(cfg config.GoogleConfig, opts ...OAuthOption) *OAuth {
	o := &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     googleoauth.Endpoint,
			Scopes:       Scopes,
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AuthCodeURL returns the consent page URL carrying state.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades an authorization code for a token and resolves the account.
func (o *OAuth) Exchange(ctx context.Context, code string) (*domain.FederatedIdentity, error) {
	if code == "" {
		return nil, errors.New("google: empty authorization code")
	}
	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}

	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google: exchange code: %w", err)
	}

	opts := []option.ClientOption{option.WithHTTPClient(o.config.Client(ctx, token))}
	if o.userinfoEndpoint != "" {
		opts = append(opts, option.WithEndpoint(o.userinfoEndpoint))
	}
	svc, err := oauthapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: userinfo service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google: userinfo: %w", err)
	}
	if info.Id == "" {
		return nil, errors.New("google: userinfo without subject")
	}

	return &domain.FederatedIdentity{
		Provider:    domain.ProviderGoogle,
		Subject:     info.Id,
		Email:       domain.NormalizeEmail(info.Email),
		DisplayName: info.Name,
		AccessToken: token.AccessToken,
		Expiry:      token.Expiry,
	}, nil
}
