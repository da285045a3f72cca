package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	ProviderGoogle        = "google"
	googleUserInfoURL     = "https://www.googleapis.com/oauth2/v3/userinfo"
	maxUserInfoBodyLength = 1 << 20
)

// OAuthExchanger turns an authorization code into a verified identity.
type OAuthExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (OAuthIdentity, error)
}

type GoogleOAuthProvider struct {
	Config      *oauth2.Config
	UserInfoURL string
	HTTPClient  *http.Client
}

func NewGoogleOAuthProvider(clientID string, clientSecret string, redirectURL string) *GoogleOAuthProvider {
	return &GoogleOAuthProvider{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		UserInfoURL: googleUserInfoURL,
	}
}

func (p *GoogleOAuthProvider) Configured() bool {
	return p != nil && p.Config != nil && p.Config.ClientID != "" && p.Config.ClientSecret != ""
}

func (p *GoogleOAuthProvider) AuthCodeURL(state string) string {
	return p.Config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (p *GoogleOAuthProvider) Exchange(ctx context.Context, code string) (OAuthIdentity, error) {
	if !p.Configured() {
		return OAuthIdentity{}, ErrOAuthNotConfigured
	}
	if p.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.HTTPClient)
	}
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return OAuthIdentity{}, fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}

	info, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return OAuthIdentity{}, err
	}
	if info.Sub == "" || info.Email == "" || !info.EmailVerified {
		return OAuthIdentity{}, fmt.Errorf("%w: unverified google identity", ErrOAuthExchange)
	}

	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = strings.Split(info.Email, "@")[0]
	}
	return OAuthIdentity{
		Provider:       ProviderGoogle,
		OAuthID:        info.Sub,
		Email:          info.Email,
		FullName:       name,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		ProfilePicture: info.Picture,
	}, nil
}

func (p *GoogleOAuthProvider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	response, err := p.Config.Client(ctx, token).Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo status %d", ErrOAuthExchange, response.StatusCode)
	}
	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(response.Body, maxUserInfoBodyLength)).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decode userinfo: %v", ErrOAuthExchange, err)
	}
	return &info, nil
}
