package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"describly/internal/service"
	"describly/internal/utils"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	oauthStateCookieName = "oauth_state"
	oauthStateTTL        = 10 * time.Minute
	oauthStateBytes      = 32
)

// OAuthHandler drives the browser side of the Google sign-in flow. The
// state is kept in a signed cookie so no server session is needed.
type OAuthHandler struct {
	Service       *service.AuthService
	Provider      service.OAuthExchanger
	StateSecret   string
	FrontendHost  string
	CookieDomain  string
	SecureCookies bool
	Logger        logrus.FieldLogger
}

func NewOAuthHandler(svc *service.AuthService, provider service.OAuthExchanger, stateSecret string, frontendHost string, logger logrus.FieldLogger) *OAuthHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &OAuthHandler{
		Service:       svc,
		Provider:      provider,
		StateSecret:   stateSecret,
		FrontendHost:  frontendHost,
		SecureCookies: true,
		Logger:        logger,
	}
}

func (h *OAuthHandler) GoogleLogin(c echo.Context) error {
	if h.Provider == nil {
		return writeError(c, http.StatusServiceUnavailable, service.ErrOAuthNotConfigured)
	}
	state, err := utils.UniqueString(oauthStateBytes)
	if err != nil {
		h.Logger.WithError(err).Error("generate oauth state")
		return writeError(c, http.StatusInternalServerError, errors.New("internal server error"))
	}
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookieName,
		Value:    utils.SignState(state, h.StateSecret),
		Path:     "/auth/google",
		Domain:   h.CookieDomain,
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, h.Provider.AuthCodeURL(state))
}

func (h *OAuthHandler) GoogleCallback(c echo.Context) error {
	if h.Provider == nil {
		return writeError(c, http.StatusServiceUnavailable, service.ErrOAuthNotConfigured)
	}
	if providerErr := c.QueryParam("error"); providerErr != "" {
		return writeError(c, http.StatusBadRequest, errors.New("oauth error: "+providerErr))
	}

	cookie, err := c.Cookie(oauthStateCookieName)
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("missing oauth state"))
	}
	h.clearStateCookie(c)
	state, ok := utils.VerifySignedState(cookie.Value, h.StateSecret)
	if !ok || state != c.QueryParam("state") {
		return writeError(c, http.StatusBadRequest, errors.New("invalid oauth state"))
	}
	code := strings.TrimSpace(c.QueryParam("code"))
	if code == "" {
		return writeError(c, http.StatusBadRequest, errors.New("no authorization code found in request"))
	}

	identity, err := h.Provider.Exchange(c.Request().Context(), code)
	if err != nil {
		h.Logger.WithError(err).Warn("google oauth exchange failed")
		return writeError(c, statusForError(err), errors.New("failed to get user information from Google"))
	}
	pair, err := h.Service.ProcessOAuthLogin(c.Request().Context(), identity, stringPtr(c.RealIP()))
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.Logger.WithError(err).Error("oauth login failed")
			return writeError(c, status, errors.New("internal server error"))
		}
		return writeError(c, status, err)
	}

	target := strings.TrimRight(h.FrontendHost, "/") + "/oauth-callback?token=" + url.QueryEscape(pair.AccessToken)
	return c.Redirect(http.StatusFound, target)
}

func (h *OAuthHandler) clearStateCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/auth/google",
		Domain:   h.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
