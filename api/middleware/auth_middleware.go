package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"describly/internal/entity"
	"describly/internal/service"

	"github.com/labstack/echo/v4"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*entity.User, service.AccessIdentity, error)
}

type AuthMiddleware struct {
	Auth Authenticator
}

func (m AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.Auth == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		token := extractBearerToken(c.Request())
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		_, identity, err := m.Auth.Authenticate(c.Request().Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrDeactivated) {
				return echo.NewHTTPError(http.StatusForbidden, service.ErrDeactivated.Error())
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		SetAuthContext(c, identity.UserID, identity.TokenID)
		return next(c)
	}
}

func extractBearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
