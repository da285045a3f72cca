package middleware

import (
	"github.com/labstack/echo/v4"
)

const (
	contextUserIDKey  = "auth_user_id"
	contextTokenIDKey = "auth_token_id"
)

func SetAuthContext(c echo.Context, userID uint, tokenID uint) {
	c.Set(contextUserIDKey, userID)
	c.Set(contextTokenIDKey, tokenID)
}

func UserIDFromContext(c echo.Context) (uint, bool) {
	userID, ok := c.Get(contextUserIDKey).(uint)
	return userID, ok
}

// TokenIDFromContext returns the UserToken row behind the current access
// token.
func TokenIDFromContext(c echo.Context) (uint, bool) {
	tokenID, ok := c.Get(contextTokenIDKey).(uint)
	return tokenID, ok
}
