package routes

import (
	"net/http"
	"time"

	"describly/api/handler"
	"describly/api/middleware"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// Limiter is satisfied by both the in-process and the Redis limiters.
type Limiter interface {
	Middleware() echo.MiddlewareFunc
}

type Router struct {
	Echo           *echo.Echo
	Auth           *handler.AuthHandler
	OAuth          *handler.OAuthHandler
	AuthMiddleware middleware.AuthMiddleware
	AuthRate       Limiter
	LoginRate      Limiter
	Metrics        http.Handler
}

func NewRouter(e *echo.Echo, authHandler *handler.AuthHandler, oauthHandler *handler.OAuthHandler, authMiddleware middleware.AuthMiddleware) *Router {
	return &Router{
		Echo:           e,
		Auth:           authHandler,
		OAuth:          oauthHandler,
		AuthMiddleware: authMiddleware,
		AuthRate:       middleware.NewRateLimiter("auth", rate.Limit(5), 10, 5*time.Minute),
		LoginRate:      middleware.NewRateLimiter("login", rate.Limit(2), 4, 10*time.Minute),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo
	authRate := r.AuthRate.Middleware()
	loginRate := r.LoginRate.Middleware()

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if r.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(r.Metrics))
	}

	auth := e.Group("/auth")
	auth.POST("/register", r.Auth.Register, authRate)
	auth.POST("/verify", r.Auth.Verify, authRate)
	auth.POST("/verify/resend", r.Auth.ResendVerification, loginRate)
	auth.POST("/login", r.Auth.Login, loginRate)
	auth.POST("/login/mfa", r.Auth.LoginWithMFA, loginRate)
	auth.POST("/refresh", r.Auth.Refresh, authRate)
	auth.POST("/logout", r.Auth.Logout, r.AuthMiddleware.RequireAuth)
	auth.POST("/forgot-password", r.Auth.ForgotPassword, loginRate)
	auth.PUT("/reset-password", r.Auth.ResetPassword, authRate)
	if r.OAuth != nil {
		auth.GET("/google/login", r.OAuth.GoogleLogin, authRate)
		auth.GET("/google/callback", r.OAuth.GoogleCallback, authRate)
	}

	users := e.Group("/users", r.AuthMiddleware.RequireAuth)
	users.GET("/me", r.Auth.Me)
	users.GET("/me/security-logs", r.Auth.SecurityLogs)
	users.POST("/me/mfa/enable", r.Auth.EnableMFA)
	users.POST("/me/mfa/verify", r.Auth.VerifyMFA)
	users.POST("/me/mfa/disable", r.Auth.DisableMFA)
	users.GET("/:id", r.Auth.GetUser)
}
