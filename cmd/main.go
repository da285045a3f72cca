package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"describly/api/handler"
	apiMiddleware "describly/api/middleware"
	"describly/api/routes"
	"describly/config"
	"describly/internal/dto"
	"describly/internal/metrics"
	"describly/internal/repository"
	"describly/internal/service"
	"describly/internal/utils"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	db, err := config.ConnectionDb(cfg)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	if err := repository.AutoMigrate(db); err != nil {
		logger.WithError(err).Fatal("migrate database")
	}
	logger.Info("database ready")

	appMetrics := metrics.New("describly")

	var mailer service.EmailSender = service.LogEmailSender{Logger: logger}
	if cfg.ResendAPIKey != "" {
		mailer = service.NewResendEmailSender(cfg.ResendAPIKey, cfg.MailFrom)
	}
	emailQueue := service.NewEmailQueue(mailer, logger, cfg.EmailWorkers, 0)
	emailQueue.Metrics = appMetrics

	tokenManager := &utils.JWTManager{
		AccessSecret:    []byte(cfg.JWTSecret),
		RefreshSecret:   []byte(cfg.SecretKey),
		Algorithm:       cfg.JWTAlgorithm,
		AccessTokenTTL:  cfg.AccessTokenTTL(),
		RefreshTokenTTL: cfg.RefreshTokenTTL(),
	}
	mfaIssuer := service.MFATokenIssuerJWT{
		Secret:    []byte(cfg.JWTSecret),
		Algorithm: cfg.JWTAlgorithm,
		TTL:       5 * time.Minute,
	}

	authService := service.NewAuthService(service.AuthDependencies{
		Users:        repository.NewUserRepository(db),
		Tokens:       repository.NewUserTokenRepository(db),
		Codes:        repository.NewVerificationCodeRepository(db),
		MFASecrets:   repository.NewMFASecretRepository(db),
		SecurityLogs: repository.NewSecurityLogRepository(db),
		Transactor:   repository.NewTransactor(db),
		EmailSender:  emailQueue,
		PasswordHash: service.Argon2PasswordHasher{},
		TokenIssuer:  service.JWTTokenIssuer{Manager: tokenManager},
		MFATokens:    mfaIssuer,
		MFAProvider:  service.NewTOTPProvider(cfg.MFAIssuer),
		Metrics:      appMetrics,
		Logger:       logger,
		Clock:        service.RealClock{},
		CodePepper:   cfg.SecretKey,
		Config: service.AuthConfig{
			AppName:              cfg.AppName,
			FrontendHost:         cfg.FrontendHost,
			VerificationCodeTTL:  cfg.VerificationCodeTTL,
			PasswordResetCodeTTL: cfg.PasswordResetCodeTTL,
			MFAIssuer:            cfg.MFAIssuer,
		},
	})

	authHandler := handler.NewAuthHandler(authService, dto.NewValidator(), logger)
	authHandler.CookieDomain = cfg.CookieDomain
	authHandler.SecureCookies = cfg.CookieSecure

	var oauthProvider service.OAuthExchanger
	google := service.NewGoogleOAuthProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL())
	if google.Configured() {
		oauthProvider = google
	} else {
		logger.Warn("google oauth disabled: GOOGLE_CLIENT_ID not set")
	}
	oauthHandler := handler.NewOAuthHandler(authService, oauthProvider, cfg.SecretKey, cfg.FrontendHost, logger)
	oauthHandler.CookieDomain = cfg.CookieDomain
	oauthHandler.SecureCookies = cfg.CookieSecure

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.RequestID())
	app.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
		AllowCredentials: true,
	}))
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogLatency:   true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status":     v.Status,
				"method":     v.Method,
				"uri":        v.URI,
				"ip":         v.RemoteIP,
				"request_id": v.RequestID,
				"latency_ms": v.Latency.Milliseconds(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	authMiddleware := apiMiddleware.AuthMiddleware{Auth: authService}
	router := routes.NewRouter(app, authHandler, oauthHandler, authMiddleware)
	router.Metrics = appMetrics.Handler()

	redisClient, err := config.ConnectRedis(context.Background(), cfg)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, using in-process rate limits")
	}
	if redisClient != nil {
		defer redisClient.Close()
		authRate := apiMiddleware.NewRedisRateLimiter(redisClient, "auth", 50, 5*time.Minute)
		authRate.Metrics, authRate.Logger = appMetrics, logger
		loginRate := apiMiddleware.NewRedisRateLimiter(redisClient, "login", 20, 10*time.Minute)
		loginRate.Metrics, loginRate.Logger = appMetrics, logger
		router.AuthRate, router.LoginRate = authRate, loginRate
	} else {
		for _, limiter := range []routes.Limiter{router.AuthRate, router.LoginRate} {
			if local, ok := limiter.(*apiMiddleware.RateLimiter); ok {
				local.Metrics = appMetrics
			}
		}
	}
	router.RegisterRoutes()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("server started")
		if err := app.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http shutdown")
	}
	if err := emailQueue.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("email queue drain")
	}
	logger.Info("server stopped")
}
