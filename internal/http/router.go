package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jsensharma/carhub/internal/auth"
	"github.com/jsensharma/carhub/internal/cache"
	"github.com/jsensharma/carhub/internal/config"
	"github.com/jsensharma/carhub/internal/domain/user"
	"github.com/jsensharma/carhub/internal/http/handlers"
	"github.com/jsensharma/carhub/internal/http/middlewares"
	"github.com/jsensharma/carhub/internal/mail"
	"github.com/jsensharma/carhub/internal/oauth"
	"github.com/jsensharma/carhub/internal/observability"
	"github.com/jsensharma/carhub/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxRequestBody = 1 << 20 // 1 MiB

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(maxRequestBody))

	if cfg.OTLPEndpoint != "" {
		r.Use(otelgin.Middleware("carhub"))
	}

	registry := prometheus.NewRegistry()
	prom := observability.NewProm(registry)
	r.Use(prom.GinHandleMiddleware())
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// health
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool)
	carsRepo := postgres.NewCarsRepo(pool)
	reviewsRepo := postgres.NewReviewsRepo(pool)

	// collaborators
	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())

	var mailer mail.Mailer
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.MailFrom,
		})
	} else {
		log.Warn("SMTP_HOST not set, password-reset mail goes to the log")
		mailer = mail.NewLogMailer()
	}
	mailer = mail.NewProtectedMailer(mailer, mail.ProtectedMailerConfig{})

	google := oauth.NewGoogleVerifier(cfg.GoogleClientID)

	var catalogCache *cache.Client
	if cfg.RedisAddr != "" {
		catalogCache = cache.New(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	// wire up handlers
	authHandler := handlers.NewAuthHandler(usersRepo, jwtManager, mailer, google, prom)
	carsHandler := handlers.NewCarsHandler(carsRepo, catalogCache, log)
	reviewsHandler := handlers.NewReviewsHandler(reviewsRepo)

	authMw := middlewares.NewAuthMiddleware(jwtManager, usersRepo)

	// public catalog
	api := r.Group("/api")
	api.GET("/cars", carsHandler.ListCars)
	api.GET("/cars/:id", carsHandler.GetCarByID)
	api.GET("/featured-cars", carsHandler.ListFeaturedCars)
	api.GET("/reviews", reviewsHandler.ListReviews)
	api.POST("/reviews", authMw.RequireAuth(), reviewsHandler.CreateReview)

	// local credential auth
	authGroup := r.Group("/auth")
	authGroup.POST("/signup", authHandler.SignUp)
	authGroup.POST("/login", authHandler.Login)

	// admin auth + car management
	admin := r.Group("/admin")
	admin.POST("/signup", authHandler.AdminSignUp)
	admin.POST("/login", authHandler.AdminLogin)

	adminCars := admin.Group("/cars", authMw.RequireAuth(), authMw.RequireRole(user.RoleAdmin))
	adminCars.GET("", carsHandler.ListCars)
	adminCars.POST("", carsHandler.CreateCar)
	adminCars.PUT("/:id", carsHandler.UpdateCar)
	adminCars.DELETE("/:id", carsHandler.DeleteCar)

	// user-facing account routes
	userGroup := r.Group("/user")
	userGroup.GET("/profile", authMw.RequireAuth(), authHandler.GetProfile)
	userGroup.PUT("/profile", authMw.RequireAuth(), authHandler.UpdateProfile)
	userGroup.POST("/forgot-password", authHandler.ForgotPassword)
	userGroup.POST("/verify-otp", authHandler.VerifyOTPAndReset)
	userGroup.POST("/google-login", authHandler.GoogleLogin)
	userGroup.POST("/google-signup", authHandler.GoogleLogin)
	userGroup.POST("/logout", authHandler.Logout)

	return r
}
