package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/helloquitx/hqx-api/internal/config"
	"github.com/helloquitx/hqx-api/internal/handler"
	"github.com/helloquitx/hqx-api/internal/metrics"
	"github.com/helloquitx/hqx-api/internal/middleware"
	"github.com/helloquitx/hqx-api/internal/provider"
	pgRepo "github.com/helloquitx/hqx-api/internal/repository/postgres"
	redisRepo "github.com/helloquitx/hqx-api/internal/repository/redis"
	"github.com/helloquitx/hqx-api/internal/service"
	ws "github.com/helloquitx/hqx-api/internal/websocket"
	"github.com/helloquitx/hqx-api/pkg/auth"
	"github.com/helloquitx/hqx-api/pkg/crypto"
	"github.com/helloquitx/hqx-api/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Repositories
	userRepo := pgRepo.NewUserRepo(db)
	accountRepo := pgRepo.NewAccountRepo(db)
	sessionRepo := pgRepo.NewSessionRepo(db)
	invalidTokenRepo := pgRepo.NewInvalidTokenRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Root context for background goroutines.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jwtService, err := auth.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.SessionMaxAgeDays,
		invalidTokenRepo,
		cfg.JWT.CleanupInterval,
		ctx,
	)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	tokenBox, err := crypto.NewTokenBox(cfg.Auth.TokenEncryptionKey)
	if err != nil {
		log.Printf("Failed to initialize token encryption: %v", err)
		os.Exit(1)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(registry)

	// WebSocket hub
	wsHub := ws.NewHub()
	go wsHub.Run()

	isProduction := gin.Mode() == gin.ReleaseMode
	sessionMaxAgeSeconds := int(jwtService.SessionMaxAge() / time.Second)
	cookieManager := auth.NewCookieManager(sessionMaxAgeSeconds, isProduction)

	// Services
	blueskyClient := provider.NewBlueskyClient(cfg.Bluesky.ServiceURL, cfg.Bluesky.RequestsPerSecond)
	identityService := service.NewIdentityService(userRepo, accountRepo, tokenBox)
	sessionService := service.NewSessionService(userRepo)
	authService := service.NewAuthService(
		blueskyClient,
		identityService,
		sessionService,
		jwtService,
		sessionRepo,
		wsHub,
		collector,
	)

	var emailService service.EmailService = &service.NoopEmailService{}
	if cfg.Email.Enabled {
		resendService, errEmail := service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if errEmail != nil {
			log.Printf("Failed to initialize email service, falling back to noop: %v", errEmail)
		} else {
			emailService = resendService
		}
	}

	userService := service.NewUserService(userRepo, emailService)
	statsService := service.NewStatsService(userRepo, cacheRepo)

	// Expired session rows accumulate without a sweep.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deleted, errSweep := sessionRepo.DeleteExpired(ctx, time.Now())
				if errSweep != nil {
					log.Printf("Failed to sweep expired sessions: %v", errSweep)
				} else if deleted > 0 {
					log.Printf("Swept %d expired sessions", deleted)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Handlers and middleware
	authHandler := handler.NewAuthHandler(authService, sessionService, cookieManager, cfg.Auth.BaseURL)
	userHandler := handler.NewUserHandler(userService, sessionService)
	statsHandler := handler.NewStatsHandler(statsService)
	wsHandler := handler.NewWSHandler(wsHub, cfg.Auth.AllowedOrigins)

	authMiddleware := middleware.NewAuthMiddleware(jwtService, cookieManager)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Printf("[Recovery] Panic recovered: %v", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "An unexpected error occurred",
		})
	}))

	// Trusted proxies: in production trust none, IP spoofing protection.
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Auth.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-CSRF-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.Use(rateLimiter.LimitByIP(middleware.DefaultAuthRateLimitConfig()))
		{
			// Sign-in endpoints accept an optional existing session: a
			// signed-in user linking another provider keeps their account.
			signIn := authGroup.Group("/")
			signIn.Use(rateLimiter.Limit(middleware.StrictAuthRateLimitConfig()))
			signIn.Use(authMiddleware.OptionalAuth())
			{
				signIn.POST("/bluesky", authHandler.SignInWithBluesky)
				signIn.POST("/callback/:provider", authHandler.ProviderCallback)
			}

			authed := authGroup.Group("/")
			authed.Use(authMiddleware.RequireAuth())
			{
				authed.GET("/session", authHandler.GetSession)
				authed.GET("/csrf", authHandler.GetCSRF)
				authed.DELETE("/bluesky", authMiddleware.RequireCSRF(), authHandler.Logout)
			}
		}

		users := api.Group("/users")
		users.Use(authMiddleware.RequireAuth())
		{
			users.GET("/me", userHandler.GetMe)
			users.PUT("/me/preferences", authMiddleware.RequireCSRF(), userHandler.UpdatePreferences)
		}

		api.GET("/stats/total", authMiddleware.RequireAuth(), statsHandler.GetTotal)
		api.GET("/ws", authMiddleware.RequireAuth(), wsHandler.Connect)
	}

	router.GET("/metrics", gin.WrapH(metrics.Handler(registry)))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
