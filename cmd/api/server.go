package main

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"sessionauth/internal/config"
	"sessionauth/internal/middleware"
	"sessionauth/internal/modules/admin"
	"sessionauth/internal/modules/auth"
	"sessionauth/internal/modules/avatar"
	"sessionauth/internal/modules/user"
	"sessionauth/internal/pkg/jwt"
	"sessionauth/internal/pkg/metrics"
	"sessionauth/internal/pkg/password"
	"sessionauth/internal/pkg/response"
	"sessionauth/internal/pkg/upload"
	"sessionauth/internal/pkg/worker"
	"sessionauth/internal/repository"
)

// server holds the router plus the background parts main has to start and stop.
type server struct {
	router     *gin.Engine
	metrics    *metrics.Metrics
	pool       *worker.Pool
	cleanup    *auth.CleanupService
	cleanupCfg auth.CleanupConfig
}

func newServer(cfg *config.AuthRuntimeConfig, db *gorm.DB, log *slog.Logger) (*server, error) {
	codec, err := jwt.NewCodec(cfg.AccessTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenSecret, cfg.RefreshTokenTTL, nil)
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewHasher(cfg.PasswordHashCost)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	pool := worker.New(worker.Options{
		Workers: cfg.AvatarWorkers,
		Logger:  log,
		OnFailure: func(worker.Failure) {
			m.AvatarFailures.Inc()
		},
	})
	storage := upload.NewLocal(cfg.UploadsDir, cfg.UploadsURLBase)
	uploader, err := newUploader(cfg, storage)
	if err != nil {
		return nil, err
	}
	avatars := avatar.NewProcessor(pool, uploader, userRepo, log)

	responder := response.Responder{Log: log, ExposeInternal: cfg.IsDevelopment()}
	cleanupCfg := auth.CleanupConfig{Retention: cfg.SessionRetention, Interval: cfg.SessionSweepInterval}

	authService := auth.NewService(userRepo, sessionRepo, codec, hasher, avatars, m, log, nil)
	authHandler := auth.NewHandler(authService, storage, auth.CookieConfig{
		Secure:     cfg.CookieSecure,
		SameSite:   cfg.SameSiteMode(),
		Path:       cfg.CookiePath,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, responder)
	cleanupService := auth.NewCleanupService(sessionRepo, m, log, nil)
	internalHandler := auth.NewInternalHandler(cleanupService, cleanupCfg, responder)

	userService := user.NewService(userRepo, sessionRepo, hasher, avatars, m, log, nil)
	userHandler := user.NewHandler(userService, storage, responder)

	adminService := admin.NewService(userRepo, sessionRepo, m, log, nil)
	adminHandler := admin.NewHandler(adminService, responder)

	r := gin.New()
	r.MaxMultipartMemory = upload.MaxAvatarSize
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.ErrorLogger(log, cfg.IsDevelopment()))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))
	if cfg.UploadsBackend != "minio" {
		r.Static(cfg.UploadsURLBase+"/avatars", filepath.Join(cfg.UploadsDir, "avatars"))
	}

	jwtAuth := middleware.JWTAuth(codec, userRepo)

	v1 := r.Group("/api/v1")
	{
		// public
		authHandler.RegisterRoutes(v1)

		protected := v1.Group("")
		protected.Use(jwtAuth)
		{
			userHandler.RegisterRoutes(protected)
		}

		adminGroup := v1.Group("/admin")
		adminGroup.Use(jwtAuth, middleware.AdminOnly())
		{
			adminHandler.RegisterRoutes(adminGroup)
		}
	}

	internal := r.Group("/internal")
	internal.Use(middleware.InternalTokenAuth(cfg.InternalAPIToken, cfg.InternalAllowedIPs, log))
	internalHandler.RegisterRoutes(internal)

	return &server{
		router:     r,
		metrics:    m,
		pool:       pool,
		cleanup:    cleanupService,
		cleanupCfg: cleanupCfg,
	}, nil
}

// newUploader picks the avatar backend. Staging always happens on local disk.
func newUploader(cfg *config.AuthRuntimeConfig, local *upload.Local) (upload.Uploader, error) {
	if cfg.UploadsBackend != "minio" {
		return local, nil
	}

	store, err := upload.NewMinIO(upload.MinIOConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		Region:    cfg.MinIO.Region,
		UseSSL:    cfg.MinIO.UseSSL,
		PublicURL: cfg.MinIO.PublicURL,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
