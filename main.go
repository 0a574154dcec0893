package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mohitdev/blogbackend/config"
	"github.com/mohitdev/blogbackend/controllers"
	"github.com/mohitdev/blogbackend/database"
	"github.com/mohitdev/blogbackend/mailer"
	"github.com/mohitdev/blogbackend/middleware"
	"github.com/mohitdev/blogbackend/models"
	"github.com/mohitdev/blogbackend/store"
	"github.com/mohitdev/blogbackend/token"
	"github.com/mohitdev/blogbackend/utils"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if !cfg.Server.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	client, err := database.Connect(ctx, cfg.Mongo)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			log.WithError(err).Error("failed to disconnect from MongoDB")
		}
	}()
	log.Info("connected to MongoDB")

	db := client.Database(cfg.Mongo.Database)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		log.WithError(err).Fatal("failed to create indexes")
	}

	users := store.NewUserStore(db)
	blogs := store.NewBlogStore(db)

	if err := store.SeedAdminUser(ctx, users, cfg.Auth); err != nil {
		log.WithError(err).Fatal("failed to seed admin user")
	}

	tokens := token.NewService(cfg.Auth)
	mail := mailer.New(cfg.Mail, log)
	validator := utils.NewImageValidator(cfg.Uploads)

	var storage utils.Storage
	if cfg.Uploads.GCSBucket != "" {
		gcs, err := utils.NewGCSStorage(ctx, cfg.Uploads)
		if err != nil {
			log.WithError(err).Fatal("failed to create GCS storage")
		}
		storage = gcs
		log.WithField("bucket", cfg.Uploads.GCSBucket).Info("using GCS upload storage")
	} else {
		local, err := utils.NewLocalStorage(cfg.Uploads)
		if err != nil {
			log.WithError(err).Fatal("failed to create local storage")
		}
		storage = local
	}

	auth := controllers.NewAuthController(users, tokens, mail, storage, validator, cfg.Mail.FrontendURL, log)
	blog := controllers.NewBlogController(blogs, storage, validator, log)

	r := newRouter(cfg, log, auth, blog, tokens, users, blogs)

	log.WithField("port", cfg.Server.Port).Info("server starting")
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func newRouter(
	cfg *config.Config,
	log *logrus.Logger,
	auth *controllers.AuthController,
	blog *controllers.BlogController,
	tokens middleware.TokenVerifier,
	users middleware.UserResolver,
	blogs middleware.BlogResolver,
) *gin.Engine {
	r := gin.New()

	allowedOrigins := map[string]bool{}
	for _, origin := range cfg.Server.AllowedOrigins {
		allowedOrigins[origin] = true
	}
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return allowedOrigins[origin]
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(log, cfg.Server.IsDevelopment()))
	r.Use(middleware.ErrorHandler(log))

	if cfg.Uploads.GCSBucket == "" {
		r.Static(cfg.Uploads.BaseURL, cfg.Uploads.Dir)
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to Blog API"})
	})

	authenticate := middleware.Authenticate(tokens, users)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", auth.Register())
		authGroup.POST("/login", auth.Login())
		authGroup.POST("/forgot-password", auth.ForgotPassword())
		authGroup.POST("/reset-password/:token", auth.ResetPasswordWithToken())

		authGroup.GET("/me", authenticate, auth.Me())
		authGroup.PUT("/reset-password", authenticate, auth.ResetPassword())
	}

	blogGroup := r.Group("/blogs")
	{
		blogGroup.GET("", blog.List())
		blogGroup.GET("/:id", blog.Get())

		blogGroup.POST("", authenticate, middleware.RequireRoles(models.RoleUser, models.RoleAdmin), blog.Create())
		blogGroup.PUT("/:id", authenticate, middleware.BlogOwnership(blogs), blog.Update())
		blogGroup.DELETE("/:id", authenticate, middleware.BlogOwnership(blogs), blog.Delete())
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Route not found"})
	})

	return r
}
