package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"sessionauth/internal/config"
	"sessionauth/internal/database"
	"sessionauth/internal/kv"
	"sessionauth/internal/middleware"
	"sessionauth/internal/modules/auth"
	jwtsvc "sessionauth/internal/pkg/jwt"
	"sessionauth/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := repository.Migrate(db); err != nil {
		log.Fatal("migration failed: ", err)
	}

	var store kv.Store
	if cfg.RedisURL != "" {
		client, err := database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal("redis connection failed: ", err)
		}
		store = kv.NewRedisStore(client)
		log.Println("Connected to Redis token store")
	} else {
		// Config rejects this in prod; single-process dev convenience only.
		log.Println("REDIS_URL is empty, using in-memory token store")
		store = kv.NewMemoryStore()
	}

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(store)

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	authService := auth.NewService(userRepo, tokenRepo, j, cfg.RotateRefreshTokens)
	authHandler := auth.NewHandler(authService)

	r := gin.Default()
	r.Use(middleware.CORS())
	r.Use(middleware.Authenticate(j, tokenRepo))

	v1 := r.Group("/api/v1")
	{
		// public
		authHandler.RegisterPublicRoutes(v1)

		// protected
		protected := v1.Group("/")
		protected.Use(middleware.RequireAuth())
		{
			authHandler.RegisterProtectedRoutes(protected)
		}
	}

	if err := r.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
