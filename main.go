package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"inkpost/auth"
	"inkpost/comments"
	"inkpost/common"
	"inkpost/database"
	"inkpost/logging"
	"inkpost/posts"
	"inkpost/profiles"
	"inkpost/storage"
	"inkpost/topics"
)

func main() {
	// optional .env for local development
	_ = godotenv.Load()

	cfg, err := common.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	db := common.ConnectDb(cfg.DBFile)
	if db == nil {
		log.Fatal("Failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	logger := logging.NewDefault()

	uploads, err := storage.NewS3Store(context.Background(), cfg, logger)
	if err != nil {
		log.Fatal("Failed to configure object storage: ", err)
	}

	tokens := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTExpiration)

	router := gin.Default()

	authModule := auth.NewAuthModule(db, tokens, logger)
	authModule.RegisterRoutes(router)

	gate := authModule.RequireAuth

	postModule := posts.NewPostModule(db, uploads, logger)
	postModule.RegisterRoutes(router, gate)

	commentModule := comments.NewCommentModule(db)
	commentModule.RegisterRoutes(router, gate)

	topicModule := topics.NewTopicModule(db)
	topicModule.RegisterRoutes(router, gate)

	profileModule := profiles.NewProfileModule(db, uploads, logger)
	profileModule.RegisterRoutes(router, gate)

	logger.Info(context.Background(), "starting server", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
