package common

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config carries everything read from the environment at startup. A .env
// file is loaded by main before this runs, so local development works the
// same way as a deployed instance.
type Config struct {
	Port   string
	DBFile string

	JWTSecret     string
	JWTExpiration time.Duration

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

const defaultJWTExpirationMs = 3600000 // 1 hour

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:        os.Getenv("PORT"),
		DBFile:      os.Getenv("sqlite_db"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Region:    os.Getenv("S3_REGION"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3PublicURL: os.Getenv("S3_PUBLIC_URL"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable not set")
	}

	// token lifetime is configured in milliseconds
	ms := defaultJWTExpirationMs
	if raw := os.Getenv("JWT_EXPIRATION_MS"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return nil, errors.New("JWT_EXPIRATION_MS must be a positive integer")
		}
		ms = parsed
	}
	cfg.JWTExpiration = time.Duration(ms) * time.Millisecond

	return cfg, nil
}
