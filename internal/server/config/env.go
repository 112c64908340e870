package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from the environment, loading a local
// .env file first when present. Unset variables leave defaults untouched.
func parseEnv(config *Config) {
	// missing .env is the normal case outside local development
	_ = godotenv.Load()

	if v := os.Getenv("SNAPVAULT_ADDR"); v != "" {
		config.EndpointAddr = v
	}
	if v := os.Getenv("SNAPVAULT_DATABASE_DSN"); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv("SNAPVAULT_SECRET_KEY"); v != "" {
		config.SecretKey = v
	}
	if v := os.Getenv("SNAPVAULT_ACCESS_TOKEN_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			config.AccessTokenValidityDuration = time.Duration(minutes) * time.Minute
		}
	}
	if v := os.Getenv("SNAPVAULT_REFRESH_TOKEN_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			config.RefreshTokenValidityDuration = time.Duration(minutes) * time.Minute
		}
	}
	if v := os.Getenv("SNAPVAULT_S3_ACCESS_KEY"); v != "" {
		config.S3AccessKey = v
	}
	if v := os.Getenv("SNAPVAULT_S3_SECRET_KEY"); v != "" {
		config.S3SecretKey = v
	}
	if v := os.Getenv("SNAPVAULT_S3_BUCKET"); v != "" {
		config.S3Bucket = v
	}
	if v := os.Getenv("SNAPVAULT_S3_REGION"); v != "" {
		config.S3Region = v
	}
	if v := os.Getenv("SNAPVAULT_S3_ENDPOINT"); v != "" {
		config.S3BaseEndpoint = v
	}
}
