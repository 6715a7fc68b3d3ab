package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config captures the runtime configuration for the SnapFeed backend
// service.
type Config struct {
	AppPort       int
	DatabaseURL   string
	MigrationDir  string
	SeedDir       string
	LogLevel      string
	Collections   Collections
	ObjectStore   ObjectStoreConfig
	AvatarBaseURL string
}

// Collections holds the per-entity collection names the document store
// serves.
type Collections struct {
	Users   string
	Posts   string
	Saves   string
	Stories string
}

// ObjectStoreConfig targets the S3-compatible bucket holding uploaded files.
type ObjectStoreConfig struct {
	Bucket         string
	Region         string
	Endpoint       string
	PreviewBaseURL string
}

// Load reads configuration from environment variables. Settings without a
// sensible default are required: a missing one fails here, at startup,
// rather than surfacing as a not-found error deep inside an operation.
func Load() (Config, error) {
	cfg := Config{
		AppPort:      getInt("SNAPFEED_PORT", 8080),
		DatabaseURL:  os.Getenv("SNAPFEED_DATABASE_URL"),
		MigrationDir: getString("SNAPFEED_MIGRATIONS", "migrations"),
		SeedDir:      getString("SNAPFEED_SEEDS", "seeds"),
		LogLevel:     getString("SNAPFEED_LOG_LEVEL", "info"),
		Collections: Collections{
			Users:   getString("SNAPFEED_USERS_COLLECTION", "users"),
			Posts:   getString("SNAPFEED_POSTS_COLLECTION", "posts"),
			Saves:   getString("SNAPFEED_SAVES_COLLECTION", "saves"),
			Stories: getString("SNAPFEED_STORIES_COLLECTION", "stories"),
		},
		ObjectStore: ObjectStoreConfig{
			Bucket:         os.Getenv("SNAPFEED_STORAGE_BUCKET"),
			Region:         getString("SNAPFEED_STORAGE_REGION", "us-east-1"),
			Endpoint:       os.Getenv("SNAPFEED_STORAGE_ENDPOINT"),
			PreviewBaseURL: os.Getenv("SNAPFEED_PREVIEW_BASE_URL"),
		},
		AvatarBaseURL: getString("SNAPFEED_AVATAR_BASE_URL", "https://ui-avatars.com/api"),
	}

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "SNAPFEED_DATABASE_URL")
	}
	if cfg.ObjectStore.Bucket == "" {
		missing = append(missing, "SNAPFEED_STORAGE_BUCKET")
	}
	if cfg.ObjectStore.PreviewBaseURL == "" {
		missing = append(missing, "SNAPFEED_PREVIEW_BASE_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}
