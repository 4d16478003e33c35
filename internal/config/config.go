package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// RequiredChannel is a channel users must join before using the bot,
// configured as "id:handle" pairs.
type RequiredChannel struct {
	ID       int64
	Username string
}

var (
	TelegramToken string

	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDBName   string

	AdminUserIDs     []int64
	RequiredChannels []RequiredChannel
	BroadcastTargets []int64

	GitHubToken     string
	GitHubRepoOwner string
	GitHubRepoName  string

	ExpirySweepSeconds  int
	BroadcastSeconds    int
	AutoBackupSeconds   int
	TaskDeadlineSeconds int
)

func Load() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using environment variables")
	}

	TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	DatabaseType = getEnvOrDefault("DATABASE_TYPE", "sqlite")
	DatabasePath = getEnvOrDefault("DATABASE_PATH", "promotion_bot.db")
	PostgresHost = getEnvOrDefault("POSTGRES_HOST", "localhost")
	PostgresPort = getEnvOrDefault("POSTGRES_PORT", "5432")
	PostgresUser = os.Getenv("POSTGRES_USER")
	PostgresPassword = os.Getenv("POSTGRES_PASSWORD")
	PostgresDBName = getEnvOrDefault("POSTGRES_DB", "promotion_bot")

	AdminUserIDs = parseIDList(os.Getenv("ADMIN_USER_IDS"))
	RequiredChannels = parseRequiredChannels(os.Getenv("REQUIRED_CHANNELS"))
	BroadcastTargets = parseIDList(os.Getenv("TARGET_CHANNELS"))

	GitHubToken = os.Getenv("GITHUB_TOKEN")
	GitHubRepoOwner = os.Getenv("GITHUB_REPO_OWNER")
	GitHubRepoName = os.Getenv("GITHUB_REPO_NAME")

	ExpirySweepSeconds = getEnvIntOrDefault("EXPIRY_SWEEP_SECONDS", 3600)
	BroadcastSeconds = getEnvIntOrDefault("BROADCAST_SECONDS", 86400)
	AutoBackupSeconds = getEnvIntOrDefault("AUTO_BACKUP_SECONDS", 21600)
	TaskDeadlineSeconds = getEnvIntOrDefault("TASK_DEADLINE_SECONDS", 300)
}

// BackupConfigured reports whether the remote backup store can be used.
func BackupConfigured() bool {
	return GitHubToken != "" && GitHubRepoOwner != "" && GitHubRepoName != ""
}

func GetDatabaseConnectionString() string {
	switch DatabaseType {
	case "postgres":
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			PostgresHost, PostgresPort, PostgresUser, PostgresPassword, PostgresDBName)
	default:
		return DatabasePath
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// parseIDList parses a comma-separated list of numeric identifiers,
// skipping anything that does not parse.
func parseIDList(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("Skipping invalid id %q in list", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// parseRequiredChannels parses "id:handle,id:handle" pairs. Handles may
// be given with or without a leading @.
func parseRequiredChannels(raw string) []RequiredChannel {
	var channels []RequiredChannel
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pieces := strings.SplitN(part, ":", 2)
		if len(pieces) != 2 {
			log.Printf("Skipping malformed required channel %q", part)
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(pieces[0]), 10, 64)
		if err != nil {
			log.Printf("Skipping required channel with invalid id %q", part)
			continue
		}
		channels = append(channels, RequiredChannel{
			ID:       id,
			Username: strings.TrimPrefix(strings.TrimSpace(pieces[1]), "@"),
		})
	}
	return channels
}
