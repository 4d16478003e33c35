package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/starpromo/promobot/internal/backup"
	"github.com/starpromo/promobot/internal/bot"
	"github.com/starpromo/promobot/internal/config"
	"github.com/starpromo/promobot/internal/database"
	"github.com/starpromo/promobot/internal/scheduler"
)

const version = "v0.1.0"

func main() {
	config.Load()

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	logrus.Infof("Starting promobot, version: %s", version)

	if config.TelegramToken == "" {
		logrus.Fatal("TELEGRAM_BOT_TOKEN environment variable is required")
	}

	err := database.Init(config.DatabaseType, config.GetDatabaseConnectionString())
	if err != nil {
		logrus.Fatalf("Error initializing database: %v", err)
	}
	defer database.Close()

	repo := database.NewRepository()

	var sync *backup.Sync
	if config.BackupConfigured() {
		store := backup.NewGitHubStore(config.GitHubToken, config.GitHubRepoOwner, config.GitHubRepoName)
		sync = backup.NewSync(repo, store)

		// Cold-start recovery: pull the newest snapshot if one exists.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		restored, err := sync.Restore(ctx)
		cancel()
		switch {
		case err != nil:
			logrus.WithError(err).Error("Startup restore failed, continuing with local state")
		case restored:
			logrus.Info("State restored from latest remote backup")
		default:
			logrus.Info("No existing backup found, starting fresh")
		}
	} else {
		logrus.Warn("Remote backup not configured")
	}

	// Seed the admin set. Seeding after restore keeps the configured
	// allow-list authoritative over whatever the snapshot held.
	for _, adminID := range config.AdminUserIDs {
		if err := repo.UpsertAdmin(adminID, "default_admin"); err != nil {
			logrus.WithField("user", adminID).WithError(err).Error("Failed to seed admin")
		}
	}

	promoBot, err := bot.New(repo, sync)
	if err != nil {
		logrus.Fatalf("Error creating bot: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(
		repo, promoBot, sync, config.BroadcastTargets,
		time.Duration(config.ExpirySweepSeconds)*time.Second,
		time.Duration(config.BroadcastSeconds)*time.Second,
		time.Duration(config.AutoBackupSeconds)*time.Second,
		time.Duration(config.TaskDeadlineSeconds)*time.Second,
	)
	sched.Start(ctx)

	promoBot.Start()

	// Wait for a SIGINT or SIGTERM signal
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc

	cancel()
	promoBot.Stop()
}
