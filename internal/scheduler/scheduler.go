package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/starpromo/promobot/internal/backup"
	"github.com/starpromo/promobot/internal/database"
	"github.com/starpromo/promobot/internal/models"
)

// BroadcastSender delivers one listing message to one target chat.
type BroadcastSender interface {
	SendListing(ctx context.Context, targetID int64, message string) error
}

// Scheduler runs the three periodic tasks: the hourly expiry sweep, the
// daily listing broadcast and the auto-backup. Each task has its own
// goroutine and ticker so a slow run of one never delays the others,
// and each run is bounded by a deadline. Runs share no state; every
// tick re-reads the Ledger.
type Scheduler struct {
	repo    *database.Repository
	sender  BroadcastSender
	sync    *backup.Sync // nil when no remote store is configured
	targets []int64

	sweepInterval     time.Duration
	broadcastInterval time.Duration
	backupInterval    time.Duration
	runDeadline       time.Duration
}

func New(repo *database.Repository, sender BroadcastSender, sync *backup.Sync, targets []int64,
	sweepInterval, broadcastInterval, backupInterval, runDeadline time.Duration) *Scheduler {
	return &Scheduler{
		repo:              repo,
		sender:            sender,
		sync:              sync,
		targets:           targets,
		sweepInterval:     sweepInterval,
		broadcastInterval: broadcastInterval,
		backupInterval:    backupInterval,
		runDeadline:       runDeadline,
	}
}

// Start launches the periodic tasks. They stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx, "expiry_sweep", s.sweepInterval, s.runExpirySweep)
	go s.loop(ctx, "broadcast", s.broadcastInterval, s.runBroadcast)
	if s.sync != nil {
		go s.loop(ctx, "auto_backup", s.backupInterval, s.runAutoBackup)
	} else {
		logrus.Info("Remote backup not configured, auto-backup task disabled")
	}
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, task func(context.Context) error) {
	logrus.WithFields(logrus.Fields{"task": name, "interval": interval}).Info("Periodic task started")

	run := func() {
		runCtx, cancel := context.WithTimeout(ctx, s.runDeadline)
		defer cancel()
		if err := task(runCtx); err != nil {
			logrus.WithField("task", name).WithError(err).Error("Periodic task run failed")
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// runExpirySweep marks every active-but-past-end promotion expired.
// Safe to run twice back to back: already-expired rows are excluded
// from the query.
func (s *Scheduler) runExpirySweep(ctx context.Context) error {
	expired, err := s.repo.GetExpiredChannels(time.Now())
	if err != nil {
		return err
	}

	for _, channel := range expired {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.repo.MarkChannelExpired(channel.ChannelID); err != nil {
			logrus.WithField("channel", channel.ChannelID).WithError(err).Error("Failed to mark promotion expired")
			continue
		}
		logrus.WithFields(logrus.Fields{
			"channel": channel.ChannelID,
			"title":   channel.ChannelTitle,
		}).Info("Promotion expired")
	}
	return nil
}

// runBroadcast sends the active listing to every configured target.
// Delivery is best-effort per target; one failure never aborts the
// remaining sends.
func (s *Scheduler) runBroadcast(ctx context.Context) error {
	active, err := s.repo.GetActiveChannels(time.Now())
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return nil
	}

	message := RenderListing(active)
	for _, target := range s.targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.sender.SendListing(ctx, target, message); err != nil {
			logrus.WithField("target", target).WithError(err).Error("Failed to deliver listing")
		}
	}
	return nil
}

func (s *Scheduler) runAutoBackup(ctx context.Context) error {
	return s.sync.Backup(ctx)
}

// RenderListing builds the broadcast message from the active set, in
// the Ledger's read order.
func RenderListing(channels []models.PromotedChannel) string {
	var b strings.Builder
	b.WriteString("📢 *Promoted Channels:*\n\n")

	for _, channel := range channels {
		if channel.ChannelUsername != "" {
			fmt.Fprintf(&b, "• [%s](https://t.me/%s)\n", channel.ChannelTitle, channel.ChannelUsername)
		} else {
			fmt.Fprintf(&b, "• %s\n", channel.ChannelTitle)
		}
	}

	b.WriteString("\nUse /promote to add your channel!")
	return b.String()
}
