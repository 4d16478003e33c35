package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/starpromo/promobot/internal/database"
	"github.com/starpromo/promobot/internal/models"
)

const (
	backupPrefix = "backup_"
	backupSuffix = ".json"

	// Sortable: lexicographic filename order equals chronological order.
	nameTimeLayout = "20060102_150405"

	asyncBackupTimeout = 2 * time.Minute
)

// Store is the remote object store snapshots are pushed to. Append-only
// from this system's perspective.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, name string) ([]byte, error)
}

// Sync serializes the whole Ledger to the remote store and back.
type Sync struct {
	repo  *database.Repository
	store Store
}

func NewSync(repo *database.Repository, store Store) *Sync {
	return &Sync{repo: repo, store: store}
}

// Backup exports the full state and uploads it as a new timestamped
// object.
func (s *Sync) Backup(ctx context.Context) error {
	snapshot, err := s.repo.Export()
	if err != nil {
		return fmt.Errorf("exporting state: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	name := backupPrefix + snapshot.ExportedAt.UTC().Format(nameTimeLayout) + backupSuffix
	if err := s.store.Put(ctx, name, data); err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}

	logrus.WithField("name", name).Info("Backup uploaded")
	return nil
}

// BackupAsync fires a backup in the background. Used after mutations;
// failure is logged and never reaches the triggering flow.
func (s *Sync) BackupAsync() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncBackupTimeout)
		defer cancel()

		if err := s.Backup(ctx); err != nil {
			logrus.WithError(err).Error("Background backup failed")
		}
	}()
}

// Restore fetches the most recent snapshot and replaces all local state
// with it. Returns false with no error when the store holds no backups,
// which on startup means "start fresh". Import is transactional, so a
// failed restore leaves prior state untouched.
func (s *Sync) Restore(ctx context.Context) (bool, error) {
	names, err := s.store.List(ctx)
	if err != nil {
		return false, fmt.Errorf("listing backups: %w", err)
	}

	name, ok := latestBackupName(names)
	if !ok {
		return false, nil
	}

	data, err := s.store.Get(ctx, name)
	if err != nil {
		return false, fmt.Errorf("downloading %s: %w", name, err)
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return false, fmt.Errorf("decoding %s: %w", name, err)
	}

	if err := s.repo.Import(&snapshot); err != nil {
		return false, fmt.Errorf("importing %s: %w", name, err)
	}

	logrus.WithFields(logrus.Fields{
		"name":     name,
		"channels": len(snapshot.Channels),
	}).Info("State restored from backup")
	return true, nil
}

// latestBackupName picks the lexicographically greatest backup-named
// object, which by the naming scheme is the newest one.
func latestBackupName(names []string) (string, bool) {
	var latest string
	for _, name := range names {
		if !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		if name > latest {
			latest = name
		}
	}
	return latest, latest != ""
}
