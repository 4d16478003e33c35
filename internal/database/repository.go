package database

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/starpromo/promobot/internal/models"
)

// Repository is the data-access layer for promotion records, admins,
// payments and the membership-check cache. It holds no business rules;
// callers decide what a failed write means for the user.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository instance
func NewRepository() *Repository {
	return &Repository{db: DB}
}

// NewRepositoryWithDB creates a repository bound to a specific handle.
// Used by tests that run against their own in-memory database.
func NewRepositoryWithDB(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertChannel creates or replaces the promotion record for a channel.
// Re-registering resets the window and flips the status back to active.
func (r *Repository) UpsertChannel(channel *models.PromotedChannel) error {
	return WithRetry(func() error {
		return r.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "channel_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"channel_username", "channel_title", "owner_id",
				"promotion_start", "promotion_end", "status",
			}),
		}).Create(channel).Error
	})
}

// GetChannel returns the promotion record for a channel, or (nil, nil)
// if none exists.
func (r *Repository) GetChannel(channelID int64) (*models.PromotedChannel, error) {
	var channel models.PromotedChannel
	err := WithRetry(func() error {
		result := r.db.Where("channel_id = ?", channelID).First(&channel)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil
		}
		return result.Error
	})
	if err != nil {
		return nil, err
	}
	if channel.ChannelID == 0 {
		return nil, nil
	}
	return &channel, nil
}

// GetActiveChannels returns all channels whose promotion window is
// still open, in primary-key order.
func (r *Repository) GetActiveChannels(now time.Time) ([]models.PromotedChannel, error) {
	var channels []models.PromotedChannel
	err := WithRetry(func() error {
		return r.db.
			Where("status = ? AND promotion_end > ?", models.ChannelStatusActive, now).
			Order("id").
			Find(&channels).Error
	})
	return channels, err
}

// GetExpiredChannels returns active-but-past-end channels, i.e. rows
// the expiry sweep still has to mark. Rows already marked expired are
// excluded, which is what makes the sweep idempotent.
func (r *Repository) GetExpiredChannels(now time.Time) ([]models.PromotedChannel, error) {
	var channels []models.PromotedChannel
	err := WithRetry(func() error {
		return r.db.
			Where("status = ? AND promotion_end <= ?", models.ChannelStatusActive, now).
			Order("id").
			Find(&channels).Error
	})
	return channels, err
}

// MarkChannelExpired flips a channel's promotion to expired.
func (r *Repository) MarkChannelExpired(channelID int64) error {
	return WithRetry(func() error {
		return r.db.Model(&models.PromotedChannel{}).
			Where("channel_id = ?", channelID).
			Update("status", models.ChannelStatusExpired).Error
	})
}

func (r *Repository) CountActiveChannels(now time.Time) (int64, error) {
	var count int64
	err := WithRetry(func() error {
		return r.db.Model(&models.PromotedChannel{}).
			Where("status = ? AND promotion_end > ?", models.ChannelStatusActive, now).
			Count(&count).Error
	})
	return count, err
}

func (r *Repository) CountExpiredChannels() (int64, error) {
	var count int64
	err := WithRetry(func() error {
		return r.db.Model(&models.PromotedChannel{}).
			Where("status = ?", models.ChannelStatusExpired).
			Count(&count).Error
	})
	return count, err
}

// IsAdmin reports whether the user is in the admin set.
func (r *Repository) IsAdmin(userID int64) (bool, error) {
	var count int64
	err := WithRetry(func() error {
		return r.db.Model(&models.Admin{}).Where("user_id = ?", userID).Count(&count).Error
	})
	return count > 0, err
}

// UpsertAdmin adds a user to the admin set; re-adding updates the
// stored username and is otherwise a no-op.
func (r *Repository) UpsertAdmin(userID int64, username string) error {
	return WithRetry(func() error {
		return r.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username"}),
		}).Create(&models.Admin{
			UserID:   userID,
			Username: username,
			AddedAt:  time.Now(),
		}).Error
	})
}

// CreatePayment inserts a pending payment record and returns its id.
func (r *Repository) CreatePayment(payment *models.Payment) (uint, error) {
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
	err := WithRetry(func() error {
		return r.db.Create(payment).Error
	})
	if err != nil {
		return 0, err
	}
	return payment.ID, nil
}

// CompletePayment marks a payment completed by id.
func (r *Repository) CompletePayment(paymentID uint) error {
	return WithRetry(func() error {
		return r.db.Model(&models.Payment{}).
			Where("id = ?", paymentID).
			Update("status", models.PaymentStatusCompleted).Error
	})
}

// GetPayment returns a payment by id, or (nil, nil) if none exists.
func (r *Repository) GetPayment(paymentID uint) (*models.Payment, error) {
	var payment models.Payment
	err := WithRetry(func() error {
		result := r.db.First(&payment, paymentID)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil
		}
		return result.Error
	})
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

// UpsertMembershipCheck records the latest oracle answer for a
// (user, channel) pair.
func (r *Repository) UpsertMembershipCheck(userID, channelID int64, joined bool) error {
	return WithRetry(func() error {
		return r.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "channel_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"joined", "checked_at"}),
		}).Create(&models.MembershipCheck{
			UserID:    userID,
			ChannelID: channelID,
			Joined:    joined,
			CheckedAt: time.Now(),
		}).Error
	})
}

// GetMembershipCheck returns the cached joined flag for a pair,
// defaulting to false when no row exists.
func (r *Repository) GetMembershipCheck(userID, channelID int64) (bool, error) {
	var check models.MembershipCheck
	err := WithRetry(func() error {
		result := r.db.Where("user_id = ? AND channel_id = ?", userID, channelID).First(&check)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil
		}
		return result.Error
	})
	if err != nil {
		return false, err
	}
	return check.Joined, nil
}

// Export dumps every table into a snapshot document, rows in
// primary-key order.
func (r *Repository) Export() (*models.Snapshot, error) {
	snapshot := &models.Snapshot{ExportedAt: time.Now().UTC()}

	err := WithRetry(func() error {
		if err := r.db.Order("id").Find(&snapshot.Channels).Error; err != nil {
			return err
		}
		if err := r.db.Order("id").Find(&snapshot.Admins).Error; err != nil {
			return err
		}
		if err := r.db.Order("id").Find(&snapshot.Payments).Error; err != nil {
			return err
		}
		return r.db.Order("id").Find(&snapshot.MembershipChecks).Error
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Import replaces all tables with the snapshot's rows in a single
// transaction. A mid-import failure rolls back to the prior state.
// Surrogate ids are reassigned by the local database; inserting the
// exported ids verbatim would leave postgres identity sequences behind
// max(id), so the next default-keyed insert after a restore would
// collide. Rows keep their identity through the natural keys.
func (r *Repository) Import(snapshot *models.Snapshot) error {
	for i := range snapshot.Channels {
		snapshot.Channels[i].ID = 0
	}
	for i := range snapshot.Admins {
		snapshot.Admins[i].ID = 0
	}
	for i := range snapshot.Payments {
		snapshot.Payments[i].ID = 0
	}
	for i := range snapshot.MembershipChecks {
		snapshot.MembershipChecks[i].ID = 0
	}

	return WithRetry(func() error {
		return r.importTx(snapshot)
	})
}

func (r *Repository) importTx(snapshot *models.Snapshot) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.PromotedChannel{},
			&models.Admin{},
			&models.Payment{},
			&models.MembershipCheck{},
		} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}

		if len(snapshot.Channels) > 0 {
			if err := tx.Create(&snapshot.Channels).Error; err != nil {
				return err
			}
		}
		if len(snapshot.Admins) > 0 {
			if err := tx.Create(&snapshot.Admins).Error; err != nil {
				return err
			}
		}
		if len(snapshot.Payments) > 0 {
			if err := tx.Create(&snapshot.Payments).Error; err != nil {
				return err
			}
		}
		if len(snapshot.MembershipChecks) > 0 {
			if err := tx.Create(&snapshot.MembershipChecks).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
