package promo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/starpromo/promobot/internal/database"
	"github.com/starpromo/promobot/internal/models"
)

type fakeOracle struct {
	role string
	err  error
}

func (f *fakeOracle) MemberRole(context.Context, int64, int64) (string, error) {
	return f.role, f.err
}

type fakeBackup struct {
	calls atomic.Int32
}

func (f *fakeBackup) BackupAsync() {
	f.calls.Add(1)
}

func testRepo(t *testing.T) *database.Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	err = db.AutoMigrate(
		&models.PromotedChannel{},
		&models.Admin{},
		&models.Payment{},
		&models.MembershipCheck{},
	)
	if err != nil {
		t.Fatalf("migrating schema: %v", err)
	}
	return database.NewRepositoryWithDB(db)
}

func newTestEngine(t *testing.T, role string, roleErr error) (*Engine, *database.Repository, *fakeBackup) {
	t.Helper()
	repo := testRepo(t)
	backup := &fakeBackup{}
	engine := NewEngine(repo, NewSessionStore(), &fakeOracle{role: role, err: roleErr}, backup)
	return engine, repo, backup
}

var testChannel = ChannelRef{ID: -100500, Username: "mychannel", Title: "My Channel"}

func TestSelectDurationUnknownKey(t *testing.T) {
	engine, _, _ := newTestEngine(t, "creator", nil)

	if _, err := engine.SelectDuration(42, "decade"); !errors.Is(err, ErrUnknownDuration) {
		t.Fatalf("err = %v, want ErrUnknownDuration", err)
	}

	plan, err := engine.SelectDuration(42, "week")
	if err != nil {
		t.Fatalf("SelectDuration(week): %v", err)
	}
	if plan.Days != 7 || plan.Stars != 10 {
		t.Errorf("week plan = %+v", plan)
	}
}

func TestAttachChannelRequiresSelection(t *testing.T) {
	engine, _, _ := newTestEngine(t, "creator", nil)

	if _, err := engine.AttachChannel(context.Background(), 42, testChannel); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("err = %v, want ErrNoSelection", err)
	}
}

func TestAttachChannelRejectsNonChannelAdmin(t *testing.T) {
	engine, repo, _ := newTestEngine(t, "member", nil)
	engine.SelectDuration(42, "week")

	if _, err := engine.AttachChannel(context.Background(), 42, testChannel); !errors.Is(err, ErrNotChannelAdmin) {
		t.Fatalf("err = %v, want ErrNotChannelAdmin", err)
	}

	// Rejected synchronously, nothing persisted.
	channel, _ := repo.GetChannel(testChannel.ID)
	if channel != nil {
		t.Errorf("record created despite rejection: %+v", channel)
	}
}

func TestAttachChannelRoleVerificationFailure(t *testing.T) {
	engine, _, _ := newTestEngine(t, "", errors.New("bot not in channel"))
	engine.SelectDuration(42, "week")

	if _, err := engine.AttachChannel(context.Background(), 42, testChannel); !errors.Is(err, ErrRoleVerification) {
		t.Fatalf("err = %v, want ErrRoleVerification", err)
	}
}

func TestFreePathRegistersImmediately(t *testing.T) {
	engine, repo, backup := newTestEngine(t, "creator", nil)
	repo.UpsertAdmin(42, "boss")
	engine.SelectDuration(42, "week")

	result, err := engine.AttachChannel(context.Background(), 42, testChannel)
	if err != nil {
		t.Fatalf("AttachChannel: %v", err)
	}
	if !result.Free {
		t.Fatal("admin path was not free")
	}

	record, _ := repo.GetChannel(testChannel.ID)
	if record == nil {
		t.Fatal("no promotion record created")
	}
	if record.Status != models.ChannelStatusActive {
		t.Errorf("status = %q, want active", record.Status)
	}
	wantEnd := record.PromotionStart.AddDate(0, 0, 7)
	if !record.PromotionEnd.Equal(wantEnd) {
		t.Errorf("end = %v, want start+7d = %v", record.PromotionEnd, wantEnd)
	}
	if backup.calls.Load() != 1 {
		t.Errorf("backup triggered %d times, want 1", backup.calls.Load())
	}
}

func TestPaidPathCreatesPendingPayment(t *testing.T) {
	engine, repo, backup := newTestEngine(t, "administrator", nil)
	engine.SelectDuration(42, "month")

	result, err := engine.AttachChannel(context.Background(), 42, testChannel)
	if err != nil {
		t.Fatalf("AttachChannel: %v", err)
	}
	if result.Free {
		t.Fatal("non-admin got the free path")
	}
	if result.Pending == nil || result.Pending.StarsRequired != 30 {
		t.Fatalf("pending = %+v, want 30 stars required", result.Pending)
	}

	payment, _ := repo.GetPayment(result.Pending.PaymentID)
	if payment == nil || payment.Status != models.PaymentStatusPending {
		t.Fatalf("payment = %+v, want pending record", payment)
	}

	// No promotion record and no backup until the payment clears.
	record, _ := repo.GetChannel(testChannel.ID)
	if record != nil {
		t.Error("promotion record exists before payment")
	}
	if backup.calls.Load() != 0 {
		t.Error("backup triggered before payment")
	}
}

func TestPaymentExactMatchActivates(t *testing.T) {
	engine, repo, backup := newTestEngine(t, "administrator", nil)
	engine.SelectDuration(42, "month")
	result, err := engine.AttachChannel(context.Background(), 42, testChannel)
	if err != nil {
		t.Fatalf("AttachChannel: %v", err)
	}

	outcome, err := engine.HandlePayment(context.Background(), 42, 30)
	if err != nil {
		t.Fatalf("HandlePayment: %v", err)
	}
	if outcome.Status != PaymentActivated {
		t.Fatalf("status = %v, want PaymentActivated", outcome.Status)
	}

	payment, _ := repo.GetPayment(result.Pending.PaymentID)
	if payment.Status != models.PaymentStatusCompleted {
		t.Errorf("payment status = %q, want completed", payment.Status)
	}

	record, _ := repo.GetChannel(testChannel.ID)
	if record == nil {
		t.Fatal("no promotion record after payment")
	}
	wantEnd := record.PromotionStart.AddDate(0, 0, 30)
	if !record.PromotionEnd.Equal(wantEnd) {
		t.Errorf("end = %v, want start+30d", record.PromotionEnd)
	}
	if backup.calls.Load() != 1 {
		t.Errorf("backup triggered %d times, want 1", backup.calls.Load())
	}

	// A repeated receipt finds no pending selection and does nothing.
	if _, err := engine.HandlePayment(context.Background(), 42, 30); !errors.Is(err, ErrNoPendingPayment) {
		t.Fatalf("repeat payment err = %v, want ErrNoPendingPayment", err)
	}
}

func TestPaymentMismatchKeepsPending(t *testing.T) {
	engine, repo, _ := newTestEngine(t, "administrator", nil)
	engine.SelectDuration(42, "month")
	result, err := engine.AttachChannel(context.Background(), 42, testChannel)
	if err != nil {
		t.Fatalf("AttachChannel: %v", err)
	}

	for _, stars := range []int{29, 31, 25} {
		outcome, err := engine.HandlePayment(context.Background(), 42, stars)
		if err != nil {
			t.Fatalf("HandlePayment(%d): %v", stars, err)
		}
		if outcome.Status != PaymentMismatch {
			t.Fatalf("HandlePayment(%d) status = %v, want PaymentMismatch", stars, outcome.Status)
		}
	}

	payment, _ := repo.GetPayment(result.Pending.PaymentID)
	if payment.Status != models.PaymentStatusPending {
		t.Errorf("payment status = %q, want still pending", payment.Status)
	}
	record, _ := repo.GetChannel(testChannel.ID)
	if record != nil {
		t.Error("promotion record created by mismatched payment")
	}

	// Exact amount still goes through afterwards.
	outcome, err := engine.HandlePayment(context.Background(), 42, 30)
	if err != nil || outcome.Status != PaymentActivated {
		t.Fatalf("exact payment after mismatches = %v, %v", outcome, err)
	}
}

func TestReRegistrationReplacesWindow(t *testing.T) {
	engine, repo, _ := newTestEngine(t, "creator", nil)
	repo.UpsertAdmin(42, "boss")

	engine.SelectDuration(42, "week")
	if _, err := engine.AttachChannel(context.Background(), 42, testChannel); err != nil {
		t.Fatalf("first registration: %v", err)
	}

	engine.SelectDuration(42, "year")
	if _, err := engine.AttachChannel(context.Background(), 42, testChannel); err != nil {
		t.Fatalf("renewal: %v", err)
	}

	snapshot, _ := repo.Export()
	if len(snapshot.Channels) != 1 {
		t.Fatalf("channel rows = %d, want 1", len(snapshot.Channels))
	}
	record := snapshot.Channels[0]
	wantEnd := record.PromotionStart.AddDate(0, 0, 365)
	if !record.PromotionEnd.Equal(wantEnd) {
		t.Errorf("renewed end = %v, want start+365d", record.PromotionEnd)
	}
}

func TestNewDurationSelectionDiscardsPending(t *testing.T) {
	engine, _, _ := newTestEngine(t, "administrator", nil)
	engine.SelectDuration(42, "month")
	if _, err := engine.AttachChannel(context.Background(), 42, testChannel); err != nil {
		t.Fatalf("AttachChannel: %v", err)
	}

	// Starting over rebinds the flow; the old 30-star request no longer
	// matches anything.
	engine.SelectDuration(42, "week")
	if _, err := engine.HandlePayment(context.Background(), 42, 30); !errors.Is(err, ErrNoPendingPayment) {
		t.Fatalf("err = %v, want ErrNoPendingPayment after reselection", err)
	}
}

func TestSessionTTLExpiry(t *testing.T) {
	store := NewSessionStore()
	store.ttl = 10 * time.Millisecond
	store.SetDuration(42, "week")

	time.Sleep(20 * time.Millisecond)
	if _, ok := store.Duration(42); ok {
		t.Error("session survived past its TTL")
	}
}
