package membership

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/starpromo/promobot/internal/config"
	"github.com/starpromo/promobot/internal/database"
	"github.com/starpromo/promobot/internal/models"
)

type fakeOracle struct {
	roles map[int64]string
	errs  map[int64]error
}

func (f *fakeOracle) MemberRole(_ context.Context, channelID, _ int64) (string, error) {
	if err, ok := f.errs[channelID]; ok {
		return "", err
	}
	return f.roles[channelID], nil
}

func testRepo(t *testing.T) *database.Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&models.MembershipCheck{}); err != nil {
		t.Fatalf("migrating schema: %v", err)
	}
	return database.NewRepositoryWithDB(db)
}

var required = []config.RequiredChannel{
	{ID: -100, Username: "promonet"},
	{ID: -200, Username: "promoextra"},
}

func TestSatisfiesAllJoined(t *testing.T) {
	repo := testRepo(t)
	oracle := &fakeOracle{roles: map[int64]string{-100: "member", -200: "creator"}}
	gate := NewGate(oracle, repo, required)

	ok, missing := gate.Satisfies(context.Background(), 42)
	if !ok || len(missing) != 0 {
		t.Fatalf("Satisfies = %v, missing %v, want true with none missing", ok, missing)
	}

	// Both answers land in the cache.
	for _, channelID := range []int64{-100, -200} {
		joined, err := repo.GetMembershipCheck(42, channelID)
		if err != nil || !joined {
			t.Errorf("cache for channel %d = %v, %v, want joined", channelID, joined, err)
		}
	}
}

func TestSatisfiesFailClosedOnOracleError(t *testing.T) {
	repo := testRepo(t)
	oracle := &fakeOracle{
		roles: map[int64]string{-100: "member"},
		errs:  map[int64]error{-200: errors.New("chat not found")},
	}
	gate := NewGate(oracle, repo, required)

	ok, missing := gate.Satisfies(context.Background(), 42)
	if ok {
		t.Fatal("Satisfies = true despite oracle failure")
	}
	if len(missing) != 1 || missing[0] != "promoextra" {
		t.Fatalf("missing = %v, want [promoextra]", missing)
	}

	// The fail-closed answer is still recorded.
	joined, _ := repo.GetMembershipCheck(42, -200)
	if joined {
		t.Error("oracle failure cached as joined")
	}
}

func TestSatisfiesLeftAndRestricted(t *testing.T) {
	repo := testRepo(t)
	oracle := &fakeOracle{roles: map[int64]string{-100: "left", -200: "kicked"}}
	gate := NewGate(oracle, repo, required)

	ok, missing := gate.Satisfies(context.Background(), 42)
	if ok || len(missing) != 2 {
		t.Fatalf("Satisfies = %v, missing %v, want both channels missing", ok, missing)
	}
	if missing[0] != "promonet" || missing[1] != "promoextra" {
		t.Errorf("missing order = %v, want configured order", missing)
	}
}

func TestIsJoinedRole(t *testing.T) {
	for role, want := range map[string]bool{
		"member":        true,
		"administrator": true,
		"creator":       true,
		"left":          false,
		"kicked":        false,
		"restricted":    false,
		"":              false,
	} {
		if got := IsJoinedRole(role); got != want {
			t.Errorf("IsJoinedRole(%q) = %v, want %v", role, got, want)
		}
	}
}
