package config

import (
	"testing"
)

func TestParseRequiredChannels(t *testing.T) {
	channels := parseRequiredChannels("-1002140264322:@worldwidepromotion1, -100123:promonet ,bad,:x,77:")
	if len(channels) != 3 {
		t.Fatalf("parsed %d channels, want 3", len(channels))
	}
	if channels[0].ID != -1002140264322 || channels[0].Username != "worldwidepromotion1" {
		t.Errorf("first channel = %+v", channels[0])
	}
	if channels[1].Username != "promonet" {
		t.Errorf("second handle = %q, want promonet", channels[1].Username)
	}
	if channels[2].ID != 77 || channels[2].Username != "" {
		t.Errorf("third channel = %+v", channels[2])
	}
}

func TestParseIDList(t *testing.T) {
	ids := parseIDList(" 123, -456,,abc ,789")
	want := []int64{123, -456, 789}
	if len(ids) != len(want) {
		t.Fatalf("parsed %d ids, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	// Empty values read as unset; t.Setenv restores the originals.
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("EXPIRY_SWEEP_SECONDS", "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_REPO_OWNER", "")
	t.Setenv("GITHUB_REPO_NAME", "")
	Load()

	if DatabaseType != "sqlite" {
		t.Errorf("DatabaseType = %q, want sqlite", DatabaseType)
	}
	if ExpirySweepSeconds != 3600 {
		t.Errorf("ExpirySweepSeconds = %d, want 3600", ExpirySweepSeconds)
	}
	if BackupConfigured() {
		t.Error("BackupConfigured() should be false without credentials")
	}
}

func TestGetDatabaseConnectionString(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("POSTGRES_USER", "promo")
	t.Setenv("POSTGRES_DB", "promodb")
	Load()

	dsn := GetDatabaseConnectionString()
	if dsn == "" || dsn == DatabasePath {
		t.Fatalf("postgres DSN not built: %q", dsn)
	}
}
