package models

import (
	"time"
)

// Snapshot is the full-state export document used for remote backups.
// Rows are listed in the Ledger's natural read order (primary key).
type Snapshot struct {
	Channels         []PromotedChannel `json:"channels"`
	Admins           []Admin           `json:"admins"`
	Payments         []Payment         `json:"payments"`
	MembershipChecks []MembershipCheck `json:"membership_cache"`
	ExportedAt       time.Time         `json:"exported_at"`
}
