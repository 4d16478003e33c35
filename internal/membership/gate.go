package membership

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/starpromo/promobot/internal/config"
	"github.com/starpromo/promobot/internal/database"
)

// Roles that count as having joined a channel.
const (
	RoleMember        = "member"
	RoleAdministrator = "administrator"
	RoleCreator       = "creator"
)

// RoleOracle answers what role a user holds in a channel. Backed by the
// Telegram client in production.
type RoleOracle interface {
	MemberRole(ctx context.Context, channelID, userID int64) (string, error)
}

// Gate checks whether a user has joined every required channel. Every
// oracle answer is written to the membership cache, but the cache is
// never read back to decide the outcome: gating always re-queries live
// and treats oracle failures as not joined.
type Gate struct {
	oracle   RoleOracle
	repo     *database.Repository
	required []config.RequiredChannel
}

func NewGate(oracle RoleOracle, repo *database.Repository, required []config.RequiredChannel) *Gate {
	return &Gate{
		oracle:   oracle,
		repo:     repo,
		required: required,
	}
}

// Satisfies reports whether the user has joined all required channels,
// along with the handles of the ones still missing, in configured
// order. An oracle error for one channel marks that channel missing and
// the check continues.
func (g *Gate) Satisfies(ctx context.Context, userID int64) (bool, []string) {
	var missing []string

	for _, channel := range g.required {
		role, err := g.oracle.MemberRole(ctx, channel.ID, userID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"channel": channel.Username,
				"user":    userID,
			}).WithError(err).Warn("Membership check failed, treating as not joined")
			role = ""
		}

		joined := IsJoinedRole(role)
		if cacheErr := g.repo.UpsertMembershipCheck(userID, channel.ID, joined); cacheErr != nil {
			logrus.WithError(cacheErr).Warn("Failed to record membership check")
		}

		if !joined {
			missing = append(missing, channel.Username)
		}
	}

	return len(missing) == 0, missing
}

// IsJoinedRole reports whether a chat-member role satisfies the join
// requirement.
func IsJoinedRole(role string) bool {
	switch role {
	case RoleMember, RoleAdministrator, RoleCreator:
		return true
	}
	return false
}
