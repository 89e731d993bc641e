package migration

import (
	"time"

	"github.com/stellarfrp/panelsync/internal/datastore"
)

// Panel permission groups derived from legacy account data.
const (
	GroupBasic    int64 = 1
	GroupVerified int64 = 2
	GroupVIP      int64 = 3
)

// Classify maps a legacy account to a panel permission group and an
// optional group expiry. Evaluation time is injected so results are
// deterministic.
//
// A VIP account with a future expiry becomes an active VIP carrying that
// expiry. A VIP whose expiry is missing or already past, and any normal
// account, falls back to the verified or basic group depending on the
// real-name verification flag. Unknown account types get the basic group.
func Classify(accountType string, vipTime *time.Time, verified bool, now time.Time) (groupID int64, groupTime *time.Time) {
	switch accountType {
	case datastore.AccountTypeVIP:
		if vipTime != nil && !vipTime.IsZero() && vipTime.After(now) {
			return GroupVIP, vipTime
		}
		return verifiedGroup(verified), nil
	case datastore.AccountTypeNormal:
		return verifiedGroup(verified), nil
	default:
		return GroupBasic, nil
	}
}

func verifiedGroup(verified bool) int64 {
	if verified {
		return GroupVerified
	}
	return GroupBasic
}
