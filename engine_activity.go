package secguard

import (
	"context"
	"time"

	"github.com/finboard/secguard/internal/activity"
)

func appendActivity(list []ActivityEntry, e ActivityEntry, cfg ActivityLogSettings, now time.Time) []ActivityEntry {
	return activity.Append(list, e, cfg, now)
}

// ActivityLog returns up to limit recent activity entries, newest first.
// A limit <= 0 returns everything on record. Expired entries are pruned
// and the prune persisted before the log is returned.
func (e *Engine) ActivityLog(ctx context.Context, accountID string, limit int) ([]ActivityEntry, error) {
	account, unlock, err := e.loadAccountLocked(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cfg := account.Settings.ActivityLogging
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = e.config.Activity.DefaultRetentionDays
	}
	if cfg.MaxEntries == 0 || cfg.MaxEntries > e.config.Activity.MaxEntries {
		cfg.MaxEntries = e.config.Activity.MaxEntries
	}

	pruned := activity.Prune(account.Activity, cfg, e.now())
	if len(pruned) != len(account.Activity) {
		account.Activity = pruned
		if err := e.saveAccount(ctx, account); err != nil {
			return nil, err
		}
	}

	if limit <= 0 || limit > len(account.Activity) {
		limit = len(account.Activity)
	}
	out := make([]ActivityEntry, limit)
	copy(out, account.Activity[:limit])
	return out, nil
}
