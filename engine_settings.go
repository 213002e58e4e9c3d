package secguard

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/finboard/secguard/internal/sessions"
)

// UpdateSecuritySettings validates and applies the full settings block.
// Partial updates are the caller's concern: read, mutate, write back.
func (e *Engine) UpdateSecuritySettings(ctx context.Context, accountID string, settings SecuritySettings) error {
	if err := validateSettings(settings); err != nil {
		return err
	}

	account, unlock, err := e.loadAccountLocked(ctx, accountID)
	if err != nil {
		return err
	}
	defer unlock()

	account.Settings = settings

	e.recordActivity(account, ActivityEntry{
		Timestamp: e.now(),
		Type:      "settings_change",
		Status:    ActivitySuccess,
		Address:   clientIPFromContext(ctx),
		Device:    sessions.ParseUserAgent(userAgentFromContext(ctx)),
	})

	if err := e.saveAccount(ctx, account); err != nil {
		return err
	}

	e.metricInc(MetricSettingsUpdated)
	e.emitAudit(ctx, auditEventSettingsUpdated, true, accountID, "", nil, nil)
	return nil
}

func validateSettings(s SecuritySettings) error {
	if s.IPRestrictions.Enabled {
		for _, entry := range s.IPRestrictions.Allowed {
			if !validIPEntry(entry) {
				return fmt.Errorf("%w: bad ip entry %q", ErrInvalidSettings, entry)
			}
		}
	}
	if s.TimeRestrictions.Enabled {
		if !validClock(s.TimeRestrictions.Start) {
			return fmt.Errorf("%w: bad start time %q", ErrInvalidSettings, s.TimeRestrictions.Start)
		}
		if !validClock(s.TimeRestrictions.End) {
			return fmt.Errorf("%w: bad end time %q", ErrInvalidSettings, s.TimeRestrictions.End)
		}
		if s.TimeRestrictions.Timezone != "" {
			if _, err := time.LoadLocation(s.TimeRestrictions.Timezone); err != nil {
				return fmt.Errorf("%w: bad timezone %q", ErrInvalidSettings, s.TimeRestrictions.Timezone)
			}
		}
	}
	if s.GeoRestrictions.Enabled {
		for _, cc := range s.GeoRestrictions.Allowed {
			if len(cc) != 2 || !isAlpha(cc) {
				return fmt.Errorf("%w: bad country code %q", ErrInvalidSettings, cc)
			}
		}
	}
	if s.ActivityLogging.Level != "" {
		switch s.ActivityLogging.Level {
		case ActivityLevelBasic, ActivityLevelStandard, ActivityLevelDetailed, ActivityLevelDebug:
		default:
			return fmt.Errorf("%w: unknown activity level %q", ErrInvalidSettings, s.ActivityLogging.Level)
		}
	}
	if s.ActivityLogging.RetentionDays < 0 || s.ActivityLogging.RetentionDays > 3650 {
		return fmt.Errorf("%w: retention days out of range", ErrInvalidSettings)
	}
	if s.ActivityLogging.MaxEntries < 0 {
		return fmt.Errorf("%w: negative max entries", ErrInvalidSettings)
	}
	return nil
}

func validIPEntry(entry string) bool {
	if strings.Contains(entry, "/") {
		_, err := netip.ParsePrefix(entry)
		return err == nil
	}
	_, err := netip.ParseAddr(entry)
	return err == nil
}

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
