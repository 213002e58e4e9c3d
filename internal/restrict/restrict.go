// Package restrict evaluates the per-account access restrictions that run
// ahead of credential verification: source address allowlists, local time
// windows, and country allowlists backed by a geolocation lookup.
package restrict

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

var (
	// ErrIPNotAllowed rejects a login from an address outside the allowlist.
	ErrIPNotAllowed = errors.New("ip address not allowed")
	// ErrOutsideAllowedTime rejects a login outside the configured window.
	ErrOutsideAllowedTime = errors.New("login outside allowed time window")
	// ErrGeoNotAllowed rejects a login from a country outside the allowlist,
	// or one whose origin could not be established.
	ErrGeoNotAllowed = errors.New("location not allowed")
)

// IPSettings allowlists source addresses. Entries are single addresses or
// CIDR ranges. An enabled empty allowlist rejects everything.
type IPSettings struct {
	Enabled bool     `json:"enabled" bson:"enabled"`
	Allowed []string `json:"allowed,omitempty" bson:"allowed,omitempty"`
}

// TimeSettings restricts logins to a daily window. Start and End are
// "HH:MM" in the configured timezone; the window is [Start, End) and may
// cross midnight. WorkdaysOnly additionally rejects Saturday and Sunday.
type TimeSettings struct {
	Enabled      bool   `json:"enabled" bson:"enabled"`
	Start        string `json:"start,omitempty" bson:"start,omitempty"`
	End          string `json:"end,omitempty" bson:"end,omitempty"`
	Timezone     string `json:"timezone,omitempty" bson:"timezone,omitempty"`
	WorkdaysOnly bool   `json:"workdaysOnly" bson:"workdaysOnly"`
}

// GeoSettings allowlists ISO country codes.
type GeoSettings struct {
	Enabled bool     `json:"enabled" bson:"enabled"`
	Allowed []string `json:"allowed,omitempty" bson:"allowed,omitempty"`
}

// ResolveCountry maps a source address to an ISO country code.
type ResolveCountry func(ctx context.Context, ip string) (string, error)

// Evaluate runs the three checks in order: address, time window, country.
// The first failing check determines the returned error. A failed country
// lookup counts as a rejection.
func Evaluate(ctx context.Context, ip string, now time.Time, ipcfg IPSettings, timecfg TimeSettings, geocfg GeoSettings, resolve ResolveCountry) error {
	if ipcfg.Enabled {
		if !ipAllowed(ip, ipcfg.Allowed) {
			return ErrIPNotAllowed
		}
	}

	if timecfg.Enabled {
		ok, err := withinWindow(now, timecfg)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOutsideAllowedTime, err)
		}
		if !ok {
			return ErrOutsideAllowedTime
		}
	}

	if geocfg.Enabled {
		if resolve == nil {
			return ErrGeoNotAllowed
		}
		country, err := resolve(ctx, ip)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrGeoNotAllowed, err)
		}
		if !countryAllowed(country, geocfg.Allowed) {
			return ErrGeoNotAllowed
		}
	}

	return nil
}

func ipAllowed(ip string, allowed []string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				continue
			}
			if prefix.Contains(addr) {
				return true
			}
			continue
		}
		if other, err := netip.ParseAddr(entry); err == nil && other.Unmap() == addr {
			return true
		}
	}
	return false
}

func withinWindow(now time.Time, cfg TimeSettings) (bool, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		parsed, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return false, fmt.Errorf("timezone %q: %v", cfg.Timezone, err)
		}
		loc = parsed
	}
	local := now.In(loc)

	if cfg.WorkdaysOnly {
		switch local.Weekday() {
		case time.Saturday, time.Sunday:
			return false, nil
		}
	}

	if cfg.Start == "" && cfg.End == "" {
		return true, nil
	}

	start, err := parseClock(cfg.Start)
	if err != nil {
		return false, err
	}
	end, err := parseClock(cfg.End)
	if err != nil {
		return false, err
	}

	minute := local.Hour()*60 + local.Minute()
	if start == end {
		return true, nil
	}
	if start < end {
		return minute >= start && minute < end, nil
	}
	// Window crosses midnight.
	return minute >= start || minute < end, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("clock %q: %v", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func countryAllowed(country string, allowed []string) bool {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return false
	}
	for _, entry := range allowed {
		if strings.ToUpper(strings.TrimSpace(entry)) == country {
			return true
		}
	}
	return false
}
