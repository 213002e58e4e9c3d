// Package sessions maintains the bounded per-account list of active
// sessions. The list lives on the account record; this package implements
// the dedup, touch, and eviction rules applied on every login.
package sessions

import (
	"strings"
	"time"

	"github.com/finboard/secguard/geoip"
)

// DefaultCap bounds the session list. When a login would exceed it, the
// session with the oldest LastUsed is evicted.
const DefaultCap = 10

// Session is one tracked device entry on an account.
type Session struct {
	ID         string         `json:"id" bson:"id"`
	Address    string         `json:"address" bson:"address"`
	DeviceInfo string         `json:"deviceInfo" bson:"deviceInfo"`
	Location   geoip.Location `json:"location,omitempty" bson:"location,omitempty"`
	CreatedAt  time.Time      `json:"createdAt" bson:"createdAt"`
	LastUsed   time.Time      `json:"lastUsed" bson:"lastUsed"`
}

// Record merges a login into the list. A session with the same address and
// device is touched in place and keeps its identifier; otherwise the new
// session is appended and the list trimmed to max by evicting the least
// recently used entries. It returns the new list and the identifier of the
// session the login now rides on.
func Record(list []Session, s Session, max int) ([]Session, string) {
	if max <= 0 {
		max = DefaultCap
	}

	for i := range list {
		if list[i].Address == s.Address && list[i].DeviceInfo == s.DeviceInfo {
			list[i].LastUsed = s.LastUsed
			if !s.Location.IsZero() {
				list[i].Location = s.Location
			}
			return list, list[i].ID
		}
	}

	list = append(list, s)
	for len(list) > max {
		oldest := 0
		for i := range list {
			if list[i].LastUsed.Before(list[oldest].LastUsed) {
				oldest = i
			}
		}
		// Evict in place so the survivors keep their creation order.
		list = append(list[:oldest], list[oldest+1:]...)
	}
	return list, s.ID
}

// FindByID returns the index of the session with the given identifier, or
// -1 when absent.
func FindByID(list []Session, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// Remove drops the session at index i.
func Remove(list []Session, i int) []Session {
	if i < 0 || i >= len(list) {
		return list
	}
	return append(list[:i], list[i+1:]...)
}

// KeepOnly drops every session except the one with the given identifier.
// It returns the new list and how many sessions were removed.
func KeepOnly(list []Session, id string) ([]Session, int) {
	kept := list[:0]
	for _, s := range list {
		if s.ID == id {
			kept = append(kept, s)
		}
	}
	return kept, len(list) - len(kept)
}

// ParseUserAgent reduces a raw User-Agent header to a short "Browser, OS"
// label for display. Unrecognized agents come back as "Unknown".
func ParseUserAgent(ua string) string {
	browser := "Unknown"
	osName := ""

	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "edg/"), strings.Contains(lower, "edge/"):
		browser = "Edge"
	case strings.Contains(lower, "opr/"), strings.Contains(lower, "opera"):
		browser = "Opera"
	case strings.Contains(lower, "chrome/"):
		browser = "Chrome"
	case strings.Contains(lower, "firefox/"):
		browser = "Firefox"
	case strings.Contains(lower, "safari/"):
		browser = "Safari"
	case strings.Contains(lower, "curl/"):
		browser = "curl"
	}

	switch {
	case strings.Contains(lower, "windows"):
		osName = "Windows"
	case strings.Contains(lower, "android"):
		osName = "Android"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"):
		osName = "iOS"
	case strings.Contains(lower, "mac os"), strings.Contains(lower, "macos"):
		osName = "macOS"
	case strings.Contains(lower, "linux"):
		osName = "Linux"
	}

	if osName == "" {
		return browser
	}
	return browser + ", " + osName
}
