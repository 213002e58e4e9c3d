// Package activity maintains the per-account security activity log.
// Entries are captured at a configurable detail level and pruned lazily:
// retention is enforced when entries are appended or read, never by a
// background job.
package activity

import (
	"time"
)

// Level controls how much of each entry is recorded.
type Level string

const (
	// LevelBasic records the event type, timestamp, and outcome.
	LevelBasic Level = "basic"
	// LevelStandard adds the source address.
	LevelStandard Level = "standard"
	// LevelDetailed adds device and location information.
	LevelDetailed Level = "detailed"
	// LevelDebug keeps everything including free-form metadata.
	LevelDebug Level = "debug"
)

// rank orders levels for comparison; unknown levels rank as standard.
func (l Level) rank() int {
	switch l {
	case LevelBasic:
		return 0
	case LevelDetailed:
		return 2
	case LevelDebug:
		return 3
	default:
		return 1
	}
}

// Status is the outcome recorded on an entry.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusBlocked Status = "blocked"
)

// Entry is one recorded event on an account.
type Entry struct {
	Timestamp time.Time         `json:"timestamp" bson:"timestamp"`
	Type      string            `json:"type" bson:"type"`
	Status    Status            `json:"status" bson:"status"`
	Address   string            `json:"address,omitempty" bson:"address,omitempty"`
	Device    string            `json:"device,omitempty" bson:"device,omitempty"`
	Location  string            `json:"location,omitempty" bson:"location,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// Settings is the per-account logging configuration.
type Settings struct {
	Enabled       bool  `json:"enabled" bson:"enabled"`
	Level         Level `json:"level,omitempty" bson:"level,omitempty"`
	RetentionDays int   `json:"retentionDays,omitempty" bson:"retentionDays,omitempty"`
	MaxEntries    int   `json:"maxEntries,omitempty" bson:"maxEntries,omitempty"`
}

// DefaultMaxEntries bounds the log when no explicit cap is configured.
const DefaultMaxEntries = 500

// Append records an entry, reduced to the configured detail level, then
// prunes expired and excess entries. Newest entries come first. Returns
// the original list unchanged when logging is disabled.
func Append(list []Entry, e Entry, cfg Settings, now time.Time) []Entry {
	if !cfg.Enabled {
		return list
	}

	rank := cfg.Level.rank()
	if rank < LevelStandard.rank() {
		e.Address = ""
	}
	if rank < LevelDetailed.rank() {
		e.Device = ""
		e.Location = ""
	}
	if rank < LevelDebug.rank() {
		e.Metadata = nil
	}

	list = append([]Entry{e}, list...)
	return Prune(list, cfg, now)
}

// Prune drops entries older than the retention window and trims the list
// to the configured cap. Entries are assumed newest-first.
func Prune(list []Entry, cfg Settings, now time.Time) []Entry {
	if cfg.RetentionDays > 0 {
		cutoff := now.AddDate(0, 0, -cfg.RetentionDays)
		cut := len(list)
		for i := len(list) - 1; i >= 0; i-- {
			if list[i].Timestamp.After(cutoff) {
				break
			}
			cut = i
		}
		list = list[:cut]
	}

	max := cfg.MaxEntries
	if max <= 0 {
		max = DefaultMaxEntries
	}
	if len(list) > max {
		list = list[:max]
	}
	return list
}
