package secguard

import (
	"context"
	"errors"
	"testing"
)

func TestUpdateSecuritySettings(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)

	settings := SecuritySettings{
		LoginNotifications: true,
		FailedLoginLimit:   true,
		IPRestrictions: IPRestrictions{
			Enabled: true,
			Allowed: []string{"203.0.113.7", "10.0.0.0/8"},
		},
		TimeRestrictions: TimeRestrictions{
			Enabled:  true,
			Start:    "08:30",
			End:      "18:00",
			Timezone: "Europe/Berlin",
		},
		GeoRestrictions: GeoRestrictions{
			Enabled: true,
			Allowed: []string{"DE", "at"},
		},
		ActivityLogging: ActivityLogSettings{
			Enabled:       true,
			Level:         ActivityLevelDetailed,
			RetentionDays: 30,
		},
	}

	if err := f.engine.UpdateSecuritySettings(context.Background(), "acct-1", settings); err != nil {
		t.Fatalf("UpdateSecuritySettings: %v", err)
	}

	stored := f.repo.stored(t, "acct-1")
	if !stored.Settings.IPRestrictions.Enabled || stored.Settings.TimeRestrictions.Start != "08:30" {
		t.Fatalf("settings not applied: %+v", stored.Settings)
	}
	if len(stored.Activity) == 0 || stored.Activity[0].Type != "settings_change" {
		t.Fatalf("settings change not logged: %+v", stored.Activity)
	}
}

func TestUpdateSecuritySettingsValidation(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		settings SecuritySettings
	}{
		{"bad ip", SecuritySettings{IPRestrictions: IPRestrictions{Enabled: true, Allowed: []string{"not-an-ip"}}}},
		{"bad cidr", SecuritySettings{IPRestrictions: IPRestrictions{Enabled: true, Allowed: []string{"10.0.0.0/99"}}}},
		{"bad start", SecuritySettings{TimeRestrictions: TimeRestrictions{Enabled: true, Start: "25:00", End: "17:00"}}},
		{"bad end", SecuritySettings{TimeRestrictions: TimeRestrictions{Enabled: true, Start: "09:00", End: "9pm"}}},
		{"bad timezone", SecuritySettings{TimeRestrictions: TimeRestrictions{Enabled: true, Start: "09:00", End: "17:00", Timezone: "Mars/Olympus"}}},
		{"bad country", SecuritySettings{GeoRestrictions: GeoRestrictions{Enabled: true, Allowed: []string{"DEU"}}}},
		{"bad level", SecuritySettings{ActivityLogging: ActivityLogSettings{Enabled: true, Level: "verbose"}}},
		{"negative retention", SecuritySettings{ActivityLogging: ActivityLogSettings{RetentionDays: -1}}},
	}

	for _, tc := range cases {
		if err := f.engine.UpdateSecuritySettings(ctx, "acct-1", tc.settings); !errors.Is(err, ErrInvalidSettings) {
			t.Fatalf("%s: expected ErrInvalidSettings, got %v", tc.name, err)
		}
	}

	// Rejected updates leave the account untouched.
	if f.repo.stored(t, "acct-1").Settings.IPRestrictions.Enabled {
		t.Fatal("invalid settings were persisted")
	}
}

func TestDisabledRestrictionsSkipValidation(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)

	// Stale entries under a disabled toggle are not rejected.
	settings := SecuritySettings{
		IPRestrictions: IPRestrictions{Enabled: false, Allowed: []string{"not-an-ip"}},
	}
	if err := f.engine.UpdateSecuritySettings(context.Background(), "acct-1", settings); err != nil {
		t.Fatalf("UpdateSecuritySettings: %v", err)
	}
}
