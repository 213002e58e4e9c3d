package secguard

import (
	"context"
	"testing"
	"time"
)

func TestReport(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, func(a *Account) {
		a.Settings.IPRestrictions = IPRestrictions{Enabled: true, Allowed: []string{"10.0.0.0/8"}}
		a.LastPasswordChange = testNow.Add(-40 * 24 * time.Hour)
	})
	f.enableTOTP(t, "acct-1")
	ctx := context.Background()

	report, err := f.engine.Report(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	if !report.TwoFactorEnabled || report.BackupCodesLeft != 8 {
		t.Fatalf("two-factor summary wrong: %+v", report)
	}
	if !report.IPRestricted || report.TimeRestricted || report.GeoRestricted {
		t.Fatalf("restriction summary wrong: %+v", report)
	}
	if !report.FailedLoginLimit || report.Locked {
		t.Fatalf("lockout summary wrong: %+v", report)
	}
	if report.PasswordAgeDays != 40 {
		t.Fatalf("expected password age 40 days, got %d", report.PasswordAgeDays)
	}
}

func TestReportLiftsExpiredLock(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = f.engine.Login(ctx, "owner", "wrong")
	}
	report, err := f.engine.Report(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !report.Locked {
		t.Fatal("expected locked report")
	}

	f.advance(31 * time.Minute)
	report, err = f.engine.Report(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.Locked {
		t.Fatal("expected lock lifted in report")
	}
	if f.repo.stored(t, "acct-1").Lockout.Locked {
		t.Fatal("lift not persisted")
	}
}

func TestReportCountsUnusedBackupCodes(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)
	_, codes := f.enableTOTP(t, "acct-1")
	ctx := context.Background()

	res, _ := f.engine.Login(ctx, "owner", testPassword)
	if _, err := f.engine.VerifyLoginBackupCode(ctx, res.Token, codes[0]); err != nil {
		t.Fatalf("VerifyLoginBackupCode: %v", err)
	}

	report, err := f.engine.Report(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.BackupCodesLeft != 7 {
		t.Fatalf("expected 7 codes left, got %d", report.BackupCodesLeft)
	}
	if report.ActiveSessions != 1 {
		t.Fatalf("expected 1 active session, got %d", report.ActiveSessions)
	}
}
