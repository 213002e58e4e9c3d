package secguard

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

var backupCodePattern = regexp.MustCompile(`^[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}$`)

func TestBackupCodeFormat(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)
	_, codes := f.enableTOTP(t, "acct-1")

	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		if !backupCodePattern.MatchString(code) {
			t.Fatalf("malformed backup code %q", code)
		}
		if seen[code] {
			t.Fatalf("duplicate backup code %q", code)
		}
		seen[code] = true
	}
}

func TestBackupCodeLogin(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)
	_, codes := f.enableTOTP(t, "acct-1")
	ctx := context.Background()

	res, err := f.engine.Login(ctx, "owner", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	final, err := f.engine.VerifyLoginBackupCode(ctx, res.Token, codes[0])
	if err != nil {
		t.Fatalf("VerifyLoginBackupCode: %v", err)
	}
	if final.Token == "" || final.SessionID == "" {
		t.Fatalf("expected session result, got %+v", final)
	}

	stored := f.repo.stored(t, "acct-1")
	used := 0
	for _, bc := range stored.TwoFactor.BackupCodes {
		if bc.Used {
			used++
			if bc.UsedAt.IsZero() {
				t.Fatal("used code missing UsedAt")
			}
		}
	}
	if used != 1 {
		t.Fatalf("expected exactly one consumed code, got %d", used)
	}
}

func TestBackupCodeSingleUse(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)
	_, codes := f.enableTOTP(t, "acct-1")
	ctx := context.Background()

	res, _ := f.engine.Login(ctx, "owner", testPassword)
	if _, err := f.engine.VerifyLoginBackupCode(ctx, res.Token, codes[0]); err != nil {
		t.Fatalf("first redemption: %v", err)
	}

	res2, _ := f.engine.Login(ctx, "owner", testPassword)
	if _, err := f.engine.VerifyLoginBackupCode(ctx, res2.Token, codes[0]); !errors.Is(err, ErrBackupCodeInvalid) {
		t.Fatalf("expected ErrBackupCodeInvalid on reuse, got %v", err)
	}
}

func TestBackupCodeAcceptsLooseInput(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)
	_, codes := f.enableTOTP(t, "acct-1")
	ctx := context.Background()

	// Lowercase without dashes canonicalizes to the same code.
	loose := strings.ToLower(strings.ReplaceAll(codes[0], "-", ""))

	res, _ := f.engine.Login(ctx, "owner", testPassword)
	if _, err := f.engine.VerifyLoginBackupCode(ctx, res.Token, loose); err != nil {
		t.Fatalf("loose input rejected: %v", err)
	}
}

func TestRegenerateBackupCodes(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)
	secret, oldCodes := f.enableTOTP(t, "acct-1")
	ctx := context.Background()

	f.advance(30 * time.Second)
	newCodes, err := f.engine.RegenerateBackupCodes(ctx, "acct-1", f.totpCode(t, secret, 0))
	if err != nil {
		t.Fatalf("RegenerateBackupCodes: %v", err)
	}
	if len(newCodes) != 8 {
		t.Fatalf("expected 8 fresh codes, got %d", len(newCodes))
	}

	// Old codes are void.
	res, _ := f.engine.Login(ctx, "owner", testPassword)
	if _, err := f.engine.VerifyLoginBackupCode(ctx, res.Token, oldCodes[0]); !errors.Is(err, ErrBackupCodeInvalid) {
		t.Fatalf("expected old code invalidated, got %v", err)
	}

	res2, _ := f.engine.Login(ctx, "owner", testPassword)
	if _, err := f.engine.VerifyLoginBackupCode(ctx, res2.Token, newCodes[0]); err != nil {
		t.Fatalf("fresh code rejected: %v", err)
	}
}

func TestRegenerateRequiresCurrentCode(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)
	f.enableTOTP(t, "acct-1")

	_, err := f.engine.RegenerateBackupCodes(context.Background(), "acct-1", "000000")
	if !errors.Is(err, ErrTOTPInvalid) {
		t.Fatalf("expected ErrTOTPInvalid, got %v", err)
	}
}

func TestRegenerateRequiresEnabledTOTP(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)

	_, err := f.engine.RegenerateBackupCodes(context.Background(), "acct-1", "123456")
	if !errors.Is(err, ErrTOTPNotConfigured) {
		t.Fatalf("expected ErrTOTPNotConfigured, got %v", err)
	}
}
