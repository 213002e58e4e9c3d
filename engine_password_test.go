package secguard

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)
	ctx := context.Background()

	res, err := f.engine.Login(ctx, "owner", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := f.engine.ChangePassword(ctx, "acct-1", res.SessionID, testPassword, "a new stronger passphrase"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	// Old password no longer works, new one does.
	if _, err := f.engine.Login(ctx, "owner", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := f.engine.Login(ctx, "owner", "a new stronger passphrase"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}

	stored := f.repo.stored(t, "acct-1")
	if len(stored.PasswordHistory) != 1 {
		t.Fatalf("expected old hash in history, got %d entries", len(stored.PasswordHistory))
	}
	if stored.LastPasswordChange.IsZero() {
		t.Fatal("LastPasswordChange not set")
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)

	err := f.engine.ChangePassword(context.Background(), "acct-1", "", "wrong", "whatever new value")
	if !errors.Is(err, ErrInvalidCurrentPassword) {
		t.Fatalf("expected ErrInvalidCurrentPassword, got %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("wrong current password must not collapse into the login error")
	}
}

func TestChangePasswordRejectsCurrentReuse(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)

	err := f.engine.ChangePassword(context.Background(), "acct-1", "", testPassword, testPassword)
	if !errors.Is(err, ErrPasswordReused) {
		t.Fatalf("expected ErrPasswordReused, got %v", err)
	}
}

func TestChangePasswordRejectsHistoryReuse(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)
	ctx := context.Background()

	current := testPassword
	for i := 0; i < 3; i++ {
		next := fmt.Sprintf("rotation passphrase %d", i)
		if err := f.engine.ChangePassword(ctx, "acct-1", "", current, next); err != nil {
			t.Fatalf("rotation %d: %v", i, err)
		}
		current = next
	}

	// The original password is still inside the 5-entry history.
	if err := f.engine.ChangePassword(ctx, "acct-1", "", current, testPassword); !errors.Is(err, ErrPasswordReused) {
		t.Fatalf("expected ErrPasswordReused from history, got %v", err)
	}
}

func TestChangePasswordHistoryEviction(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)
	ctx := context.Background()

	current := testPassword
	for i := 0; i < 6; i++ {
		next := fmt.Sprintf("rotation passphrase %d", i)
		if err := f.engine.ChangePassword(ctx, "acct-1", "", current, next); err != nil {
			t.Fatalf("rotation %d: %v", i, err)
		}
		current = next
	}

	stored := f.repo.stored(t, "acct-1")
	if len(stored.PasswordHistory) != PasswordHistorySize {
		t.Fatalf("expected history capped at %d, got %d", PasswordHistorySize, len(stored.PasswordHistory))
	}

	// The original password was evicted from the window and is usable
	// again.
	if err := f.engine.ChangePassword(ctx, "acct-1", "", current, testPassword); err != nil {
		t.Fatalf("expected evicted password to be accepted, got %v", err)
	}
}

func TestChangePasswordTooShort(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)

	err := f.engine.ChangePassword(context.Background(), "acct-1", "", testPassword, "short")
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}

func TestChangePasswordTerminatesOtherSessions(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t)

	// Three distinct devices.
	agents := []string{"curl/8.5.0", "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0", "Mozilla/5.0 (Macintosh) Version/17.0 Safari/605.1.15"}
	var last *LoginResult
	for _, ua := range agents {
		ctx := WithUserAgent(context.Background(), ua)
		res, err := f.engine.Login(ctx, "owner", testPassword)
		if err != nil {
			t.Fatalf("Login %q: %v", ua, err)
		}
		last = res
	}

	if got := len(f.repo.stored(t, "acct-1").Sessions); got != 3 {
		t.Fatalf("expected 3 sessions, got %d", got)
	}

	err := f.engine.ChangePassword(context.Background(), "acct-1", last.SessionID, testPassword, "a new stronger passphrase")
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	stored := f.repo.stored(t, "acct-1")
	if len(stored.Sessions) != 1 || stored.Sessions[0].ID != last.SessionID {
		t.Fatalf("expected only current session to survive, got %+v", stored.Sessions)
	}
}
