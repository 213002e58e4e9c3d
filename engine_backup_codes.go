package secguard

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/finboard/secguard/internal/sessions"
)

const backupCodeAlphabet = "0123456789ABCDEF"

// RegenerateBackupCodes replaces every backup code on the account,
// including unused ones, after verifying a current authenticator code.
// The replacement is atomic: the old set stays valid until the new one is
// persisted. Plaintext codes are returned once and never stored.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, accountID, totpCode string) ([]string, error) {
	if e == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}

	account, unlock, err := e.loadAccountLocked(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !account.TwoFactor.Enabled {
		return nil, ErrTOTPNotConfigured
	}
	if err := e.verifySecondFactor(account, totpCode); err != nil {
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, false, accountID, "", err, func() map[string]string {
			return map[string]string{"phase": "backup_regeneration"}
		})
		return nil, err
	}

	codes, records, err := newBackupCodeSet(account.ID, e.config.BackupCodes)
	if err != nil {
		return nil, err
	}
	account.TwoFactor.BackupCodes = records

	now := e.now()
	e.recordActivity(account, ActivityEntry{
		Timestamp: now,
		Type:      "backup_codes_regenerated",
		Status:    ActivitySuccess,
		Address:   clientIPFromContext(ctx),
		Device:    sessions.ParseUserAgent(userAgentFromContext(ctx)),
	})

	if err := e.saveAccount(ctx, account); err != nil {
		return nil, err
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, accountID, "", nil, func() map[string]string {
		return map[string]string{"count": strconv.Itoa(len(codes))}
	})
	return codes, nil
}

// newBackupCodeSet generates the configured number of codes and their
// hashed records. Hashes are salted with the account ID so identical
// codes on different accounts never share a hash.
func newBackupCodeSet(accountID string, cfg BackupCodesConfig) ([]string, []BackupCode, error) {
	codes := make([]string, 0, cfg.Count)
	records := make([]BackupCode, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		code, err := newBackupCode(cfg.Length)
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, formatBackupCode(code))
		records = append(records, BackupCode{Hash: backupCodeHash(accountID, code)})
	}
	return codes, records, nil
}

// consumeBackupCode marks the matching unused code as spent. Returns
// false for unknown or already-used codes.
func consumeBackupCode(account *Account, code string, now time.Time) bool {
	canonical := canonicalizeBackupCode(code)
	if canonical == "" {
		return false
	}
	hash := backupCodeHash(account.ID, canonical)
	for i := range account.TwoFactor.BackupCodes {
		bc := &account.TwoFactor.BackupCodes[i]
		if bc.Used || bc.Hash != hash {
			continue
		}
		bc.Used = true
		bc.UsedAt = now
		return true
	}
	return false
}

func remainingBackupCodes(account *Account) int {
	n := 0
	for _, bc := range account.TwoFactor.BackupCodes {
		if !bc.Used {
			n++
		}
	}
	return n
}

func newBackupCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(backupCodeAlphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(backupCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// formatBackupCode groups the code into 4-character blocks for display.
func formatBackupCode(code string) string {
	if len(code) <= 4 {
		return code
	}
	var b strings.Builder
	for i := 0; i < len(code); i += 4 {
		if i > 0 {
			b.WriteByte('-')
		}
		end := i + 4
		if end > len(code) {
			end = len(code)
		}
		b.WriteString(code[i:end])
	}
	return b.String()
}

func canonicalizeBackupCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

func backupCodeHash(accountID, canonicalCode string) [32]byte {
	data := make([]byte, 0, len(accountID)+1+len(canonicalCode))
	data = append(data, accountID...)
	data = append(data, 0)
	data = append(data, canonicalCode...)
	return sha256.Sum256(data)
}
