package secguard

import (
	"context"
	"strconv"

	"github.com/finboard/secguard/internal/sessions"
)

// LoginHistory returns the account's tracked sessions in list order,
// oldest first. Callers sort by LastUsed when they need recency.
func (e *Engine) LoginHistory(ctx context.Context, accountID string) ([]Session, error) {
	account, err := e.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]Session, len(account.Sessions))
	copy(out, account.Sessions)
	return out, nil
}

// TerminateSession removes one session from the account. The session's
// token stops validating immediately.
func (e *Engine) TerminateSession(ctx context.Context, accountID, sessionID string) error {
	account, unlock, err := e.loadAccountLocked(ctx, accountID)
	if err != nil {
		return err
	}
	defer unlock()

	idx := sessions.FindByID(account.Sessions, sessionID)
	if idx < 0 {
		return ErrSessionNotFound
	}
	account.Sessions = sessions.Remove(account.Sessions, idx)

	e.recordActivity(account, ActivityEntry{
		Timestamp: e.now(),
		Type:      "session_terminated",
		Status:    ActivitySuccess,
		Address:   clientIPFromContext(ctx),
		Device:    sessions.ParseUserAgent(userAgentFromContext(ctx)),
	})

	if err := e.saveAccount(ctx, account); err != nil {
		return err
	}

	e.metricInc(MetricSessionTerminated)
	e.emitAudit(ctx, auditEventSessionTerminated, true, accountID, sessionID, nil, nil)
	return nil
}

// TerminateOtherSessions removes every session except the one the caller
// is on, identified by the session ID carried in their token. Returns how
// many sessions were removed.
func (e *Engine) TerminateOtherSessions(ctx context.Context, accountID, currentSessionID string) (int, error) {
	account, unlock, err := e.loadAccountLocked(ctx, accountID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	if currentSessionID != "" && sessions.FindByID(account.Sessions, currentSessionID) < 0 {
		return 0, ErrSessionNotFound
	}

	var removed int
	account.Sessions, removed = sessions.KeepOnly(account.Sessions, currentSessionID)
	if removed == 0 {
		return 0, nil
	}

	e.recordActivity(account, ActivityEntry{
		Timestamp: e.now(),
		Type:      "sessions_cleared",
		Status:    ActivitySuccess,
		Address:   clientIPFromContext(ctx),
		Device:    sessions.ParseUserAgent(userAgentFromContext(ctx)),
	})

	if err := e.saveAccount(ctx, account); err != nil {
		return 0, err
	}

	for i := 0; i < removed; i++ {
		e.metricInc(MetricSessionTerminated)
	}
	e.emitAudit(ctx, auditEventSessionsCleared, true, accountID, currentSessionID, nil, func() map[string]string {
		return map[string]string{"removed": strconv.Itoa(removed)}
	})
	return removed, nil
}
