// Package secguard is the account security engine of the finboard
// merchant dashboard. It owns credential verification, failed-login
// lockout, per-account access restrictions (address, time window,
// country), an authenticator second factor with single-use backup codes,
// session and device tracking, and the per-account activity log.
//
// The engine is embedded into the host application; it issues and
// validates the dashboard's bearer tokens but does not serve HTTP itself.
// Construction goes through the builder:
//
//	eng, err := secguard.New().
//		WithConfig(cfg).
//		WithRepository(repo).
//		Build()
//
// Persistence is abstracted behind [AccountRepository]; acctstore ships a
// MongoDB implementation and an in-memory one for tests. A redis client
// is optional and enables the brute-force attempt throttles.
package secguard
