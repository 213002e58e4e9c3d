// Package limiters implements redis-backed attempt throttles. These run
// in front of the heavier per-account checks and protect endpoints that
// are cheap to call but expensive to brute-force: login, TOTP codes, and
// backup code redemption.
package limiters
