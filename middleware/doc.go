// Package middleware exposes HTTP middleware built on top of
// secguard.Engine token validation.
//
// [Guard] reads the Authorization bearer token, validates it through
// Engine.ValidateToken, and injects the claims plus the caller's IP and
// user agent into the request context. Handlers read the claims back
// with [ClaimsFromContext].
//
// This package translates HTTP semantics into Engine calls; every
// authentication decision is the Engine's.
package middleware
