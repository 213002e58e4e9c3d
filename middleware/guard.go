package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/finboard/secguard"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the validated claims Guard stored on the
// request context.
func ClaimsFromContext(ctx context.Context) (*secguard.TokenClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*secguard.TokenClaims)
	return claims, ok
}

// Guard rejects requests without a valid session token. Validated claims,
// the client IP, and the user agent travel on the request context so
// downstream Engine calls attribute activity correctly.
func Guard(engine *secguard.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := WithRequestInfo(r.Context(), r)
			claims, err := engine.ValidateToken(ctx, token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithRequestInfo copies the client IP and user agent from the request
// onto the context. Useful for unauthenticated endpoints (login, 2FA)
// that still feed the activity log.
func WithRequestInfo(ctx context.Context, r *http.Request) context.Context {
	ctx = secguard.WithClientIP(ctx, clientIP(r))
	return secguard.WithUserAgent(ctx, r.UserAgent())
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}
