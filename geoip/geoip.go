// Package geoip defines the location model and resolver contract used by the
// engine's geographic login restriction, plus two ready-made resolvers: an
// HTTP client for a JSON lookup service and a static map for tests.
package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Location is the coarse result of an IP lookup. Country is an ISO 3166-1
// alpha-2 code; Region and City are informational only and may be empty.
type Location struct {
	Country string `json:"country" bson:"country"`
	Region  string `json:"region,omitempty" bson:"region,omitempty"`
	City    string `json:"city,omitempty" bson:"city,omitempty"`
}

// IsZero reports whether the location carries no data.
func (l Location) IsZero() bool {
	return l.Country == "" && l.Region == "" && l.City == ""
}

// Resolver maps an IP address to a coarse location. Implementations must
// honor ctx cancellation; the engine calls Resolve with a bounded deadline.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (Location, error)
}

// ErrLookupFailed wraps any transport or decode failure from HTTPResolver.
var ErrLookupFailed = errors.New("geoip lookup failed")

// HTTPResolver queries a JSON lookup service at <BaseURL>/<ip>. The service
// is expected to answer with {"country":"US","region":"...","city":"..."}.
type HTTPResolver struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPResolver creates a resolver for the given base URL. The client
// timeout is a hard cap; callers still pass a per-request ctx deadline.
func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	return &HTTPResolver{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

// Resolve performs the lookup.
func (r *HTTPResolver) Resolve(ctx context.Context, ip string) (Location, error) {
	if r == nil || r.BaseURL == "" {
		return Location{}, fmt.Errorf("%w: resolver not configured", ErrLookupFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/"+url.PathEscape(ip), nil)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var loc Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	loc.Country = strings.ToUpper(strings.TrimSpace(loc.Country))
	return loc, nil
}

// Static resolves from a fixed map. Unknown IPs return Err when set,
// otherwise an empty location with no error.
type Static struct {
	Locations map[string]Location
	Err       error
}

// Resolve looks the IP up in the map.
func (s *Static) Resolve(_ context.Context, ip string) (Location, error) {
	if s == nil {
		return Location{}, nil
	}
	if loc, ok := s.Locations[ip]; ok {
		return loc, nil
	}
	if s.Err != nil {
		return Location{}, s.Err
	}
	return Location{}, nil
}
