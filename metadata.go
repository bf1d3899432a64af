package auth

import (
	"context"
	"strings"
)

// ConnectionInfo is the connection metadata captured at login and refresh.
// It annotates the durable SessionRecord for display and audit; nothing
// in it ever gates authorization.
type ConnectionInfo struct {
	IP            string `json:"ip,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	DeviceSummary string `json:"device_summary,omitempty"`
	GeoCity       string `json:"geo_city,omitempty"`
	GeoCountry    string `json:"geo_country,omitempty"`
}

// GeoLocation is the display-only result of an IP lookup.
type GeoLocation struct {
	City    string
	Country string
}

// GeoLookup resolves an IP address to a coarse location. Failures are
// tolerated; sessions are recorded without geo data.
type GeoLookup interface {
	Locate(ctx context.Context, ip string) (GeoLocation, error)
}

// GeoLookupFunc adapts a function to the GeoLookup interface.
type GeoLookupFunc func(ctx context.Context, ip string) (GeoLocation, error)

func (f GeoLookupFunc) Locate(ctx context.Context, ip string) (GeoLocation, error) {
	if f == nil {
		return GeoLocation{}, nil
	}
	return f(ctx, ip)
}

type noopGeoLookup struct{}

func (noopGeoLookup) Locate(context.Context, string) (GeoLocation, error) {
	return GeoLocation{}, nil
}

func normalizeGeoLookup(g GeoLookup) GeoLookup {
	if g == nil {
		return noopGeoLookup{}
	}
	return g
}

// summarizeDevice derives a short display label from a user-agent string.
// Coarse on purpose; the raw user agent is stored alongside it.
func summarizeDevice(userAgent string) string {
	if userAgent == "" {
		return ""
	}

	ua := strings.ToLower(userAgent)

	form := "desktop"
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		form = "tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		form = "mobile"
	}

	browser := ""
	switch {
	case strings.Contains(ua, "edg/"):
		browser = "edge"
	case strings.Contains(ua, "firefox/"):
		browser = "firefox"
	case strings.Contains(ua, "chrome/"):
		browser = "chrome"
	case strings.Contains(ua, "safari/"):
		browser = "safari"
	case strings.Contains(ua, "curl/"):
		browser = "curl"
	}

	if browser == "" {
		return form
	}
	return form + "/" + browser
}
