package convert

import (
	"net"
	"net/url"
	"strings"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

// blockedHosts are literal hosts that must never reach the extraction
// service.
var blockedHosts = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"0.0.0.0":   {},
	"::1":       {},
}

// ValidateURL checks that a conversion target is an absolute http(s) URL
// with a resolvable-looking public host. It runs before any external call.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &core.ValidationError{Field: "url", Detail: "URL is required"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, &core.ValidationError{Field: "url", Detail: "invalid URL format"}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, &core.ValidationError{Field: "url", Detail: "URL scheme must be one of: http, https"}
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, &core.ValidationError{Field: "url", Detail: "URL must have a valid hostname"}
	}

	if hostBlocked(host) {
		return nil, &core.ValidationError{Field: "url", Detail: "URL domain is not allowed"}
	}

	return u, nil
}

func hostBlocked(host string) bool {
	if _, ok := blockedHosts[host]; ok {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
	}
	return false
}
