package proxyserver

import (
	"net/url"
	"strings"

	"github.com/mnemohq/mnemo/pkg/mnemo"
)

// UpstreamTarget is the resolved destination of a /p/{rest...} request.
type UpstreamTarget struct {
	URL *url.URL
}

// TargetFromPath implements UpstreamTarget::from_path: strip the /p/ prefix, percent-decode, normalize a single-slash
// scheme, parse, validate scheme/host, and merge the incoming query
// string.
func TargetFromPath(rawPath, rawQuery string, allowedHosts []string) (*UpstreamTarget, error) {
	rest := strings.TrimPrefix(rawPath, "/p/")
	decoded, err := url.PathUnescape(rest)
	if err != nil {
		return nil, mnemo.Newf(mnemo.KindConfig, "invalid_url")
	}
	decoded = normalizeScheme(decoded)
	if decoded == "" {
		return nil, mnemo.Newf(mnemo.KindConfig, "invalid_url")
	}

	target, err := url.Parse(decoded)
	if err != nil {
		return nil, mnemo.Newf(mnemo.KindConfig, "invalid_url")
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, mnemo.Newf(mnemo.KindConfig, "invalid_url")
	}
	target.Fragment = ""
	target.User = nil // stripped; caller may log a warning if userinfo was present

	if rawQuery != "" && target.RawQuery == "" {
		target.RawQuery = rawQuery
	}

	if !hostAllowed(target.Hostname(), allowedHosts) {
		return nil, mnemo.Newf(mnemo.KindForbidden, "host_not_allowed")
	}

	return &UpstreamTarget{URL: target}, nil
}

// normalizeScheme repairs a URL that arrived with a single slash after
// the scheme (https:/host -> https://host), which path normalization
// upstream of the router produces for //-containing paths.
func normalizeScheme(s string) string {
	for _, scheme := range []string{"https:/", "http:/"} {
		if strings.HasPrefix(s, scheme) && !strings.HasPrefix(s, scheme+"/") {
			return scheme + "/" + strings.TrimPrefix(s, scheme)
		}
	}
	return s
}

// hostAllowed checks host against the allowlist: an empty list or a
// bare "*" entry allows all, a plain entry matches exactly, and
// "*.suffix" matches suffix itself plus any host ending in ".suffix".
// Case-insensitive.
func hostAllowed(host string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "*" {
			return true
		}
		if strings.HasPrefix(entry, "*.") {
			suffix := entry[1:] // ".suffix"
			if host == entry[2:] || strings.HasSuffix(host, suffix) {
				return true
			}
			continue
		}
		if host == entry {
			return true
		}
	}
	return false
}
