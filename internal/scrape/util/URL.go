package util

import (
	"net/url"
	"sort"
	"strings"
)

// EnsureScheme prefixes https:// when raw has no scheme.
func EnsureScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if !strings.Contains(raw, "://") {
		return "https://" + raw
	}
	return raw
}

// CanonicalWebsite produces the form leads are deduplicated on:
// lowercased scheme and host, no fragment, no tracking params, no
// trailing slash on the bare root.
func CanonicalWebsite(raw string) string {
	raw = EnsureScheme(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") ||
			lk == "gclid" || lk == "fbclid" || lk == "yclid" ||
			lk == "msclkid" || lk == "_openstat" {
			q.Del(k)
		}
	}
	// deterministic query
	for k := range q {
		vals := q[k]
		sort.Strings(vals)
		q[k] = vals
	}
	u.RawQuery = q.Encode()
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String()
}

// Hostname returns the lowercased host of raw without port or a leading www.
func Hostname(raw string) string {
	u, err := url.Parse(EnsureScheme(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// JoinPath resolves path against base's scheme and host.
func JoinPath(base, path string) string {
	u, err := url.Parse(EnsureScheme(base))
	if err != nil || u.Host == "" {
		return ""
	}
	ref, err := url.Parse(path)
	if err != nil {
		return ""
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host}).ResolveReference(ref).String()
}
