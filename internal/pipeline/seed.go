package pipeline

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// seedPattern accepts an optional scheme, a dotted host and an optional
// port, path, query or fragment.
var seedPattern = regexp.MustCompile(`^(?i)(https?://)?([a-z0-9]([a-z0-9-]*[a-z0-9])?\.)+[a-z][a-z0-9-]*[a-z0-9](:\d{1,5})?([/?#]\S*)?$`)

// NormalizeSeed validates raw and returns it as an absolute URL. A missing
// scheme becomes https. localhost and IP literals are accepted as hosts.
func NormalizeSeed(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: missing seed URL", ErrInvalidSeed)
	}

	candidate := raw
	if !strings.Contains(raw, "://") {
		candidate = "https://" + raw
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidSeed, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q: scheme must be http or https", ErrInvalidSeed, raw)
	}

	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: %q: missing host", ErrInvalidSeed, raw)
	}
	if !seedPattern.MatchString(raw) && host != "localhost" && net.ParseIP(host) == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeed, raw)
	}

	return u.String(), nil
}
