package bundle

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"
)

// Cookie is one entry of a cookie bundle, in the shape browser cookie
// export extensions produce.
type Cookie struct {
	Name           string   `json:"name"`
	Value          string   `json:"value"`
	Domain         string   `json:"domain"`
	Path           string   `json:"path"`
	Secure         bool     `json:"secure"`
	HTTPOnly       bool     `json:"httpOnly"`
	SameSite       string   `json:"sameSite,omitempty"`
	ExpirationDate *float64 `json:"expirationDate,omitempty"`
}

// Expires converts ExpirationDate (unix seconds, possibly fractional).
// Session cookies return nil.
func (c Cookie) Expires() *time.Time {
	if c.ExpirationDate == nil || *c.ExpirationDate <= 0 {
		return nil
	}
	sec, frac := math.Modf(*c.ExpirationDate)
	t := time.Unix(int64(sec), int64(frac*1e9)).UTC()
	return &t
}

type payload struct {
	Cookies []Cookie `json:"cookies"`
}

// Parse decodes a bundle. Both a bare array and {"cookies": [...]} are accepted.
// Nothing beyond JSON well-formedness is checked.
func Parse(raw string) ([]Cookie, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("bundle: empty cookie bundle")
	}
	if strings.HasPrefix(raw, "{") {
		var p payload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, err
		}
		return p.Cookies, nil
	}
	var arr []Cookie
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return nil, err
	}
	return arr, nil
}

// DomainMatches reports whether host is domain or one of its subdomains.
// Leading dots, as browsers export them, are ignored.
func DomainMatches(host, domain string) bool {
	host = strings.ToLower(strings.Trim(host, "."))
	domain = strings.ToLower(strings.Trim(domain, "."))
	if domain == "" || host == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
