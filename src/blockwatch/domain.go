// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package blockwatch

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// maxDomainLength is the longest accepted domain name.
const maxDomainLength = 255

// IsValidDomain reports whether domain is an acceptable, already
// normalized domain name: non-empty, at most 255 bytes, and made only of
// lowercase ASCII letters, digits, dots, and hyphens.
func IsValidDomain(domain string) bool {
	if domain == "" || len(domain) > maxDomainLength {
		return false
	}

	for _, c := range domain {
		switch {
		case c >= 'a' && c <= 'z':
			// ok
		case c >= '0' && c <= '9':
			// ok
		case c == '.' || c == '-':
			// ok
		default:
			return false
		}
	}

	return true
}

// NormalizeDomain converts user input such as "HTTPS://Example.COM/path"
// into the bare domain "example.com" and validates it.
//
// Internationalized names are converted to their ASCII form. The returned
// error wraps [ErrInvalidDomain] when the result is not a valid domain.
func NormalizeDomain(raw string) (string, error) {
	domain := strings.ToLower(strings.TrimSpace(raw))

	// Strip the scheme prefix, if any.
	if i := strings.Index(domain, "://"); i >= 0 {
		domain = domain[i+len("://"):]
	}

	// Drop any path, query, or fragment.
	if i := strings.IndexAny(domain, "/?#"); i >= 0 {
		domain = domain[:i]
	}

	domain = strings.TrimSpace(domain)

	if !isASCII(domain) {
		ascii, err := idna.Lookup.ToASCII(domain)
		if err != nil {
			return domain, fmt.Errorf("%w: %q: %v", ErrInvalidDomain, raw, err)
		}
		domain = ascii
	}

	if !IsValidDomain(domain) {
		return domain, fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}

	return domain, nil
}

// isASCII reports whether s contains only ASCII characters.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
