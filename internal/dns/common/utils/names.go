// Package utils holds small helpers shared across the DNS packages.
package utils

import "strings"

// CanonicalDNSName returns name lowercased, trimmed of surrounding whitespace
// and without trailing dots. The root name canonicalises to "".
func CanonicalDNSName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimRight(name, ".")
}

// SameDNSName reports whether a and b name the same node. DNS names compare
// case-insensitively and a trailing dot is not significant.
func SameDNSName(a, b string) bool {
	return CanonicalDNSName(a) == CanonicalDNSName(b)
}
