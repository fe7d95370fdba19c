package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
)

// HashIP returns a privacy-preserving fingerprint of a viewer IP address.
// The raw IP is never stored; only this hash is. IPv6 addresses are
// normalized to their canonical textual form before hashing so the same
// viewer maps to the same fingerprint across requests.
func HashIP(ip string) string {
	normalized := strings.TrimSpace(ip)
	if parsed := net.ParseIP(normalized); parsed != nil {
		normalized = parsed.String()
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// NormalizeEmail lowercases and trims an optional viewer email for
// uniqueness comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
