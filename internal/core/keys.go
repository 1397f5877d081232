package core

import (
	"math"
	"net/netip"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail folds an address into the form used as a cooldown key so
// that case and unicode variants of one address share a window.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	// Casers keep state and must not be shared between goroutines
	return cases.Fold().String(norm.NFKC.String(email))
}

// NormalizeIP returns the canonical text form of an address or "" when it does
// not parse.
func NormalizeIP(ip string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return ""
	}
	return addr.Unmap().WithZone("").String()
}

// ParseElapsed reads the client timing signal. Anything other than a finite,
// non-negative number is treated as absent.
func ParseElapsed(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil
	}
	return &v
}

// LockKeys returns the exclusive keys an atomic submission must hold
func LockKeys(email, ip string) []string {
	keys := make([]string, 0, 2)
	if email != "" {
		keys = append(keys, "email:"+email)
	}
	if ip != "" {
		keys = append(keys, "ip:"+ip)
	}
	return keys
}
