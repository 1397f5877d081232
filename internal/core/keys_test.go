package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
	assert.Equal(t, "strasse@example.com", NormalizeEmail("STRASSE@example.com"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestNormalizeIP(t *testing.T) {
	tests := map[string]string{
		"1.2.3.4":         "1.2.3.4",
		" 1.2.3.4 ":       "1.2.3.4",
		"::ffff:1.2.3.4":  "1.2.3.4",
		"2001:DB8::1":     "2001:db8::1",
		"fe80::1%eth0":    "fe80::1",
		"":                "",
		"unknown":         "",
		"1.2.3.4:8080":    "",
		"999.999.999.999": "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeIP(in), "input %q", in)
	}
}

func TestParseElapsed(t *testing.T) {
	v := ParseElapsed("4.5")
	require.NotNil(t, v)
	assert.Equal(t, 4.5, *v)

	v = ParseElapsed(" 0 ")
	require.NotNil(t, v)
	assert.Zero(t, *v)

	for _, raw := range []string{"", "abc", "-1", "NaN", "Inf", "null", "1e999"} {
		assert.Nil(t, ParseElapsed(raw), "input %q", raw)
	}
}

func TestLockKeys(t *testing.T) {
	assert.Equal(t, []string{"email:a@x.com", "ip:1.1.1.1"}, LockKeys("a@x.com", "1.1.1.1"))
	assert.Equal(t, []string{"email:a@x.com"}, LockKeys("a@x.com", ""))
	assert.Empty(t, LockKeys("", ""))
}

func TestCeilSeconds(t *testing.T) {
	assert.Equal(t, 0, CeilSeconds(0))
	assert.Equal(t, 0, CeilSeconds(-time.Second))
	assert.Equal(t, 1, CeilSeconds(time.Millisecond))
	assert.Equal(t, 2, CeilSeconds(1200*time.Millisecond))
	assert.Equal(t, 60, CeilSeconds(time.Minute))
}

func TestWindowLeft(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	window := 2 * time.Minute

	assert.Equal(t, window, windowLeft(now, window, now))
	assert.Equal(t, window, windowLeft(now.Add(time.Minute), window, now), "future records count as brand new")
	assert.Equal(t, time.Minute, windowLeft(now.Add(-time.Minute), window, now))
	assert.Equal(t, time.Microsecond, windowLeft(now.Add(-window+time.Microsecond), window, now))
	assert.Zero(t, windowLeft(now.Add(-window), window, now))
	assert.Zero(t, windowLeft(now.Add(-time.Hour), window, now))
}
