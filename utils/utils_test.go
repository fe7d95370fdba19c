package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHashIP(t *testing.T) {
	h1 := HashIP("203.0.113.7")
	h2 := HashIP("203.0.113.7")
	assert.Equal(t, h1, h2, "same IP must produce the same fingerprint")
	assert.Len(t, h1, 64)

	assert.NotEqual(t, HashIP("203.0.113.7"), HashIP("203.0.113.8"))

	// whitespace and IPv6 textual variants normalize to the same hash
	assert.Equal(t, HashIP("203.0.113.7"), HashIP("  203.0.113.7 "))
	assert.Equal(t, HashIP("2001:db8::1"), HashIP("2001:0db8:0000:0000:0000:0000:0000:0001"))
	assert.Equal(t, HashIP("2001:DB8::1"), HashIP("2001:db8::1"))
}

func TestHashIPUnparseable(t *testing.T) {
	// garbage input still hashes deterministically instead of failing
	assert.Equal(t, HashIP("not-an-ip"), HashIP("not-an-ip"))
	assert.NotEmpty(t, HashIP(""))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
	assert.Equal(t, "bob@example.com", NormalizeEmail("bob@example.com"))
}

func TestParseUserAgent(t *testing.T) {
	cases := []struct {
		name string
		ua   string
		want DeviceInfo
	}{
		{
			name: "empty",
			ua:   "",
			want: DeviceInfo{Device: "unknown", Browser: "other", OS: "other"},
		},
		{
			name: "chrome on windows",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			want: DeviceInfo{Device: "desktop", Browser: "chrome", OS: "windows"},
		},
		{
			name: "safari on iphone",
			ua:   "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
			want: DeviceInfo{Device: "mobile", Browser: "safari", OS: "ios"},
		},
		{
			name: "chrome on android",
			ua:   "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
			want: DeviceInfo{Device: "mobile", Browser: "chrome", OS: "android"},
		},
		{
			name: "ipad",
			ua:   "Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
			want: DeviceInfo{Device: "tablet", Browser: "safari", OS: "ios"},
		},
		{
			name: "googlebot",
			ua:   "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			want: DeviceInfo{Device: "bot", Browser: "other", OS: "other"},
		},
		{
			name: "firefox on linux",
			ua:   "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
			want: DeviceInfo{Device: "desktop", Browser: "firefox", OS: "linux"},
		},
		{
			name: "edge on macos",
			ua:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
			want: DeviceInfo{Device: "desktop", Browser: "edge", OS: "macos"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseUserAgent(tc.ua))
		})
	}
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	ts := time.Date(2025, 6, 15, 1, 30, 0, 0, loc) // 2025-06-14 22:30 UTC

	start := DayStart(ts)
	assert.Equal(t, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), DayEnd(ts))
	assert.Equal(t, "2025-06-14", DateString(ts))
}

func TestSummaryCutoff(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), SummaryCutoff(now))

	// calendar months, not 26 flat 30-day blocks
	flat := now.Add(-26 * 30 * 24 * time.Hour)
	assert.True(t, SummaryCutoff(now).Before(flat))
}

func TestIsExpired(t *testing.T) {
	past := UTCNowAdd(-time.Minute)
	future := UTCNowAdd(time.Minute)

	assert.True(t, IsExpired(past))
	assert.False(t, IsExpired(future))
	assert.False(t, IsExpiredPtr(nil))
	assert.True(t, IsExpiredPtr(&past))
	assert.False(t, IsExpiredPtr(&future))
}

func TestPtrHelpers(t *testing.T) {
	p := ToPtr(42)
	assert.Equal(t, 42, *p)

	assert.False(t, IsTrue(nil))
	assert.True(t, IsTrue(ToPtr(true)))
	assert.False(t, IsTrue(ToPtr(false)))

	assert.Equal(t, 7, ValueOr[int](nil, 7))
	assert.Equal(t, 3, ValueOr(ToPtr(3), 7))
}
