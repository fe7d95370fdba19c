package utils

import (
	"strings"
)

// DeviceInfo is the coarse device/browser/OS triple extracted from a
// User-Agent header. Values are intentionally low-cardinality so they can be
// used as aggregation keys.
type DeviceInfo struct {
	Device  string
	Browser string
	OS      string
}

// ParseUserAgent extracts coarse device information from a User-Agent string.
// This is a heuristic classifier, not a full UA parser; unknown agents fall
// back to "desktop"/"other".
func ParseUserAgent(ua string) DeviceInfo {
	lower := strings.ToLower(ua)

	info := DeviceInfo{Device: "desktop", Browser: "other", OS: "other"}
	if lower == "" {
		info.Device = "unknown"
		return info
	}

	switch {
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		info.Device = "tablet"
	case strings.Contains(lower, "mobi") || strings.Contains(lower, "iphone") || strings.Contains(lower, "android"):
		info.Device = "mobile"
	case strings.Contains(lower, "bot") || strings.Contains(lower, "crawler") || strings.Contains(lower, "spider"):
		info.Device = "bot"
	}

	switch {
	case strings.Contains(lower, "edg/") || strings.Contains(lower, "edge"):
		info.Browser = "edge"
	case strings.Contains(lower, "firefox"):
		info.Browser = "firefox"
	case strings.Contains(lower, "chrome") || strings.Contains(lower, "crios"):
		info.Browser = "chrome"
	case strings.Contains(lower, "safari"):
		info.Browser = "safari"
	}

	switch {
	case strings.Contains(lower, "windows"):
		info.OS = "windows"
	case strings.Contains(lower, "android"):
		info.OS = "android"
	case strings.Contains(lower, "iphone") || strings.Contains(lower, "ipad") || strings.Contains(lower, "ios"):
		info.OS = "ios"
	case strings.Contains(lower, "mac os") || strings.Contains(lower, "macintosh"):
		info.OS = "macos"
	case strings.Contains(lower, "linux"):
		info.OS = "linux"
	}

	return info
}
