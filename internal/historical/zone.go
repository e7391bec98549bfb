package historical

import "strings"

// ZoneOf extracts the zone code from a bin code formatted as
// 01<ZONE>-<AISLE>-<POSITION>-<SHELF>, stripping the fixed "01" prefix
// from the first segment.
func ZoneOf(binCode string) string {
	segments := strings.Split(binCode, "-")
	if len(segments) == 0 {
		return ""
	}
	first := segments[0]
	if strings.HasPrefix(first, "01") {
		return strings.TrimPrefix(first, "01")
	}
	return first
}
