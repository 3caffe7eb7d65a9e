package analytics

import "strings"

// Device buckets derived from the User-Agent header.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
	DeviceUnknown = "unknown"
)

var (
	botMarkers    = []string{"bot", "crawler", "spider", "curl", "wget"}
	tabletMarkers = []string{"ipad", "tablet", "kindle"}
	mobileMarkers = []string{"mobi", "iphone", "android", "windows phone"}
)

// DeviceFromUserAgent maps a raw User-Agent string to a coarse device
// bucket. Order matters: bots first, then tablets before phones since
// tablet agents often also carry mobile markers.
func DeviceFromUserAgent(userAgent string) string {
	normalized := strings.ToLower(strings.TrimSpace(userAgent))
	if normalized == "" {
		return DeviceUnknown
	}
	for _, marker := range botMarkers {
		if strings.Contains(normalized, marker) {
			return DeviceBot
		}
	}
	for _, marker := range tabletMarkers {
		if strings.Contains(normalized, marker) {
			return DeviceTablet
		}
	}
	for _, marker := range mobileMarkers {
		if strings.Contains(normalized, marker) {
			return DeviceMobile
		}
	}
	return DeviceDesktop
}
