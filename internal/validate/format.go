package validate

import "strings"

// AllowedFormats lists the image extensions the bot will publish
var AllowedFormats = []string{"jpg", "jpeg", "png", "gif", "bmp"}

// IsAllowedFormat reports whether the text after the last "." of rawURL is an
// allowed image extension. Matching ignores case. A URL without a "." is
// compared as a whole.
func IsAllowedFormat(rawURL string) bool {
	ext := rawURL
	if idx := strings.LastIndex(rawURL, "."); idx >= 0 {
		ext = rawURL[idx+1:]
	}

	for _, allowed := range AllowedFormats {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}
