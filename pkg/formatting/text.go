package formatting

import "unicode/utf8"

// Truncate shortens s to at most max bytes without splitting a UTF-8 sequence.
// The second return value reports whether any content was removed.
func Truncate(s string, max int64) (string, bool) {
	if max < 0 || int64(len(s)) <= max {
		return s, false
	}

	cut := int(max)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut], true
}
