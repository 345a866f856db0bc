// Package formatting parses and prints the byte sizes used in Lectern
// configuration and bounds text handed to the transformation engines.
package formatting

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// sizeUnits are base-1024 multipliers. "KiB" style suffixes are accepted as
// aliases on input.
var sizeUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatBytes renders n with the largest unit that keeps the value at or
// above one, e.g. FormatBytes(1536*1024, 1) is "1.5 MB". Negative precision
// is treated as zero.
func FormatBytes(n int64, precision int) string {
	precision = max(precision, 0)

	value := float64(n)
	i := 0
	for math.Abs(value) >= 1024 && i < len(sizeUnits)-1 {
		value /= 1024
		i++
	}

	if i == 0 {
		return strconv.FormatInt(n, 10) + " B"
	}
	return strconv.FormatFloat(value, 'f', precision, 64) + " " + sizeUnits[i]
}

// ParseBytes reads sizes such as "50MB", "1.5 GB", "10mib" or a bare byte
// count. Units are case-insensitive and base-1024.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	number, unit := s, ""
	if split >= 0 {
		number, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if number == "" {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	exp := 0
	if unit != "" {
		unit = strings.Replace(strings.ToUpper(unit), "I", "", 1)
		exp = slices.Index(sizeUnits, unit)
		if exp < 0 {
			return 0, fmt.Errorf("unknown byte size unit: %q", unit)
		}
	}

	bytes := value * math.Pow(1024, float64(exp))
	if bytes >= math.MaxInt64 {
		return 0, fmt.Errorf("byte size %q overflows int64", s)
	}
	return int64(bytes), nil
}
