package sweep

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSizeKB converts a simulator size string into kilobytes. "64kB" gives
// 64, "1MB" gives 1024 and "1GB" gives 1048576. A bare number is taken as
// kilobytes. Fractional megabytes are allowed as long as they resolve to a
// whole number of kilobytes.
func ParseSizeKB(s string) (int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty cache size")
	}

	number, unit := splitUnit(trimmed)

	var multiplier float64
	switch strings.ToUpper(unit) {
	case "", "KB", "K":
		multiplier = 1
	case "MB", "M":
		multiplier = 1024
	case "GB", "G":
		multiplier = 1024 * 1024
	default:
		return 0, fmt.Errorf("cache size %q has unknown unit %q", s, unit)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("cache size %q is not a positive number", s)
	}

	kb := value * multiplier
	if kb != float64(int(kb)) {
		return 0, fmt.Errorf("cache size %q is not a whole number of kB", s)
	}

	return int(kb), nil
}

func splitUnit(s string) (number, unit string) {
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if (c >= '0' && c <= '9') || c == '.' {
			break
		}
		i--
	}

	return strings.TrimSpace(s[:i]), s[i:]
}

// MustParseSizeKB is ParseSizeKB for sizes already validated.
func MustParseSizeKB(s string) int {
	kb, err := ParseSizeKB(s)
	if err != nil {
		panic(err)
	}

	return kb
}

// FormatSizeKB renders a kilobyte count the way the simulator expects it.
func FormatSizeKB(kb int) string {
	return strconv.Itoa(kb) + "kB"
}
