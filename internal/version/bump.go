// Package version computes successor version strings for the bundle
// manifest. Both functions are pure and never fail: malformed input falls
// back to appending a ".1" suffix.
package version

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	numericPattern = regexp.MustCompile(`^\d+(\.\d+)*$`)
	trailingDigits = regexp.MustCompile(`^(.*?)(\d+)$`)
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// BumpSemver returns the next application version for current.
//
// Purely numeric dotted versions increment their last component. Strings
// ending in digits increment the trailing run. Anything else gains a ".1"
// suffix, and empty input starts the sequence at "1.0.0".
func BumpSemver(current string) string {
	s := strings.TrimSpace(current)
	if s == "" {
		return "1.0.0"
	}
	if numericPattern.MatchString(s) {
		parts := strings.Split(s, ".")
		last, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			// Component exceeds int range; treat like arbitrary text.
			return s + ".1"
		}
		parts[len(parts)-1] = strconv.Itoa(last + 1)
		return strings.Join(parts, ".")
	}
	if m := trailingDigits.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return s + ".1"
		}
		return m[1] + strconv.Itoa(n+1)
	}
	return s + ".1"
}

// BumpModelVersion returns the next model version for current.
//
// Date-prefixed versions (YYYY-MM-DD plus optional suffix) are rewritten to
// today's date with the suffix carried over unchanged. Everything else is
// bumped like an application version.
func BumpModelVersion(current string, today time.Time) string {
	if IsDatePrefixed(current) {
		suffix := ""
		if len(current) > 10 {
			suffix = current[10:]
		}
		return today.Format("2006-01-02") + suffix
	}
	return BumpSemver(current)
}

// IsDatePrefixed reports whether s starts with an ISO date.
func IsDatePrefixed(s string) bool {
	return isoDatePattern.MatchString(s)
}
