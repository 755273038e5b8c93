package version

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var sincePattern = regexp.MustCompile(`^(\d+(?:\.\d*)?|\.\d+)\s*([smhdw]?)$`)

var sinceUnits = map[string]float64{
	"s": 1,
	"m": 60,
	"h": 3600,
	"":  3600,
	"d": 86400,
	"w": 7 * 86400,
}

// maxSinceSeconds is the longest window a time.Duration can hold.
const maxSinceSeconds = float64(math.MaxInt64 / int64(time.Second))

// ParseSince parses a look-back window such as "24h", "0.5h", "3d" or "2w".
// A bare number is taken as hours. The result is rounded to whole seconds.
//
// Example:
//
//	ParseSince("3")     // 3h
//	ParseSince("0.01d") // 864s
func ParseSince(s string) (time.Duration, error) {
	m := sincePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("%w: %q (want <number>[s|m|h|d|w])", ErrInvalidSince, s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidSince, s, err)
	}

	seconds := math.Round(value * sinceUnits[m[2]])
	if seconds > maxSinceSeconds {
		return 0, fmt.Errorf("%w: %q exceeds %s", ErrInvalidSince, s, time.Duration(math.MaxInt64))
	}
	return time.Duration(seconds) * time.Second, nil
}
