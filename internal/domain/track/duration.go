package track

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrUnparseable is returned when a duration string matches neither grammar.
var ErrUnparseable = errors.New("unparseable duration")

// maxComponentDigits bounds each numeric field so the sum stays within time.Duration.
const maxComponentDigits = 6

// compactPattern matches "PT1H2M3S", "1H2M3S", "PT4M" and similar.
// Every component is optional but at least one must be present.
var compactPattern = regexp.MustCompile(`^(?i:P(?:\d{1,4}D)?T)?(?:(\d{1,6})H)?(?:(\d{1,6})M)?(?:(\d{1,6})S)?$`)

// ParseDuration converts a provider duration string into a duration.
// Accepted forms are the letter-tagged compact form ("PT1H2M3S", "2H3M4S")
// and the clock form ("M:SS", "H:MM:SS").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrUnparseable
	}

	if strings.Contains(s, ":") {
		return parseClock(s)
	}
	return parseCompact(s)
}

func parseCompact(s string) (time.Duration, error) {
	upper := strings.ToUpper(s)
	m := compactPattern.FindStringSubmatch(upper)
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return 0, errors.Wrapf(ErrUnparseable, "%q", s)
	}

	// Day designator ("P1DT2H") is folded into hours.
	var days int
	if i := strings.Index(upper, "D"); i > 1 && strings.HasPrefix(upper, "P") {
		days, _ = strconv.Atoi(upper[1:i])
	}

	total := time.Duration(days) * 24 * time.Hour
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, errors.Wrapf(ErrUnparseable, "%q", s)
		}
		total += time.Duration(n) * unit
	}
	return total, nil
}

func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, errors.Wrapf(ErrUnparseable, "%q", s)
	}

	values := make([]int, len(parts))
	for i, p := range parts {
		if !isDigits(p) {
			return 0, errors.Wrapf(ErrUnparseable, "%q", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, errors.Wrapf(ErrUnparseable, "%q", s)
		}
		// only the leading field may reach 60
		if i > 0 && n >= 60 {
			return 0, errors.Wrapf(ErrUnparseable, "%q", s)
		}
		values[i] = n
	}

	var h, m, sec int
	if len(values) == 3 {
		h, m, sec = values[0], values[1], values[2]
	} else {
		m, sec = values[0], values[1]
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// isDigits reports whether s is a non-empty run of at most maxComponentDigits ASCII digits.
func isDigits(s string) bool {
	if s == "" || len(s) > maxComponentDigits {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatDuration renders a duration as "M:SS" or "H:MM:SS".
// Unknown (zero) durations render as "?".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "?"
	}
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
