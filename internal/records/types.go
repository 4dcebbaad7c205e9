package records

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Sex is the normalized sex code.
type Sex string

const (
	SexMale    Sex = "M"
	SexFemale  Sex = "F"
	SexUnknown Sex = "Unknown"
)

// NormalizeSex maps free text to M, F or Unknown, ignoring case and surrounding space.
func NormalizeSex(raw string) Sex {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "M", "MALE":
		return SexMale
	case "F", "FEMALE":
		return SexFemale
	default:
		return SexUnknown
	}
}

// Outcome is the normalized admission outcome. Values other than Alive and Dead
// are the title-cased source text.
type Outcome string

const (
	OutcomeAlive   Outcome = "Alive"
	OutcomeDead    Outcome = "Dead"
	OutcomeUnknown Outcome = "Unknown"
)

// NormalizeOutcome maps free text to Dead or Alive when it contains "dead" or
// "alive", or when its first word is the one-letter code "d" or "a". Anything
// else is title-cased and passed through, so "deceased" stays "Deceased".
func NormalizeOutcome(raw string) Outcome {
	x := strings.ToLower(strings.TrimSpace(raw))
	code := leadingCode(x)
	switch {
	case x == "":
		return OutcomeUnknown
	case strings.Contains(x, "dead") || code == "d":
		return OutcomeDead
	case strings.Contains(x, "alive") || code == "a":
		return OutcomeAlive
	default:
		// Casers are stateful, so one is built per call.
		return Outcome(cases.Title(language.Und).String(x))
	}
}

// leadingCode returns the leading run of letters in s.
func leadingCode(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		return s
	}
	return s[:end]
}

// ErrInvalidMonth is returned when a month label cannot be parsed.
var ErrInvalidMonth = errors.New("invalid month")

// Month is a calendar-month bucket. The zero value means unknown.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the bucket containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth accepts "YYYY-MM" labels (and full dates, truncated to their month).
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01", "2006/01", "2006-01-02", "Jan 2006", "January 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), nil
		}
	}
	return Month{}, fmt.Errorf("%w: %q (want YYYY-MM)", ErrInvalidMonth, s)
}

// IsZero reports whether the month is unknown.
func (m Month) IsZero() bool { return m.Year == 0 && m.Month == 0 }

// Before orders months chronologically.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m Month) String() string {
	if m.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// MarshalText encodes the month as its "YYYY-MM" label.
func (m Month) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText parses a "YYYY-MM" label; an empty label is the zero month.
func (m *Month) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*m = Month{}
		return nil
	}
	v, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// MarshalYAML renders the month label in YAML reports.
func (m Month) MarshalYAML() (interface{}, error) { return m.String(), nil }
