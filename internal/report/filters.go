package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/model"
)

// ErrorKind tags an invalid report request.
type ErrorKind string

// Report error kinds.
const (
	InvalidRange    ErrorKind = "invalid_range"
	InvalidTimezone ErrorKind = "invalid_timezone"
)

func (k ErrorKind) String() string { return string(k) }

// Error is a report-scoped failure. It is fatal for that report only.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Detail
}

// Is matches the sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Detail == ""
}

// FetchError converts e for output alongside provider failures.
func (e *Error) FetchError(provider string) *model.FetchError {
	return &model.FetchError{Kind: model.FetchErrorKind(e.Kind), Provider: provider, Message: e.Detail, Err: e}
}

// Sentinels for errors.Is.
var (
	ErrInvalidRange    = &Error{Kind: InvalidRange}
	ErrInvalidTimezone = &Error{Kind: InvalidTimezone}
)

// Filters is a validated date range and timezone. Since and Until are
// YYYY-MM-DD local dates, or empty for an open end.
type Filters struct {
	Since    string
	Until    string
	Location *time.Location
}

var dateLayouts = []string{time.DateOnly, "20060102"}

// ValidateFilters parses the --since/--until/--timezone flags. Dates may be
// YYYYMMDD or YYYY-MM-DD. An empty tz means $TZ, then UTC.
func ValidateFilters(since, until, tz string) (Filters, error) {
	loc, err := location(tz)
	if err != nil {
		return Filters{}, err
	}
	f := Filters{Location: loc}

	if f.Since, err = parseDate("since", since); err != nil {
		return Filters{}, err
	}
	if f.Until, err = parseDate("until", until); err != nil {
		return Filters{}, err
	}
	if f.Since != "" && f.Until != "" && f.Since > f.Until {
		return Filters{}, &Error{Kind: InvalidRange, Detail: fmt.Sprintf("since %s is after until %s", f.Since, f.Until)}
	}
	return f, nil
}

// Contains reports whether local date day (YYYY-MM-DD) is inside the range.
func (f Filters) Contains(day string) bool {
	if f.Since != "" && day < f.Since {
		return false
	}
	if f.Until != "" && day > f.Until {
		return false
	}
	return true
}

func parseDate(flag, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, layout := range dateLayouts {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly), nil
		}
	}
	return "", &Error{Kind: InvalidRange, Detail: fmt.Sprintf("%s %q is not a date (want YYYYMMDD or YYYY-MM-DD)", flag, s)}
}

func location(tz string) (*time.Location, error) {
	name := strings.TrimSpace(tz)
	if name == "" {
		env := strings.TrimSpace(os.Getenv("TZ"))
		switch {
		case env == "":
			return time.UTC, nil
		case strings.HasPrefix(env, ":"):
			// TZ=:/etc/localtime style; the runtime already applied it.
			return time.Local, nil
		}
		name = env
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &Error{Kind: InvalidTimezone, Detail: fmt.Sprintf("unknown timezone %q", name)}
	}
	return loc, nil
}
