package realtime

import (
	"errors"
	"fmt"
	"strings"

	"sparkclean/internal/models"
)

var ErrInvalidFilter = errors.New("invalid filter")

// Filter restricts a subscription to rows where Column equals Value. The zero
// Filter matches every row.
type Filter struct {
	Column string
	Value  string
}

// ParseFilter parses the "column=eq.value" form used by realtime channels.
func ParseFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Filter{}, nil
	}
	column, rest, ok := strings.Cut(s, "=")
	if !ok {
		return Filter{}, fmt.Errorf("%w: %q", ErrInvalidFilter, s)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok || column == "" || value == "" {
		return Filter{}, fmt.Errorf("%w: %q (only column=eq.value is supported)", ErrInvalidFilter, s)
	}
	return Filter{Column: column, Value: value}, nil
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: fmt.Sprint(value)}
}

func (f Filter) IsZero() bool { return f.Column == "" }

func (f Filter) String() string {
	if f.IsZero() {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// Match reports whether the change concerns a row selected by the filter.
func (f Filter) Match(ch models.Change) bool {
	if f.IsZero() {
		return true
	}
	v, ok := ch.Column(f.Column)
	return ok && v == f.Value
}
