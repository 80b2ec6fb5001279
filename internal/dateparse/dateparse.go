// Package dateparse normalizes heterogeneous date text from extraction
// providers into calendar dates. Records arrive with dates in whatever format
// the source document used, so parsing tries a fixed list of layouts in order
// and reports failure as a value, not an error: an unparseable date is an
// expected condition downstream analyzers score around.
package dateparse

import (
	"strings"
	"time"
)

// Normalizer parses free-text dates against an ordered layout list.
type Normalizer struct {
	layouts []string
}

// Options control layout ordering. The DD/MM vs MM/DD ambiguity cannot be
// resolved from the text itself; DayFirst decides which interpretation wins
// for inputs like "03/04/2024".
type Options struct {
	// DayFirst puts day-first layouts ahead of month-first ones.
	DayFirst bool

	// ExtraLayouts are tried before the built-in list.
	ExtraLayouts []string
}

// dayFirstLayouts and monthFirstLayouts are the two orderings of the
// ambiguous slash/dash/dot numeric forms.
var (
	dayFirstLayouts   = []string{"02/01/2006", "01/02/2006", "02-01-2006", "01-02-2006", "02.01.2006", "01.02.2006"}
	monthFirstLayouts = []string{"01/02/2006", "02/01/2006", "01-02-2006", "02-01-2006", "01.02.2006", "02.01.2006"}

	commonLayouts = []string{
		"2006-01-02",
		"2006/01/02",
		"2006.01.02",
		"20060102",
		"January 2, 2006",
		"2 January 2006",
		"Jan 2, 2006",
		"2 Jan 2006",
		"02 Jan 2006",
	}
)

// New builds a Normalizer. ISO forms are always tried first, then the
// numeric day/month forms in the configured order, then month-name forms.
func New(opts Options) *Normalizer {
	layouts := make([]string, 0, len(opts.ExtraLayouts)+len(commonLayouts)+len(dayFirstLayouts))
	layouts = append(layouts, opts.ExtraLayouts...)
	layouts = append(layouts, commonLayouts[0]) // ISO first, always
	if opts.DayFirst {
		layouts = append(layouts, dayFirstLayouts...)
	} else {
		layouts = append(layouts, monthFirstLayouts...)
	}
	layouts = append(layouts, commonLayouts[1:]...)
	return &Normalizer{layouts: layouts}
}

// Default returns a day-first normalizer, the convention of the statement
// sources this engine was built for.
func Default() *Normalizer {
	return New(Options{DayFirst: true})
}

// Parse attempts each layout in order and returns the first successful parse
// truncated to a calendar date in UTC. ok is false when nothing matched.
func (n *Normalizer) Parse(s string) (date time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range n.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return toDate(t), true
		}
	}
	// Last resort: full ISO-8601 timestamp with timezone.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return toDate(t.UTC()), true
	}
	return time.Time{}, false
}

// DaysBetween returns the absolute day gap between two calendar dates.
func DaysBetween(a, b time.Time) int {
	d := int(toDate(a).Sub(toDate(b)).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}

func toDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
