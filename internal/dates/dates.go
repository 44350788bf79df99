package dates

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the storage format for due dates.
const Layout = "2006-01-02"

// Date is a civil calendar date with no time or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Order is the result of comparing two dates.
type Order int

const (
	Before Order = -1
	Equal  Order = 0
	After  Order = 1
)

func (o Order) String() string {
	switch o {
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "equal"
	}
}

// FromTime returns the calendar date of t in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the local calendar day of now as "YYYY-MM-DD".
func Today(now time.Time) string {
	return FromTime(now.Local()).String()
}

// String formats the date as "YYYY-MM-DD".
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// civil anchors the date at noon UTC, which is only used for day arithmetic.
func (d Date) civil() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

// AddDays returns the date n calendar days after d.
func (d Date) AddDays(n int) Date {
	return FromTime(d.civil().AddDate(0, 0, n))
}

// Parse reads a stored date string. Anything after the date part (a "T" or a
// space followed by a time of day) is ignored.
func Parse(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("empty date")
	}
	datePart := s
	if i := strings.IndexAny(s, "T "); i >= 0 {
		datePart = s[:i]
	}
	t, err := time.Parse(Layout, datePart)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return FromTime(t), nil
}

// Normalize parses s and returns it in storage form, dropping any time part.
func Normalize(s string) (string, error) {
	d, err := Parse(s)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// CompareDates orders two dates by year, month, then day.
func CompareDates(a, b Date) Order {
	switch {
	case a.Year != b.Year:
		return orderOf(a.Year < b.Year)
	case a.Month != b.Month:
		return orderOf(a.Month < b.Month)
	case a.Day != b.Day:
		return orderOf(a.Day < b.Day)
	}
	return Equal
}

func orderOf(less bool) Order {
	if less {
		return Before
	}
	return After
}

// Compare parses and compares two date strings.
func Compare(a, b string) (Order, error) {
	da, err := Parse(a)
	if err != nil {
		return Equal, err
	}
	db, err := Parse(b)
	if err != nil {
		return Equal, err
	}
	return CompareDates(da, db), nil
}

// DaysBetween returns the number of whole calendar days from one date to
// another. It is negative when to is before from.
func DaysBetween(from, to Date) int {
	return int(to.civil().Sub(from.civil()).Hours() / 24)
}

// Describe returns the human label for a due date relative to today:
// "Today", "Overdue N days", "Tomorrow", "In N days", or a short date.
// Unparseable dates are returned unchanged.
func Describe(due string, today Date) string {
	d, err := Parse(due)
	if err != nil {
		return due
	}
	days := DaysBetween(today, d)
	switch {
	case days == 0:
		return "Today"
	case days == -1:
		return "Overdue 1 day"
	case days < 0:
		return fmt.Sprintf("Overdue %d days", -days)
	case days == 1:
		return "Tomorrow"
	case days <= 7:
		return fmt.Sprintf("In %d days", days)
	}
	if d.Year == today.Year {
		return d.civil().Format("Jan 2")
	}
	return d.civil().Format("Jan 2, 2006")
}
