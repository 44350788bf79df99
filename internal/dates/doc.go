// Package dates handles calendar-date strings for due dates.
//
// Due dates are stored as plain "YYYY-MM-DD" strings without a timezone offset.
// Every comparison works on the civil year/month/day of the local calendar,
// never on instants, so a date cannot shift by a day near midnight or across a
// DST change.
package dates
