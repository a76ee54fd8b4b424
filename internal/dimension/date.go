package dimension

import (
	"time"

	"github.com/pgEdge/pgedge-retailstar/internal/model"
)

// The date dimension covers a fixed calendar independent of the loaded data.
var (
	CalendarStart = time.Date(2009, time.January, 1, 0, 0, 0, 0, time.UTC)
	CalendarEnd   = time.Date(2010, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// DateBuilder generates one row per calendar day in [CalendarStart, CalendarEnd].
type DateBuilder struct {
	table string
}

// NewDateBuilder creates a date dimension builder for table.
func NewDateBuilder(table string) *DateBuilder {
	return &DateBuilder{table: table}
}

// Table returns the target table name.
func (b *DateBuilder) Table() string {
	return b.table
}

// Build ignores lines; the calendar is static.
func (b *DateBuilder) Build(_ []model.Line) []model.DateRow {
	return Calendar(CalendarStart, CalendarEnd)
}

// Calendar returns one row per day from start to end inclusive.
func Calendar(start, end time.Time) []model.DateRow {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if end.Before(start) {
		return nil
	}

	days := int(end.Sub(start).Hours()/24) + 1
	rows := make([]model.DateRow, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		rows = append(rows, model.DateRow{
			Key:        DateKey(d),
			Date:       d,
			Year:       d.Year(),
			Month:      d.Month().String(),
			DayOfMonth: d.Day(),
			DayOfWeek:  d.Weekday().String(),
		})
	}
	return rows
}

// DateKey renders d as the integer YYYYMMDD.
func DateKey(d time.Time) int {
	return d.Year()*10000 + int(d.Month())*100 + d.Day()
}
