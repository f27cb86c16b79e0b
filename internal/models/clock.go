package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar dates
const DateLayout = "2006-01-02"

// Clock is a wall-clock time of day in minutes after midnight
type Clock int

// EndOfDay is the exclusive end of a day; it is written as 23:59
const EndOfDay Clock = 24 * 60

const lastMinute Clock = 23*60 + 59

// NewClock builds a Clock from hour and minute
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses HH:MM or HH:MM:SS
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	var h, m, sec int
	var err error
	switch strings.Count(s, ":") {
	case 1:
		_, err = fmt.Sscanf(s, "%d:%d", &h, &m)
	case 2:
		_, err = fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec)
	default:
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h == 24 && m == 0 && sec == 0 {
		return EndOfDay, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("clock time out of range %q", s)
	}
	return NewClock(h, m), nil
}

// ClockOf truncates t to the minute in its own location
func ClockOf(t time.Time) Clock {
	return NewClock(t.Hour(), t.Minute())
}

// CeilClockOf rounds t up to the next whole minute
func CeilClockOf(t time.Time) Clock {
	c := ClockOf(t)
	if t.Second() > 0 || t.Nanosecond() > 0 {
		c++
	}
	return c
}

// Normalize maps 23:59 and later to EndOfDay so end bounds compare as exclusive
func (c Clock) Normalize() Clock {
	if c >= lastMinute {
		return EndOfDay
	}
	return c
}

// On returns the instant of c on the day that starts at dayStart
func (c Clock) On(dayStart time.Time) time.Time {
	y, m, d := dayStart.Date()
	if c >= EndOfDay {
		return time.Date(y, m, d+1, 0, 0, 0, 0, dayStart.Location())
	}
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, dayStart.Location())
}

func (c Clock) String() string {
	if c >= EndOfDay {
		c = lastMinute
	}
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Scan reads a postgres TIME column
func (c *Clock) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		parsed, err := ParseClock(string(v))
		if err != nil {
			return err
		}
		*c = parsed
	case string:
		parsed, err := ParseClock(v)
		if err != nil {
			return err
		}
		*c = parsed
	case time.Time:
		*c = ClockOf(v)
	default:
		return fmt.Errorf("cannot scan %T into Clock", src)
	}
	return nil
}

// Value writes the clock as HH:MM
func (c Clock) Value() (driver.Value, error) {
	return c.String(), nil
}

// Interval is a half-open time range [Start, End)
type Interval struct {
	Start time.Time `json:"start_at"`
	End   time.Time `json:"end_at"`
}

// Valid reports whether Start < End
func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps is the half-open overlap test
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports Start <= t < End
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Covers reports whether o lies entirely within i
func (i Interval) Covers(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Minutes returns the interval length in whole minutes, rounded up
func (i Interval) Minutes() int64 {
	d := i.End.Sub(i.Start)
	m := int64(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	return m
}

// DayStart returns local midnight of t's date in loc
func DayStart(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DateKey formats t's local date in loc
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// ParseDate parses YYYY-MM-DD as local midnight in loc
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}
