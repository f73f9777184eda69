package clock

import "time"

type Clock interface {
	Now() time.Time
}

func NewReal() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

type FakeClock struct {
	CurrentTime time.Time
}

func (fc *FakeClock) Now() time.Time {
	return fc.CurrentTime
}

func (fc *FakeClock) Advance(d time.Duration) {
	fc.CurrentTime = fc.CurrentTime.Add(d)
}

const dayKeyLayout = "20060102"

// DayKey is the local-date key used by every history file.
func DayKey(t time.Time) string {
	return t.Format(dayKeyLayout)
}

func ParseDayKey(key string) (time.Time, error) {
	return time.ParseInLocation(dayKeyLayout, key, time.Local)
}

func IsDayKey(key string) bool {
	_, err := ParseDayKey(key)
	return err == nil && len(key) == len(dayKeyLayout)
}

// HalfDay returns "am" before noon and "pm" otherwise.
func HalfDay(t time.Time) string {
	if t.Hour() < 12 {
		return "am"
	}
	return "pm"
}

// Yesterday returns the day key of the calendar day before t.
func Yesterday(t time.Time) string {
	return DayKey(t.AddDate(0, 0, -1))
}

// DaysBetween counts calendar days from a to b, ignoring the time of day.
func DaysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
