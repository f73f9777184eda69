package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayKey(t *testing.T) {
	d := time.Date(2023, time.March, 5, 23, 59, 0, 0, time.Local)
	assert.Equal(t, "20230305", DayKey(d))
	assert.Equal(t, "20230304", Yesterday(d))

	parsed, err := ParseDayKey("20230305")
	require.NoError(t, err)
	assert.Equal(t, 5, parsed.Day())

	assert.True(t, IsDayKey("20010101"))
	assert.False(t, IsDayKey("2001-01-01"))
	assert.False(t, IsDayKey("20011301"))
}

func TestHalfDay(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "am"},
		{11, "am"},
		{12, "pm"},
		{23, "pm"},
	}
	for _, tt := range tests {
		got := HalfDay(time.Date(2020, 1, 1, tt.hour, 30, 0, 0, time.Local))
		assert.Equal(t, tt.want, got, "hour %d", tt.hour)
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2014, time.April, 21, 23, 0, 0, 0, time.Local)
	b := time.Date(2014, time.April, 22, 1, 0, 0, 0, time.Local)
	assert.Equal(t, 1, DaysBetween(a, b))
	assert.Equal(t, 0, DaysBetween(a, a))
	assert.Equal(t, 365, DaysBetween(
		time.Date(2021, 1, 1, 0, 0, 0, 0, time.Local),
		time.Date(2022, 1, 1, 0, 0, 0, 0, time.Local)))
}

func TestFakeClock_Advance(t *testing.T) {
	start := time.Date(2020, 1, 1, 8, 0, 0, 0, time.Local)
	fc := &FakeClock{CurrentTime: start}
	fc.Advance(5 * time.Hour)
	assert.Equal(t, "pm", HalfDay(fc.Now()))
}
