package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-mace/evtools/common"
	"github.com/the-mace/evtools/recorder/car"
	"github.com/the-mace/evtools/recorder/clock"
	"github.com/the-mace/evtools/recorder/state"
	"github.com/the-mace/evtools/recorder/weather"
)

type fakeWeather struct {
	avgTemp float64
	err     error
	asked   []time.Time
}

func (f *fakeWeather) Daytime(ctx context.Context, t time.Time) (*weather.Daytime, error) {
	f.asked = append(f.asked, t)
	if f.err != nil {
		return nil, f.err
	}
	return &weather.Daytime{AvgTemp: f.avgTemp}, nil
}

var testLimits = common.Limits{MaxDailyMiles: 2000, RoadTripMiles: 200, MinEfficiency: 200, MaxEfficiency: 700}

func newTestEngine(now time.Time, ws WeatherSource) *Engine {
	return NewEngine(Config{
		Profile: Profile{
			Brand:         "Tesla",
			Model:         "Model S 75D",
			Mention:       "@Teslamotors",
			MilestoneTags: "#Tesla @TeslaMotors",
			OwnedSince:    time.Date(2014, time.April, 21, 0, 0, 0, 0, time.Local),
			Signature:     "Rob",
		},
		Limits: testLimits,
	}, ws, &clock.FakeClock{CurrentTime: now})
}

var today = time.Date(2023, time.March, 2, 8, 30, 0, 0, time.Local)

func historyWith(yesterdayOdo, todayOdo, energy float64, dayCharges int) *state.History {
	h := state.NewHistory()
	h.DailyStateAM["20230301"] = car.Snapshot{Odometer: yesterdayOdo}
	h.DailyStateAM["20230302"] = car.Snapshot{Odometer: todayOdo, ChargeEnergyAdded: energy}
	h.DayCharges = dayCharges
	return h
}

func TestReportYesterday_Efficiency(t *testing.T) {
	ws := &fakeWeather{avgTemp: 51.4}
	e := newTestEngine(today, ws)

	msg, err := e.ReportYesterday(context.Background(), historyWith(15000, 15045, 20, 1))
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, DroveEfficiency, msg.Kind)
	assert.Equal(t, 45.0, msg.Miles)
	assert.InDelta(t, 444.44, msg.Efficiency, 0.01)
	assert.Equal(t,
		"Yesterday I drove my #Tesla 45 miles using 20.0 kWh with an effic. of 444 Wh/mi. Avg temp 51F. @Teslamotors #bot",
		msg.Text)

	require.Len(t, ws.asked, 1)
	assert.Equal(t, time.Date(2023, time.March, 1, 21, 0, 0, 0, time.Local), ws.asked[0])
}

func TestReportYesterday_Templates(t *testing.T) {
	tests := []struct {
		name       string
		history    *state.History
		expected   Kind
		efficiency bool
	}{
		{"road trip", historyWith(15000, 15250, 60, 1), RoadTrip, false},
		{"day off", historyWith(15000, 15000, 0, 0), DayOff, false},
		{"no charge", historyWith(15000, 15045, 20, 0), Drove, false},
		{"two charges", historyWith(15000, 15045, 20, 2), Drove, false},
		{"no energy", historyWith(15000, 15045, 0, 1), Drove, false},
		{"efficiency too low", historyWith(15000, 15100, 5, 1), Drove, false},
		{"efficiency too high", historyWith(15000, 15010, 10, 1), Drove, false},
		{"efficiency at upper bound", historyWith(15000, 15010, 7, 1), Drove, false},
		{"efficiency in band", historyWith(15000, 15100, 30, 1), DroveEfficiency, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(today, &fakeWeather{avgTemp: 40})
			msg, err := e.ReportYesterday(context.Background(), tt.history)
			require.NoError(t, err)
			require.NotNil(t, msg)
			assert.Equal(t, tt.expected, msg.Kind)
			assert.Equal(t, tt.efficiency, strings.Contains(msg.Text, "Wh/mi"), msg.Text)
			assert.True(t, strings.HasSuffix(msg.Text, "@Teslamotors #bot"), msg.Text)
		})
	}
}

func TestReportYesterday_DayOff(t *testing.T) {
	e := newTestEngine(today, nil)
	msg, err := e.ReportYesterday(context.Background(), historyWith(15000, 15000, 0, 0))
	require.NoError(t, err)
	// 2014-04-21 to 2023-03-02 is 3237 days.
	assert.Equal(t, "Yesterday my #Tesla had a day off. Current mileage is 15,000 miles after 107 months @Teslamotors #bot", msg.Text)
}

func TestReportYesterday_RoadTrip(t *testing.T) {
	e := newTestEngine(today, nil)
	msg, err := e.ReportYesterday(context.Background(), historyWith(15000, 16234.7, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "Yesterday I drove my #Tesla 1,234 miles on a road trip! @Teslamotors #bot", msg.Text)
}

func TestReportYesterday_Skips(t *testing.T) {
	e := newTestEngine(today, nil)

	tests := []struct {
		name    string
		history *state.History
	}{
		{"negative delta", historyWith(15000, 14000, 0, 0)},
		{"huge delta", historyWith(15000, 17001, 0, 0)},
		{"missing snapshots", state.NewHistory()},
	}
	for _, tt := range tests {
		msg, err := e.ReportYesterday(context.Background(), tt.history)
		require.NoError(t, err, tt.name)
		assert.Nil(t, msg, tt.name)
	}

	h := historyWith(15000, 15045, 20, 1)
	delete(h.DailyStateAM, "20230301")
	msg, err := e.ReportYesterday(context.Background(), h)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestReportYesterday_DeltaBounds(t *testing.T) {
	e := newTestEngine(today, nil)
	for _, delta := range []float64{0, 1, 45, 200, 201, 1999, 2000} {
		msg, err := e.ReportYesterday(context.Background(), historyWith(15000, 15000+delta, 10, 1))
		require.NoError(t, err)
		assert.NotNil(t, msg, "delta %v", delta)
	}
	for _, delta := range []float64{-1, 2000.5, 5000} {
		msg, err := e.ReportYesterday(context.Background(), historyWith(15000, 15000+delta, 10, 1))
		require.NoError(t, err)
		assert.Nil(t, msg, "delta %v", delta)
	}
}

func TestReportYesterday_WeatherFailure(t *testing.T) {
	e := newTestEngine(today, &fakeWeather{err: errors.New("offline")})
	msg, err := e.ReportYesterday(context.Background(), historyWith(15000, 15045, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "Yesterday I drove my #Tesla 45 miles. @Teslamotors #bot", msg.Text)
}

func TestReportYesterday_Picture(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "car.jpg"), []byte("jpg"), 0644))
	e := newTestEngine(today, nil)
	e.conf.PicturesPath = dir

	msg, err := e.ReportYesterday(context.Background(), historyWith(15000, 15045, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "car.jpg"), msg.Image)

	e.conf.PicturesPath = filepath.Join(dir, "missing")
	msg, err = e.ReportYesterday(context.Background(), historyWith(15000, 15045, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, msg.Image)
}
