package solar

import (
	"sort"
	"time"

	"github.com/the-mace/evtools/recorder/clock"
)

// Windows is the production over trailing periods, in kWh.
type Windows struct {
	Week     float64
	Month    float64
	Year     float64
	Lifetime float64
}

// ComputeWindows sums production over the last 7, 30 and 365 days. A day counts when it is
// strictly after the cutoff date, so the cutoff day itself is excluded.
func ComputeWindows(h *History, today time.Time) Windows {
	week := clock.DayKey(today.AddDate(0, 0, -7))
	month := clock.DayKey(today.AddDate(0, 0, -30))
	year := clock.DayKey(today.AddDate(0, 0, -365))

	var w Windows
	for day, d := range h.Data {
		w.Lifetime += d.Production
		if day > week {
			w.Week += d.Production
		}
		if day > month {
			w.Month += d.Production
		}
		if day > year {
			w.Year += d.Production
		}
	}
	return w
}

// Extremes are the best and worst production days. MaxDay and MinDay are empty when there is no
// usable data.
type Extremes struct {
	MaxDay string
	Max    float64
	MinDay string
	Min    float64
	Total  float64
}

// FindExtremes scans the history, ignoring badDays. Ties keep the earliest day.
func FindExtremes(h *History, badDays []string) Extremes {
	bad := make(map[string]bool, len(badDays))
	for _, d := range badDays {
		bad[d] = true
	}
	days := make([]string, 0, len(h.Data))
	for day := range h.Data {
		if !bad[day] {
			days = append(days, day)
		}
	}
	sort.Strings(days)

	var e Extremes
	for _, day := range days {
		p := h.Data[day].Production
		e.Total += p
		if e.MaxDay == "" || p > e.Max {
			e.MaxDay, e.Max = day, p
		}
		if e.MinDay == "" || p < e.Min {
			e.MinDay, e.Min = day, p
		}
	}
	return e
}
