package weather

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Source answers daytime weather questions.
type Source interface {
	Daytime(ctx context.Context, t time.Time) (*Daytime, error)
}

// WriteSummary prints d as looked up at t.
func (d *Daytime) WriteSummary(w io.Writer, at time.Time) {
	fmt.Fprintf(w, "Weather as of %s:\n", at.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "   Average temperature: %.1fF\n", d.AvgTemp)
	fmt.Fprintf(w, "   Low temperature: %.1fF\n", d.LowTemp)
	fmt.Fprintf(w, "   Cloud Cover: %d%%\n", int(d.CloudCover))
	fmt.Fprintf(w, "   Daylight hours: %.1f\n", d.DaylightHours)
	fmt.Fprintf(w, "   Description: %s\n", d.Description)
	fmt.Fprintf(w, "   Precipitation type: %s\n", d.PrecipType)
	fmt.Fprintf(w, "   Precipitation Chance: %d%%\n", int(d.PrecipProbability))
}

// WriteSundays writes a CSV row with the 21:00 daytime weather of every Sunday of year before now.
func WriteSundays(ctx context.Context, src Source, year int, now time.Time, w io.Writer) error {
	out := csv.NewWriter(w)
	if err := out.Write([]string{"date", "avg temp", "low temp", "cloud cover", "precip type", "precip probability"}); err != nil {
		return errors.Wrap(err, "cannot write sunday weather")
	}
	t := time.Date(year, time.January, 1, 21, 0, 0, 0, now.Location())
	for t.Weekday() != time.Sunday {
		t = t.AddDate(0, 0, 1)
	}
	for ; t.Year() == year && t.Before(now); t = t.AddDate(0, 0, 7) {
		d, err := src.Daytime(ctx, t)
		if err != nil {
			return errors.Wrapf(err, "weather for %s", t.Format("20060102"))
		}
		err = out.Write([]string{
			t.Format("20060102"),
			fmt.Sprintf("%.1f", d.AvgTemp),
			fmt.Sprintf("%.1f", d.LowTemp),
			fmt.Sprintf("%d%%", int(d.CloudCover)),
			d.PrecipType,
			fmt.Sprintf("%d%%", int(d.PrecipProbability)),
		})
		if err != nil {
			return errors.Wrap(err, "cannot write sunday weather")
		}
	}
	out.Flush()
	return errors.Wrap(out.Error(), "cannot write sunday weather")
}
