package report

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/the-mace/evtools/common"
	"github.com/the-mace/evtools/recorder/clock"
	"github.com/the-mace/evtools/recorder/state"
)

// ReportYesterday builds the post about yesterday's driving from the AM snapshots of today and
// yesterday. It returns a nil message when the data is missing or implausible. The caller resets
// the day's charge counter.
func (e *Engine) ReportYesterday(ctx context.Context, h *state.History) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := e.clock.Now()
	todayKey := clock.DayKey(now)
	yesterdayKey := clock.Yesterday(now)

	today, okToday := h.DailyStateAM[todayKey]
	yesterday, okYesterday := h.DailyStateAM[yesterdayKey]
	if !okToday || !okYesterday {
		glog.Infof("Skipping yesterday report due to missing snapshots for %s or %s", yesterdayKey, todayKey)
		return nil, nil
	}

	miles := today.Odometer - yesterday.Odometer
	if miles < 0 || miles > e.conf.Limits.MaxDailyMiles {
		glog.Warningf("Something wrong with mileage: %.1f (%.1f - %.1f)", miles, today.Odometer, yesterday.Odometer)
		return nil, nil
	}

	p := e.conf.Profile
	milesText := common.FormatThousands(int64(miles))
	msg := &Message{Miles: miles}
	switch {
	case miles > e.conf.Limits.RoadTripMiles:
		msg.Kind = RoadTrip
		msg.Text = sentence(
			fmt.Sprintf("Yesterday I drove my #%s %s miles on a road trip!", p.Brand, milesText),
			p.Mention, "#bot")
	case miles == 0:
		months := clock.DaysBetween(p.OwnedSince, now) / 30
		msg.Kind = DayOff
		msg.Text = sentence(
			fmt.Sprintf("Yesterday my #%s had a day off. Current mileage is %s miles after %d months",
				p.Brand, common.FormatThousands(int64(today.Odometer)), months),
			p.Mention, "#bot")
	default:
		energy := today.ChargeEnergyAdded
		efficiency := 0.0
		if h.DayCharges == 1 && energy > 0 {
			efficiency = energy * 1000 / miles
		}
		temp := e.temperatureClause(ctx, now)
		if efficiency > e.conf.Limits.MinEfficiency && efficiency < e.conf.Limits.MaxEfficiency {
			msg.Kind = DroveEfficiency
			msg.Efficiency = efficiency
			msg.Text = sentence(
				fmt.Sprintf("Yesterday I drove my #%s %s miles using %.1f kWh with an effic. of %d Wh/mi.",
					p.Brand, milesText, energy, int(efficiency)),
				temp, p.Mention, "#bot")
		} else {
			msg.Kind = Drove
			msg.Text = sentence(
				fmt.Sprintf("Yesterday I drove my #%s %s miles.", p.Brand, milesText),
				temp, p.Mention, "#bot")
		}
	}
	msg.Image = e.picture()
	return msg, nil
}

// temperatureClause looks up yesterday's daytime temperature as of 21:00. It is empty when the
// weather is unavailable.
func (e *Engine) temperatureClause(ctx context.Context, now time.Time) string {
	if e.weather == nil {
		return ""
	}
	y := now.AddDate(0, 0, -1)
	at := time.Date(y.Year(), y.Month(), y.Day(), 21, 0, 0, 0, now.Location())
	w, err := e.weather.Daytime(ctx, at)
	if err != nil {
		glog.Warningf("Weather unavailable for %s, reporting without temperature: %v", clock.DayKey(at), err)
		return ""
	}
	return fmt.Sprintf("Avg temp %.0fF.", w.AvgTemp)
}
