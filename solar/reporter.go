package solar

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/the-mace/evtools/common"
	"github.com/the-mace/evtools/recorder/clock"
	"github.com/the-mace/evtools/recorder/notify"
	"github.com/the-mace/evtools/recorder/report"
)

// DailyInput is today's production. Cloud and Daylight are looked up from the weather service
// when nil.
type DailyInput struct {
	Production float64
	Cloud      *float64
	Daylight   *float64
	// Force posts even if today's post was already made.
	Force  bool
	NoPost bool
}

type Reporter struct {
	conf     common.Solar
	notifier *notify.Notifier
	weather  report.WeatherSource
	clock    clock.Clock
	out      io.Writer
	rand     *rand.Rand
}

func NewReporter(conf common.Solar, notifier *notify.Notifier, ws report.WeatherSource, c clock.Clock, out io.Writer) *Reporter {
	return &Reporter{
		conf:     conf,
		notifier: notifier,
		weather:  ws,
		clock:    c,
		out:      out,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Reporter) post(ctx context.Context, text string) error {
	return r.notifier.Post(ctx, strings.TrimSpace(text), report.PickPicture(r.rand, r.conf.PicturesPath))
}

// Daily records today's production and posts it, at most once per day unless forced. It reports
// whether the history changed.
func (r *Reporter) Daily(ctx context.Context, h *History, in DailyInput) (bool, error) {
	now := r.clock.Now()
	today := clock.DayKey(now)
	if h.Config.LastDailyPost == today && !in.Force {
		glog.Infof("Daily production already posted for %s", today)
		return false, nil
	}

	// Records are judged against earlier days only, so a forced re-run ignores today's previous entry.
	bad := r.conf.BadDays
	extremes := FindExtremes(h, append(bad[:len(bad):len(bad)], today))

	day := Day{Production: in.Production}
	if in.Cloud != nil {
		day.Cloud = *in.Cloud
	}
	if in.Daylight != nil {
		day.Daylight = *in.Daylight
	}
	if (in.Cloud == nil || in.Daylight == nil) && r.weather != nil {
		w, err := r.weather.Daytime(ctx, now)
		if err != nil {
			glog.Warningf("Weather unavailable, daylight/cloud cover not reported: %v", err)
		} else {
			if in.Cloud == nil {
				day.Cloud = w.CloudCover
			}
			if in.Daylight == nil {
				day.Daylight = w.DaylightHours
			}
			day.WeatherAPI = true
		}
	}
	h.Data[today] = day
	glog.Infof("Production for %s: %s, daylight %.1f hrs, cloud cover %.0f%%", today, common.FormatEnergy(day.Production), day.Daylight, day.Cloud)

	extra := ""
	switch {
	case extremes.MaxDay == "" || day.Production > extremes.Max:
		extra = "A new high record :) "
	case day.Production < extremes.Min:
		extra = ":( A new low "
	}

	if in.NoPost {
		return true, nil
	}
	var text string
	if day.Daylight > 0 {
		text = fmt.Sprintf("Todays %s Production: %s with %.1f hrs of daylight and %d%% cloud cover. %s#gosolar #bot %s",
			r.conf.Name, common.FormatEnergy(day.Production), day.Daylight, int(day.Cloud), extra, r.conf.Referral)
	} else {
		text = fmt.Sprintf("Todays %s Production: %s (daylight/cloud cover not reported) %s#gosolar #bot %s",
			r.conf.Name, common.FormatEnergy(day.Production), extra, r.conf.Referral)
	}
	if err := r.post(ctx, text); err != nil {
		return true, err
	}
	h.Config.LastDailyPost = today
	return true, nil
}

func isLastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Month() != t.Month()
}

// Monthly posts the month's production on the last day of the month, once per month.
func (r *Reporter) Monthly(ctx context.Context, h *History) (bool, error) {
	now := r.clock.Now()
	if !isLastDayOfMonth(now) {
		glog.Infof("Not last day of month, skipping")
		return false, nil
	}
	current := now.Format("200601")
	if h.Config.LastMonthlyPost == current {
		glog.Infof("Monthly production already posted for %s", current)
		return false, nil
	}
	w := ComputeWindows(h, now)
	text := fmt.Sprintf("This months %s Production was %s. %s generated in the last 365 days. #gosolar #bot %s",
		r.conf.Name, common.FormatEnergy(w.Month), common.FormatEnergy(w.Year), r.conf.Referral)
	if err := r.post(ctx, text); err != nil {
		return false, err
	}
	h.Config.LastMonthlyPost = current
	return true, nil
}

// Yearly posts the year's production on December 31, once per year.
func (r *Reporter) Yearly(ctx context.Context, h *History) (bool, error) {
	now := r.clock.Now()
	if now.Month() != time.December || now.Day() != 31 {
		glog.Infof("Not last day of year, skipping")
		return false, nil
	}
	current := now.Format("200601")
	if h.Config.LastYearlyPost == current {
		glog.Infof("Yearly production already posted for %d", now.Year())
		return false, nil
	}
	w := ComputeWindows(h, now)
	text := fmt.Sprintf("This years %s Production was %s! %s generated since install :) #gosolar #bot %s",
		r.conf.Name, common.FormatEnergy(w.Year), common.FormatEnergy(w.Lifetime), r.conf.Referral)
	if err := r.post(ctx, text); err != nil {
		return false, err
	}
	h.Config.LastYearlyPost = current
	return true, nil
}

// Weekly emails the production report and posts a short summary.
func (r *Reporter) Weekly(ctx context.Context, h *History, noEmail, noPost bool) error {
	w := ComputeWindows(h, r.clock.Now())

	var b strings.Builder
	b.WriteString("Hi there, below is the weekly solar generation report:\n\n")
	fmt.Fprintf(&b, "Total production this week: %s\n", common.FormatEnergy(w.Week))
	fmt.Fprintf(&b, "Total production in the last 30 days: %s\n", common.FormatEnergy(w.Month))
	fmt.Fprintf(&b, "Total production in the last 365 days: %s\n", common.FormatEnergy(w.Year))
	fmt.Fprintf(&b, "\nLifetime generation is %s.\n", common.FormatEnergy(w.Lifetime))
	fmt.Fprintf(&b, "\nRegards,\n%s", r.conf.Signature)

	if noEmail {
		fmt.Fprintf(r.out, "Would email message:\n%s\n", b.String())
	} else if err := r.notifier.Email(ctx, "Weekly Solar Report", b.String()); err != nil {
		return err
	}

	if noPost {
		return nil
	}
	text := fmt.Sprintf("%s generated last week with %s. %s generated in the last 30 days. #GoSolar #bot %s",
		common.FormatEnergy(w.Week), r.conf.Name, common.FormatEnergy(w.Month), r.conf.Referral)
	return r.post(ctx, text)
}

// Stats prints the lifetime summary.
func (r *Reporter) Stats(h *History) {
	e := FindExtremes(h, r.conf.BadDays)
	if e.MaxDay == "" {
		fmt.Fprintln(r.out, "No production data")
		return
	}
	fmt.Fprintf(r.out, "%s total power generated as of %s\n", common.FormatEnergy(e.Total), clock.DayKey(r.clock.Now()))
	fmt.Fprintf(r.out, "%s day max on %s\n", common.FormatEnergy(e.Max), e.MaxDay)
	fmt.Fprintf(r.out, "%s day min on %s\n", common.FormatEnergy(e.Min), e.MinDay)
	fmt.Fprintf(r.out, "%s daily average production\n", common.FormatEnergy(e.Total/float64(len(h.Data))))
}
