package report

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/the-mace/evtools/common"
	"github.com/the-mace/evtools/recorder/car"
	"github.com/the-mace/evtools/recorder/clock"
	"github.com/the-mace/evtools/recorder/state"
)

var adjectives = []string{"an amazing", "an awesome", "a fantastic", "a great", "a wonderful"}

// ObserveCharging applies one charging poll to the history and reports whether it changed.
// Only a not-charging to charging edge counts a new charge cycle.
func ObserveCharging(h *state.History, charging bool) bool {
	switch {
	case charging && !h.Charging:
		glog.Infof("State change, not charging to charging")
		h.Charging = true
		h.DayCharges++
		return true
	case !charging && h.Charging:
		glog.Infof("State change from charging to not charging")
		h.Charging = false
		return true
	}
	return false
}

// CheckMileage announces each 1,000 mile boundary once. It updates the history when it returns a
// message.
func (e *Engine) CheckMileage(h *state.History, odometer float64) *Message {
	if int64(odometer/1000) <= int64(h.MileageTweet/1000) {
		return nil
	}
	milestone := int64(odometer/1000) * 1000
	h.MileageTweet = odometer
	p := e.conf.Profile
	return &Message{
		Kind: Milestone,
		Text: sentence(
			fmt.Sprintf("Just passed %s miles on my %s! It's been %s experience.",
				common.FormatThousands(milestone), p.Model, e.pick(adjectives)),
			p.MilestoneTags, "#bot"),
		Image: e.picture(),
		Miles: float64(milestone),
	}
}

// CheckFirmware compares version with the stored firmware record. The first sighting is stored
// silently. It reports whether the history changed.
func (e *Engine) CheckFirmware(h *state.History, version string) (*Message, bool) {
	if version == "" {
		glog.Warningf("Problems getting firmware version")
		return nil, false
	}
	now := e.clock.Now()
	today := clock.DayKey(now)
	if h.Firmware == nil {
		h.Firmware = &state.FirmwareRecord{Version: version, DateDetected: today}
		return nil, true
	}

	since := 0
	if detected, err := clock.ParseDayKey(h.Firmware.DateDetected); err == nil {
		since = clock.DaysBetween(detected, now)
	} else {
		glog.Warningf("Bad firmware detection date %q: %v", h.Firmware.DateDetected, err)
	}

	model := e.conf.Profile.Model
	if h.Firmware.Version != version {
		glog.Infof("New firmware version %s replaces %s", version, h.Firmware.Version)
		h.Firmware.Version = version
		h.Firmware.DateDetected = today
		return &Message{
			Kind: FirmwareNew,
			Text: fmt.Sprintf("My %s just found software version %s. Its been %d days since the last update #bot",
				model, version, since),
			Image: e.versionImage(),
		}, true
	}

	age := ""
	if released, ok := firmwareRelease(version); ok && !released.After(now) {
		age = fmt.Sprintf("Firmware is ~%d days old.", clock.DaysBetween(released, now))
	}
	return &Message{
		Kind: FirmwareSame,
		Text: sentence(
			fmt.Sprintf("My %s is running firmware version %s.", model, version),
			age,
			fmt.Sprintf("%d days since last update #bot", since)),
		Image: e.versionImage(),
	}, false
}

var firmwareWeek = regexp.MustCompile(`^(\d{4})\.(\d{1,2})\b`)

// firmwareRelease estimates a release date from a YYYY.WW version: the Saturday of week WW, where
// week 1 starts on the year's first Monday.
func firmwareRelease(version string) (time.Time, bool) {
	m := firmwareWeek.FindStringSubmatch(version)
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	week, _ := strconv.Atoi(m[2])
	if week > 53 {
		return time.Time{}, false
	}
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.Local)
	toMonday := (int(time.Monday) - int(jan1.Weekday()) + 7) % 7
	return jan1.AddDate(0, 0, toMonday+(week-1)*7+5), true
}

// CheckPluggedIn returns an alert when the vehicle is not plugged in.
func (e *Engine) CheckPluggedIn(s *car.Snapshot) *Message {
	if s.IsPluggedIn() {
		glog.Infof("It's plugged in (%s).", s.ChargingState)
		return nil
	}
	p := e.conf.Profile
	return &Message{
		Kind:    NotPluggedIn,
		Subject: fmt.Sprintf("Your %s isn't plugged in", p.Brand),
		Text: fmt.Sprintf("Your car is not plugged in.\n\nCurrent battery level is %d%%. (%d estimated miles)\n\nRegards,\n%s",
			int(s.StateOfCharge), int(s.EstimatedRange), p.Signature),
	}
}

// MailTestMessage is the body of a test email.
func (e *Engine) MailTestMessage() *Message {
	p := e.conf.Profile
	return &Message{
		Kind:    MailTest,
		Subject: fmt.Sprintf("%s Email Test", p.Brand),
		Text:    fmt.Sprintf("Email test from tool.\n\nIf you're getting this its working.\n\nRegards,\n%s", p.Signature),
	}
}
