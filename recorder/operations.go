package recorder

import (
	"context"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/the-mace/evtools/common"
	"github.com/the-mace/evtools/recorder/car"
	"github.com/the-mace/evtools/recorder/clock"
	"github.com/the-mace/evtools/recorder/report"
)

// Flags selects the operations of a vehicle tool run.
type Flags struct {
	Status      bool
	Dump        bool
	State       bool
	Mileage     bool
	ChargeCheck bool
	PluggedIn   bool
	Yesterday   bool
	Firmware    bool
	Day         string
	Report      bool
	Export      bool
	MailTest    bool
	SleepCheck  bool
}

// Operations returns the selected operations in their fixed execution order.
func (f Flags) Operations() []Operation {
	var ops []Operation
	add := func(selected bool, name string, method func(*Session, context.Context) Result) {
		if selected {
			ops = append(ops, Operation{Name: name, Run: func(ctx context.Context, s *Session) Result {
				return method(s, ctx)
			}})
		}
	}
	add(f.Status, "status", (*Session).PrintStatus)
	add(f.Dump, "dump", (*Session).DumpState)
	add(f.State, "state", (*Session).RecordState)
	add(f.Mileage, "mileage", (*Session).CheckMileage)
	add(f.ChargeCheck, "chargecheck", (*Session).CheckCharging)
	add(f.PluggedIn, "pluggedin", (*Session).CheckPluggedIn)
	add(f.Yesterday, "yesterday", (*Session).ReportYesterday)
	add(f.Firmware, "firmware", (*Session).CheckFirmware)
	if f.Day != "" {
		day := f.Day
		add(true, "day", func(s *Session, ctx context.Context) Result { return s.ShowDay(ctx, day) })
	}
	add(f.Report, "report", (*Session).EnergyReport)
	add(f.Export, "export", (*Session).Export)
	add(f.MailTest, "mailtest", (*Session).MailTest)
	add(f.SleepCheck, "sleepcheck", (*Session).SleepCheck)
	return ops
}

func (s *Session) PrintStatus(ctx context.Context) Result {
	raw, err := s.deps.Fetcher.Raw(ctx)
	if err != nil {
		return skipped("couldn't get status this pass", err)
	}
	fmt.Fprintf(s.deps.Out, "%s status at %s\n%s", s.deps.Conf.Name, s.deps.Clock.Now().Format("2006-01-02 15:04:05"), spew.Sdump(raw))
	return done()
}

// RecordState stores the current snapshot in today's AM or PM bucket. Unlike the other operations,
// it retries the fetch and fails the run when the vehicle cannot be reached.
func (s *Session) RecordState(ctx context.Context) Result {
	snapshot := s.snapshot
	if snapshot == nil {
		fetched, err := car.FetchWithRetry(ctx, s.deps.Fetcher, s.deps.Policies.Fetch)
		if err != nil {
			return failed(errors.Wrapf(err, "couldn't fetch %s state", s.deps.Name))
		}
		fetched.Timestamp = s.deps.Clock.Now()
		s.snapshot = fetched
		snapshot = fetched
	}

	s.History.Record(*snapshot)
	s.markChanged()
	glog.Infof("[%s] Added state to daily_state_%s[%s]", s.RunID, clock.HalfDay(snapshot.Timestamp), clock.DayKey(snapshot.Timestamp))

	if s.deps.Sink != nil {
		if err := s.deps.Sink.Insert(ctx, s.deps.Conf.Name, *snapshot); err != nil {
			glog.Errorf("[%s] Cannot mirror snapshot to time-series database: %v", s.RunID, err)
		}
	}
	return done()
}

func (s *Session) CheckMileage(ctx context.Context) Result {
	snapshot, err := s.currentSnapshot(ctx)
	if err != nil {
		return skipped("couldn't get odometer this pass", err)
	}
	if snapshot.Odometer <= 0 {
		return skipped("couldn't get odometer this pass", nil)
	}
	glog.Infof("[%s] Mileage: %s", s.RunID, common.FormatThousands(int64(snapshot.Odometer)))

	today := clock.DayKey(s.deps.Clock.Now())
	if am, ok := s.History.DailyStateAM[today]; ok && am.Odometer == 0 {
		am.Odometer = snapshot.Odometer
		s.History.DailyStateAM[today] = am
		s.markChanged()
	}

	msg := s.deps.Engine.CheckMileage(s.History, snapshot.Odometer)
	if msg == nil {
		return done()
	}
	s.markChanged()
	if err := s.deps.Notifier.Post(ctx, msg.Text, msg.Image); err != nil {
		return failed(err)
	}
	return done()
}

func (s *Session) CheckCharging(ctx context.Context) Result {
	snapshot, err := s.currentSnapshot(ctx)
	if err != nil {
		return skipped("couldn't get charge state this pass", err)
	}
	glog.Infof("[%s] Charging state: %s", s.RunID, snapshot.ChargingState)
	if report.ObserveCharging(s.History, snapshot.IsCharging()) {
		s.markChanged()
	}
	return done()
}

func (s *Session) CheckPluggedIn(ctx context.Context) Result {
	snapshot, err := s.currentSnapshot(ctx)
	if err != nil {
		return skipped("couldn't check plugged in state", err)
	}
	msg := s.deps.Engine.CheckPluggedIn(snapshot)
	if msg == nil {
		return done()
	}
	if err := s.deps.Notifier.Email(ctx, msg.Subject, msg.Text); err != nil {
		return skipped("couldn't send plugged in notice", err)
	}
	glog.Infof("[%s] Not plugged in. Emailed notice.", s.RunID)
	return done()
}

// ReportYesterday posts about yesterday's driving and resets the day's charge counter.
func (s *Session) ReportYesterday(ctx context.Context) Result {
	msg, err := s.deps.Engine.ReportYesterday(ctx, s.History)
	if err != nil {
		return failed(err)
	}
	s.History.DayCharges = 0
	s.markChanged()
	if msg == nil {
		glog.Infof("[%s] No update, skipping yesterday report", s.RunID)
		return done()
	}
	if err := s.deps.Notifier.Post(ctx, msg.Text, msg.Image); err != nil {
		return failed(err)
	}
	return done()
}

func (s *Session) CheckFirmware(ctx context.Context) Result {
	snapshot, err := s.currentSnapshot(ctx)
	if err != nil {
		return skipped("problems getting firmware version", err)
	}
	msg, changed := s.deps.Engine.CheckFirmware(s.History, snapshot.FirmwareVersion)
	if changed {
		s.markChanged()
	}
	if msg == nil {
		return done()
	}
	if err := s.deps.Notifier.Post(ctx, msg.Text, msg.Image); err != nil {
		return failed(err)
	}
	return done()
}

func (s *Session) MailTest(ctx context.Context) Result {
	msg := s.deps.Engine.MailTestMessage()
	if err := s.deps.Notifier.Email(ctx, msg.Subject, msg.Text); err != nil {
		fmt.Fprintln(s.deps.Out, "Mail send failed, see log.")
		return skipped("problem trying to send mail", err)
	}
	fmt.Fprintln(s.deps.Out, "Mail send passed.")
	return done()
}
