package recorder

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-mace/evtools/common"
	"github.com/the-mace/evtools/recorder/car"
	"github.com/the-mace/evtools/recorder/clock"
	"github.com/the-mace/evtools/recorder/lock"
	"github.com/the-mace/evtools/recorder/notify"
	"github.com/the-mace/evtools/recorder/report"
	"github.com/the-mace/evtools/recorder/state"
)

type fakeFetcher struct {
	snapshots []car.Snapshot
	err       error
	calls     int
	power     *car.PowerState
}

func (f *fakeFetcher) Fetch(ctx context.Context) (*car.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s := f.snapshots[0]
	if len(f.snapshots) > 1 {
		f.snapshots = f.snapshots[1:]
	}
	return &s, nil
}

func (f *fakeFetcher) Raw(ctx context.Context) (interface{}, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return map[string]interface{}{"odometer": f.snapshots[0].Odometer}, nil
}

type powerFetcher struct {
	fakeFetcher
}

func (f *powerFetcher) Power(ctx context.Context) (*car.PowerState, error) {
	return f.power, nil
}

type recordingPoster struct {
	posts []string
}

func (p *recordingPoster) Post(ctx context.Context, text, mediaPath string) error {
	p.posts = append(p.posts, text)
	return nil
}

type recordingMailer struct {
	subjects []string
}

func (m *recordingMailer) Send(ctx context.Context, recipient, subject, body string) error {
	m.subjects = append(m.subjects, subject)
	return nil
}

type testRig struct {
	deps   Deps
	clock  *clock.FakeClock
	poster *recordingPoster
	mailer *recordingMailer
	out    *bytes.Buffer
}

func newTestRig(t *testing.T, fetcher car.Fetcher) *testRig {
	dir := t.TempDir()
	fc := &clock.FakeClock{CurrentTime: time.Date(2023, time.March, 2, 8, 0, 0, 0, time.Local)}
	conf := common.Vehicle{
		Name:         "Blue",
		Brand:        "Tesla",
		Model:        "Model S 75D",
		Mention:      "@Teslamotors",
		OwnedSince:   "2014-04-21",
		Signature:    "Rob",
		LockFile:     filepath.Join(dir, "tesla.lock"),
		DataFile:     filepath.Join(dir, "tesla.json"),
		DumpDir:      filepath.Join(dir, "dumps"),
		SleepLogFile: filepath.Join(dir, "sleep.csv"),
		Limits:       common.Limits{MaxDailyMiles: 2000, RoadTripMiles: 200, MinEfficiency: 200, MaxEfficiency: 700},
	}
	fast := common.RetryPolicy{Attempts: 2, Delay: time.Millisecond}
	poster := &recordingPoster{}
	mailer := &recordingMailer{}
	out := &bytes.Buffer{}
	engine := report.NewEngine(report.Config{Profile: report.ProfileFromConfig(conf), Limits: conf.Limits}, nil, fc)
	return &testRig{
		deps: Deps{
			Name:     "tesla",
			Conf:     conf,
			Policies: common.RetryConfig{Lock: fast, Fetch: fast, Post: fast, Run: fast},
			Clock:    fc,
			Store:    state.NewFileStore(conf.DataFile, false),
			Fetcher:  fetcher,
			Engine:   engine,
			Notifier: notify.NewNotifier(poster, mailer, notify.Options{Recipient: "me@example.com"}, out),
			Out:      out,
		},
		clock:  fc,
		poster: poster,
		mailer: mailer,
		out:    out,
	}
}

func (r *testRig) load(t *testing.T) *state.History {
	h, err := state.LoadHistory(r.deps.Store)
	require.NoError(t, err)
	return h
}

func TestRunOnce_ChargeEdgeDetection(t *testing.T) {
	fetcher := &fakeFetcher{}
	rig := newTestRig(t, fetcher)
	ops := Flags{ChargeCheck: true}.Operations()

	for _, st := range []car.ChargingState{car.Disconnected, car.Connected, car.Charging, car.Complete, car.Disconnected} {
		fetcher.snapshots = []car.Snapshot{{ChargingState: st}}
		require.NoError(t, RunOnce(context.Background(), rig.deps, ops))
	}

	h := rig.load(t)
	assert.Equal(t, 1, h.DayCharges)
	assert.False(t, h.Charging)
}

func TestRunOnce_RecordStateAndYesterday(t *testing.T) {
	fetcher := &fakeFetcher{snapshots: []car.Snapshot{{Odometer: 15000, ChargingState: car.Disconnected}}}
	rig := newTestRig(t, fetcher)

	// Yesterday morning.
	rig.clock.CurrentTime = time.Date(2023, time.March, 1, 7, 0, 0, 0, time.Local)
	require.NoError(t, RunOnce(context.Background(), rig.deps, Flags{State: true, ChargeCheck: true}.Operations()))
	// Yesterday evening, back from a drive.
	rig.clock.CurrentTime = time.Date(2023, time.March, 1, 19, 0, 0, 0, time.Local)
	fetcher.snapshots = []car.Snapshot{{Odometer: 15045, ChargingState: car.Disconnected}}
	require.NoError(t, RunOnce(context.Background(), rig.deps, Flags{State: true, ChargeCheck: true}.Operations()))
	// Overnight charge.
	rig.clock.CurrentTime = time.Date(2023, time.March, 2, 1, 0, 0, 0, time.Local)
	fetcher.snapshots = []car.Snapshot{{Odometer: 15045, ChargingState: car.Charging}}
	require.NoError(t, RunOnce(context.Background(), rig.deps, Flags{ChargeCheck: true}.Operations()))
	// This morning.
	rig.clock.CurrentTime = time.Date(2023, time.March, 2, 7, 0, 0, 0, time.Local)
	fetcher.snapshots = []car.Snapshot{{Odometer: 15045, ChargeEnergyAdded: 20, ChargingState: car.Complete}}
	require.NoError(t, RunOnce(context.Background(), rig.deps, Flags{State: true, ChargeCheck: true, Yesterday: true}.Operations()))

	h := rig.load(t)
	assert.Len(t, h.DailyStateAM, 2)
	assert.Len(t, h.DailyStatePM, 1)
	assert.Equal(t, 0, h.DayCharges)
	require.Len(t, rig.poster.posts, 1)
	assert.Equal(t,
		"Yesterday I drove my #Tesla 45 miles using 20.0 kWh with an effic. of 444 Wh/mi. @Teslamotors #bot",
		rig.poster.posts[0])
}

func TestRunOnce_RecordStateFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: &car.UpstreamError{StatusCode: 503}}
	rig := newTestRig(t, fetcher)

	err := RunOnce(context.Background(), rig.deps, Flags{ChargeCheck: true, State: true}.Operations())
	require.Error(t, err)
	assert.True(t, car.IsRetryable(err))
	// State runs first and aborts the run after both attempts.
	assert.Equal(t, 2, fetcher.calls)
	_, statErr := os.Stat(rig.deps.Conf.DataFile)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(rig.deps.Conf.LockFile)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunOnce_SkippedOperationsDoNotAbort(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("car asleep")}
	rig := newTestRig(t, fetcher)

	ops := Flags{Mileage: true, ChargeCheck: true, PluggedIn: true, Firmware: true, Yesterday: true}.Operations()
	require.NoError(t, RunOnce(context.Background(), rig.deps, ops))
	// Yesterday still ran and reset the counter, so the history was saved.
	_, err := os.Stat(rig.deps.Conf.DataFile)
	assert.NoError(t, err)
}

func TestRunOnce_MileageMilestoneAndBackfill(t *testing.T) {
	fetcher := &fakeFetcher{snapshots: []car.Snapshot{{Odometer: 16003}}}
	rig := newTestRig(t, fetcher)

	h := state.NewHistory()
	h.MileageTweet = 15500
	h.DailyStateAM["20230302"] = car.Snapshot{StateOfCharge: 80}
	require.NoError(t, rig.deps.Store.Save(h))

	require.NoError(t, RunOnce(context.Background(), rig.deps, Flags{Mileage: true}.Operations()))
	require.NoError(t, RunOnce(context.Background(), rig.deps, Flags{Mileage: true}.Operations()))

	loaded := rig.load(t)
	assert.Equal(t, 16003.0, loaded.MileageTweet)
	assert.Equal(t, 16003.0, loaded.DailyStateAM["20230302"].Odometer)
	require.Len(t, rig.poster.posts, 1)
	assert.True(t, strings.HasPrefix(rig.poster.posts[0], "Just passed 16,000 miles"))
}

func TestRunOnce_PluggedInAndFirmware(t *testing.T) {
	fetcher := &fakeFetcher{snapshots: []car.Snapshot{{ChargingState: car.Disconnected, StateOfCharge: 40, EstimatedRange: 110, FirmwareVersion: "2023.2.1"}}}
	rig := newTestRig(t, fetcher)

	ops := Flags{PluggedIn: true, Firmware: true}.Operations()
	require.NoError(t, RunOnce(context.Background(), rig.deps, ops))
	assert.Equal(t, []string{"Your Tesla isn't plugged in"}, rig.mailer.subjects)
	assert.Empty(t, rig.poster.posts)
	assert.Equal(t, 1, fetcher.calls)

	rig.clock.Advance(3 * 24 * time.Hour)
	require.NoError(t, RunOnce(context.Background(), rig.deps, ops))
	require.Len(t, rig.poster.posts, 1)
	assert.Contains(t, rig.poster.posts[0], "is running firmware version 2023.2.1.")
	assert.Contains(t, rig.poster.posts[0], "3 days since last update")
}

func TestRunOnce_LocalOperationsDoNotFetch(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("must not be called")}
	rig := newTestRig(t, fetcher)

	h := state.NewHistory()
	h.DailyStateAM["20230302"] = car.Snapshot{Odometer: 15045.5, StateOfCharge: 80, ChargeEnergyAdded: 10}
	h.DailyStateAM["20230301"] = car.Snapshot{Odometer: 15000, StateOfCharge: 70, ChargeEnergyAdded: 20.5}
	require.NoError(t, rig.deps.Store.Save(h))

	ops := Flags{Day: "20230302", Report: true, Export: true}.Operations()
	require.NoError(t, RunOnce(context.Background(), rig.deps, ops))
	assert.Equal(t, 0, fetcher.calls)

	out := rig.out.String()
	assert.Contains(t, out, "Data for 20230302 am:\nodometer: 15045.5\nsoc: 80\n")
	assert.Contains(t, out, "Total Energy Added: 30.50 kW\nAverage Energy Added: 15.25 kW\n")
	assert.Contains(t, out, "date,odometer,soc,ideal_range,rated_range,estimated_range,charge_energy_added,charge_miles_added_ideal,charge_miles_added_rated\n"+
		"20230301,15000,70,0,0,0,20.5,0,0\n"+
		"20230302,15045.5,80,0,0,0,10,0,0\n")
}

func TestRunOnce_LockContention(t *testing.T) {
	rig := newTestRig(t, &fakeFetcher{})
	held, err := lock.Acquire(context.Background(), rig.deps.Conf.LockFile, common.RetryPolicy{Attempts: 1})
	require.NoError(t, err)
	defer held.Release()

	err = RunOnce(context.Background(), rig.deps, Flags{Report: true}.Operations())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock file not getting released")
}

func TestRunOnce_CorruptHistory(t *testing.T) {
	rig := newTestRig(t, &fakeFetcher{})
	require.NoError(t, os.WriteFile(rig.deps.Conf.DataFile, []byte("{"), 0644))
	err := RunOnce(context.Background(), rig.deps, Flags{Report: true}.Operations())
	assert.True(t, errors.Is(err, state.ErrCorrupt))
}

func TestFlagsOperationsOrder(t *testing.T) {
	ops := Flags{
		SleepCheck: true, Export: true, Yesterday: true, State: true, Status: true,
		Day: "20230101", Firmware: true, Mileage: true,
	}.Operations()
	var names []string
	for _, op := range ops {
		names = append(names, op.Name)
	}
	assert.Equal(t, []string{"status", "state", "mileage", "yesterday", "firmware", "day", "export", "sleepcheck"}, names)
	assert.Empty(t, Flags{}.Operations())
}

func TestRunOnce_SleepCheck(t *testing.T) {
	fetcher := &powerFetcher{}
	fetcher.power = &car.PowerState{
		State:    "ready",
		Awake:    true,
		Snapshot: &car.Snapshot{StateOfCharge: 71, RatedRange: 210.25},
	}
	rig := newTestRig(t, fetcher)

	require.NoError(t, RunOnce(context.Background(), rig.deps, Flags{SleepCheck: true}.Operations()))
	fetcher.power = &car.PowerState{State: "sleep"}
	require.NoError(t, RunOnce(context.Background(), rig.deps, Flags{SleepCheck: true}.Operations()))

	data, err := os.ReadFile(rig.deps.Conf.SleepLogFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], ",ready,71.0,210.2,false,Idle,Parked"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",sleep,0.0,0.0,false,Sleeping,Parked"), lines[1])
	assert.Contains(t, rig.out.String(), "Sleep Poll: Idle\n")
}

func TestRunOnce_SleepCheckUnsupported(t *testing.T) {
	rig := newTestRig(t, &fakeFetcher{})
	require.NoError(t, RunOnce(context.Background(), rig.deps, Flags{SleepCheck: true}.Operations()))
	_, err := os.Stat(rig.deps.Conf.SleepLogFile)
	assert.True(t, os.IsNotExist(err))
}

func TestRunOnce_DryRunPrintsPost(t *testing.T) {
	fetcher := &fakeFetcher{snapshots: []car.Snapshot{{Odometer: 2001}}}
	rig := newTestRig(t, fetcher)
	rig.deps.Notifier = notify.NewNotifier(rig.poster, rig.mailer, notify.Options{DryRun: true}, rig.out)
	rig.deps.Store = state.NewFileStore(rig.deps.Conf.DataFile, true)

	require.NoError(t, RunOnce(context.Background(), rig.deps, Flags{Mileage: true}.Operations()))
	assert.Empty(t, rig.poster.posts)
	assert.Contains(t, rig.out.String(), "Would post:\nJust passed 2,000 miles on my Model S 75D!")
	_, err := os.Stat(rig.deps.Conf.DataFile)
	assert.True(t, os.IsNotExist(err))
}

func TestRunOnce_StatusDumpAndMailTest(t *testing.T) {
	fetcher := &fakeFetcher{snapshots: []car.Snapshot{{Odometer: 15045}}}
	rig := newTestRig(t, fetcher)
	rig.deps.Conf.CompressDumps = true

	require.NoError(t, RunOnce(context.Background(), rig.deps, Flags{Status: true, Dump: true, MailTest: true}.Operations()))

	out := rig.out.String()
	assert.Contains(t, out, "Blue status at 2023-03-02 08:00:00\n")
	assert.Contains(t, out, "Mail send passed.\n")
	assert.Equal(t, []string{"Tesla Email Test"}, rig.mailer.subjects)

	path := filepath.Join(rig.deps.Conf.DumpDir, "tesla_state_20230302.txt.zst")
	compressed, err := os.ReadFile(path)
	require.NoError(t, err)
	decoder, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer decoder.Close()
	data, err := decoder.DecodeAll(compressed, nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), "odometer")
}
