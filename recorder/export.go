package recorder

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/the-mace/evtools/common"
	"github.com/the-mace/evtools/recorder/car"
	"github.com/the-mace/evtools/recorder/clock"
	"github.com/the-mace/evtools/recorder/state"
)

var exportColumns = []string{
	"date", "odometer", "soc", "ideal_range", "rated_range", "estimated_range",
	"charge_energy_added", "charge_miles_added_ideal", "charge_miles_added_rated",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func snapshotRow(day string, s car.Snapshot) []string {
	return []string{
		day,
		formatFloat(s.Odometer),
		formatFloat(s.StateOfCharge),
		formatFloat(s.IdealRange),
		formatFloat(s.RatedRange),
		formatFloat(s.EstimatedRange),
		formatFloat(s.ChargeEnergyAdded),
		formatFloat(s.ChargeMilesAddedIdeal),
		formatFloat(s.ChargeMilesAddedRated),
	}
}

// reportedDays lists the AM snapshot dates on or after the configured report start, sorted.
func (s *Session) reportedDays() []string {
	days := make([]string, 0, len(s.History.DailyStateAM))
	for day := range s.History.DailyStateAM {
		if day < s.deps.Conf.ReportSince {
			continue
		}
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

// ShowDay prints the AM snapshot stored for day.
func (s *Session) ShowDay(ctx context.Context, day string) Result {
	snapshot, ok := s.History.DailyStateAM[day]
	if !ok {
		fmt.Fprintf(s.deps.Out, "No data for %s am\n", day)
		return skipped("no snapshot for "+day, nil)
	}
	row := snapshotRow(day, snapshot)
	fmt.Fprintf(s.deps.Out, "Data for %s am:\n", day)
	for i, column := range exportColumns[1:] {
		fmt.Fprintf(s.deps.Out, "%s: %s\n", column, row[i+1])
	}
	fmt.Fprintf(s.deps.Out, "\nRaw: %s\n", strings.Join(row[1:], "\t"))
	return done()
}

// EnergyReport prints the total and average energy added over the AM snapshots.
func (s *Session) EnergyReport(ctx context.Context) Result {
	days := s.reportedDays()
	total := 0.0
	for _, day := range days {
		total += s.History.DailyStateAM[day].ChargeEnergyAdded
	}
	fmt.Fprintf(s.deps.Out, "Total Energy Added: %s kW\n", common.FormatDecimal(total, 2))
	if len(days) > 0 {
		fmt.Fprintf(s.deps.Out, "Average Energy Added: %s kW\n", common.FormatDecimal(total/float64(len(days)), 2))
	}
	return done()
}

// Export writes the AM snapshots as CSV, oldest first.
func (s *Session) Export(ctx context.Context) Result {
	w := csv.NewWriter(s.deps.Out)
	if err := w.Write(exportColumns); err != nil {
		return failed(errors.Wrap(err, "cannot write export"))
	}
	for _, day := range s.reportedDays() {
		if err := w.Write(snapshotRow(day, s.History.DailyStateAM[day])); err != nil {
			return failed(errors.Wrap(err, "cannot write export"))
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return failed(errors.Wrap(err, "cannot write export"))
	}
	return done()
}

// DumpState writes the raw vehicle state to the dump directory, zstd compressed when configured.
func (s *Session) DumpState(ctx context.Context) Result {
	raw, err := s.deps.Fetcher.Raw(ctx)
	if err != nil {
		return skipped("couldn't get dump this pass", err)
	}
	now := s.deps.Clock.Now()
	data := []byte(fmt.Sprintf("%s status at %s\n%s", s.deps.Conf.Name, now.Format("2006-01-02 15:04:05"), spew.Sdump(raw)))

	path := filepath.Join(s.deps.Conf.DumpDir, fmt.Sprintf("%s_state_%s.txt", s.deps.Name, clock.DayKey(now)))
	if s.deps.Conf.CompressDumps {
		data, err = compress(data)
		if err != nil {
			return skipped("couldn't compress dump", err)
		}
		path += ".zst"
	}
	if err := os.MkdirAll(s.deps.Conf.DumpDir, 0755); err != nil {
		return skipped("couldn't create dump directory", err)
	}
	if err := state.WriteFileAtomic(path, data); err != nil {
		return skipped("couldn't write dump", err)
	}
	fmt.Fprintf(s.deps.Out, "Dumped state to %s\n", path)
	return done()
}

func compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create zstd encoder")
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// SleepCheck appends one power state observation to the sleep log.
func (s *Session) SleepCheck(ctx context.Context) Result {
	reporter, ok := s.deps.Fetcher.(car.PowerReporter)
	if !ok {
		return skipped(s.deps.Name+" does not report its power state", nil)
	}
	power, err := reporter.Power(ctx)
	if err != nil {
		return failed(errors.Wrap(err, "error checking sleep state"))
	}

	f, err := os.OpenFile(s.deps.Conf.SleepLogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return failed(errors.Wrapf(err, "cannot open sleep log %s", s.deps.Conf.SleepLogFile))
	}
	defer f.Close()

	snapshot := power.Snapshot
	if snapshot == nil {
		snapshot = &car.Snapshot{}
	}
	assumed := power.Assumed()
	w := csv.NewWriter(f)
	err = w.Write([]string{
		s.deps.Clock.Now().Format("2006-01-02 15:04:05-07:00"),
		power.State,
		strconv.FormatFloat(snapshot.StateOfCharge, 'f', 1, 64),
		strconv.FormatFloat(snapshot.RatedRange, 'f', 1, 64),
		strconv.FormatBool(power.Charging),
		string(assumed),
		power.DrivingLabel(),
	})
	if err != nil {
		return failed(errors.Wrap(err, "cannot write sleep log"))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return failed(errors.Wrap(err, "cannot write sleep log"))
	}
	fmt.Fprintf(s.deps.Out, "Sleep Poll: %s\n", assumed)
	return done()
}
