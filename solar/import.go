package solar

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

const (
	timestampColumn = "Timestamp"
	energyColumn    = "Energy In Interval (kWh)"
	// Imports only go into histories with fewer days than this.
	importThreshold = 5
)

// ImportCSV adds interval production from a PowerGuide export to h. Intervals of the same day are
// summed. Days already in the history are left alone, so importing twice does not double count. It
// returns the number of intervals imported.
func ImportCSV(h *History, r io.Reader) (int, error) {
	if len(h.Data) >= importThreshold {
		glog.Infof("Skipping historical import, history already has %d days", len(h.Data))
		return 0, nil
	}

	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return 0, errors.Wrap(err, "cannot read csv header")
	}
	tsIdx, energyIdx := -1, -1
	for i, name := range header {
		switch name {
		case timestampColumn:
			tsIdx = i
		case energyColumn:
			energyIdx = i
		}
	}
	if tsIdx < 0 || energyIdx < 0 {
		return 0, errors.Errorf("csv must have %q and %q columns", timestampColumn, energyColumn)
	}

	imported := 0
	existing := make(map[string]bool, len(h.Data))
	for day := range h.Data {
		existing[day] = true
	}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, errors.Wrapf(err, "line %d", line)
		}
		if row[energyIdx] == "NULL" {
			continue
		}
		ts := row[tsIdx]
		if len(ts) < 10 {
			glog.Warningf("Skipping line %d with bad timestamp %q", line, ts)
			continue
		}
		energy, err := strconv.ParseFloat(row[energyIdx], 64)
		if err != nil {
			return imported, errors.Wrapf(err, "line %d", line)
		}

		day := ts[0:4] + ts[5:7] + ts[8:10]
		if existing[day] {
			continue
		}
		d := h.Data[day]
		d.Production += energy
		h.Data[day] = d
		imported++
	}
	glog.Infof("Imported %d historical intervals", imported)
	return imported, nil
}
