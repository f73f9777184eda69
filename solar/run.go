package solar

import (
	"context"
	"os"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/the-mace/evtools/common"
	"github.com/the-mace/evtools/recorder/lock"
	"github.com/the-mace/evtools/recorder/state"
)

// Options selects what a solar run does. The steps run in field order.
type Options struct {
	// ImportPath overrides the configured historical CSV.
	ImportPath string
	Monthly    bool
	Yearly     bool
	Daily      bool
	Input      DailyInput
	Report     bool
	Stats      bool
	NoEmail    bool
	NoPost     bool
}

type Deps struct {
	Conf     common.Solar
	Policies common.RetryConfig
	Store    *state.FileStore
	Reporter *Reporter
}

// Run performs one locked solar run and saves the history if it changed.
func Run(ctx context.Context, deps Deps, opts Options) error {
	l, err := lock.Acquire(ctx, deps.Conf.LockFile, deps.Policies.Lock)
	if err != nil {
		return err
	}
	defer l.Release()

	h, err := LoadHistory(deps.Store)
	if err != nil {
		return err
	}
	runID := ulid.Make()
	glog.Infof("[%s] --- solar start ---", runID)
	glog.V(1).Infof("[%s] %d days loaded", runID, len(h.Data))

	changed, err := importHistorical(h, deps.Conf, opts.ImportPath)
	if err != nil {
		return err
	}

	step := func(name string, fn func() (bool, error)) error {
		c, err := fn()
		if err != nil {
			return errors.Wrapf(err, "%s failed", name)
		}
		changed = changed || c
		return nil
	}
	if opts.Monthly {
		if err := step("monthly", func() (bool, error) { return deps.Reporter.Monthly(ctx, h) }); err != nil {
			return err
		}
	}
	if opts.Yearly {
		if err := step("yearly", func() (bool, error) { return deps.Reporter.Yearly(ctx, h) }); err != nil {
			return err
		}
	}
	if opts.Daily {
		in := opts.Input
		in.NoPost = in.NoPost || opts.NoPost
		if err := step("daily", func() (bool, error) { return deps.Reporter.Daily(ctx, h, in) }); err != nil {
			return err
		}
	}
	if opts.Report {
		if err := deps.Reporter.Weekly(ctx, h, opts.NoEmail, opts.NoPost); err != nil {
			return errors.Wrap(err, "weekly report failed")
		}
	}
	if opts.Stats {
		deps.Reporter.Stats(h)
	}

	if changed {
		if err := deps.Store.Save(h); err != nil {
			return errors.Wrap(err, "cannot save solar history")
		}
		glog.Infof("[%s] Saved %s", runID, deps.Store.Path())
	}
	glog.Infof("[%s] --- solar end ---", runID)
	return nil
}

func importHistorical(h *History, conf common.Solar, path string) (bool, error) {
	explicit := path != ""
	if !explicit {
		path = conf.HistoricalCsv
	}
	if path == "" {
		return false, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return false, nil
		}
		return false, errors.Wrapf(err, "cannot open historical data %s", path)
	}
	defer f.Close()
	n, err := ImportCSV(h, f)
	if err != nil {
		return false, errors.Wrapf(err, "cannot import %s", path)
	}
	return n > 0, nil
}
