package recorder

import (
	"context"
	"io"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/the-mace/evtools/common"
	"github.com/the-mace/evtools/recorder/car"
	"github.com/the-mace/evtools/recorder/clock"
	"github.com/the-mace/evtools/recorder/databases"
	"github.com/the-mace/evtools/recorder/lock"
	"github.com/the-mace/evtools/recorder/notify"
	"github.com/the-mace/evtools/recorder/report"
	"github.com/the-mace/evtools/recorder/state"
)

type Status int

const (
	Done Status = iota
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Done:
		return "done"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Result is the outcome of one operation. Skipped operations do not stop the run; a Failed one does.
type Result struct {
	Status Status
	Reason string
	Err    error
}

func done() Result {
	return Result{Status: Done}
}

func skipped(reason string, err error) Result {
	return Result{Status: Skipped, Reason: reason, Err: err}
}

func failed(err error) Result {
	return Result{Status: Failed, Err: err}
}

// Operation is one flag-selected step of a run.
type Operation struct {
	Name string
	Run  func(ctx context.Context, s *Session) Result
}

// Deps are the collaborators of a vehicle tool run.
type Deps struct {
	// Name identifies the tool in file names and alerts, e.g. "tesla".
	Name     string
	Conf     common.Vehicle
	Policies common.RetryConfig
	Clock    clock.Clock
	Store    *state.FileStore
	Fetcher  car.Fetcher
	Engine   *report.Engine
	Notifier *notify.Notifier
	// Sink is optional.
	Sink databases.Database
	Out  io.Writer
}

// Session holds the state of a single run. It is created after the lock is taken and discarded
// when the run ends.
type Session struct {
	RunID   ulid.ULID
	History *state.History

	deps     Deps
	changed  bool
	snapshot *car.Snapshot
}

func newSession(deps Deps, h *state.History) *Session {
	return &Session{
		RunID:   ulid.Make(),
		History: h,
		deps:    deps,
	}
}

func (s *Session) markChanged() {
	s.changed = true
}

// currentSnapshot fetches the vehicle state once per run.
func (s *Session) currentSnapshot(ctx context.Context) (*car.Snapshot, error) {
	if s.snapshot != nil {
		return s.snapshot, nil
	}
	snapshot, err := s.deps.Fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	snapshot.Timestamp = s.deps.Clock.Now()
	s.snapshot = snapshot
	return snapshot, nil
}

// RunOnce performs one locked run: acquire the lock, load the history, run the operations in
// order, save the history if it changed and release the lock.
func RunOnce(ctx context.Context, deps Deps, ops []Operation) error {
	l, err := lock.Acquire(ctx, deps.Conf.LockFile, deps.Policies.Lock)
	if err != nil {
		return err
	}
	defer l.Release()

	h, err := state.LoadHistory(deps.Store)
	if err != nil {
		return err
	}

	s := newSession(deps, h)
	glog.Infof("[%s] --- %s start ---", s.RunID, deps.Name)
	for _, op := range ops {
		r := op.Run(ctx, s)
		switch r.Status {
		case Done:
			glog.V(1).Infof("[%s] %s done", s.RunID, op.Name)
		case Skipped:
			glog.Warningf("[%s] %s skipped: %s: %v", s.RunID, op.Name, r.Reason, r.Err)
		case Failed:
			return errors.Wrapf(r.Err, "%s failed", op.Name)
		}
	}

	if s.changed {
		if err := deps.Store.Save(s.History); err != nil {
			return errors.Wrap(err, "cannot save history")
		}
		glog.Infof("[%s] Saved %s", s.RunID, deps.Store.Path())
	}
	glog.Infof("[%s] --- %s end ---", s.RunID, deps.Name)
	return nil
}
