package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/golang/glog"
	"github.com/the-mace/evtools/common"
	"github.com/the-mace/evtools/recorder/car"
)

// Alerter sends operational alerts.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

type GuardOptions struct {
	Policy common.RetryPolicy
	// Debug skips the alert so the error surfaces locally.
	Debug   bool
	Alerter Alerter
	Subject string
	Name    string
}

// Guard runs run, re-running it while it fails with a retryable upstream error. Any other error is
// sent as an operational alert and returned.
func Guard(ctx context.Context, opts GuardOptions, run func(ctx context.Context) error) error {
	err := backoff.RetryNotify(func() error {
		err := run(ctx)
		if err == nil || car.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, opts.Policy.NewBackOff(ctx), func(err error, next time.Duration) {
		glog.Warningf("Transient error from %s API: %v", opts.Name, err)
		glog.Infof("Retrying again in %s", common.Round(next, time.Second))
	})
	if err == nil {
		return nil
	}

	glog.Errorf("%s run failed: %+v", opts.Name, err)
	if opts.Debug || opts.Alerter == nil {
		return err
	}
	body := fmt.Sprintf("There was a problem during %s updates:\n\n%+v\n\nPlease investigate.", opts.Name, err)
	if alertErr := opts.Alerter.Alert(ctx, opts.Subject, body); alertErr != nil {
		glog.Errorf("Cannot send alert: %v", alertErr)
	}
	return err
}
