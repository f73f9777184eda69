package car

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/the-mace/evtools/common"
)

// Fetcher obtains point-in-time readings from a vehicle API.
type Fetcher interface {
	Fetch(ctx context.Context) (*Snapshot, error)
	// Raw returns the undecoded vehicle state, for dumps.
	Raw(ctx context.Context) (interface{}, error)
}

// PowerState is the vehicle's power mode as reported by APIs that expose it.
type PowerState struct {
	State    string
	Awake    bool
	Driving  bool
	Charging bool
	Snapshot *Snapshot
}

// PowerReporter is implemented by fetchers that can report whether the vehicle is asleep.
type PowerReporter interface {
	Power(ctx context.Context) (*PowerState, error)
}

// UpstreamError is a non-success HTTP status from a vehicle API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("upstream returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// IsRetryable reports whether err is an upstream failure worth re-running the whole tool for.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	return ue.StatusCode >= 500 || ue.StatusCode == http.StatusRequestTimeout
}

// FetchWithRetry calls f.Fetch until it succeeds or the policy is exhausted.
func FetchWithRetry(ctx context.Context, f Fetcher, policy common.RetryPolicy) (*Snapshot, error) {
	var snapshot *Snapshot
	err := backoff.RetryNotify(func() error {
		s, err := f.Fetch(ctx)
		if err != nil {
			return err
		}
		snapshot = s
		return nil
	}, policy.NewBackOff(ctx), func(err error, next time.Duration) {
		glog.Warningf("Problem getting current state, trying again in %s: %v", common.Round(next, time.Millisecond), err)
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch current state")
	}
	return snapshot, nil
}
