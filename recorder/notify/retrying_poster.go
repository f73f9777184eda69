package notify

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/the-mace/evtools/common"
)

// RetryingPoster retries transient post failures. Authentication failures are returned at once.
type RetryingPoster struct {
	poster Poster
	policy common.RetryPolicy
}

func NewRetryingPoster(poster Poster, policy common.RetryPolicy) *RetryingPoster {
	return &RetryingPoster{poster: poster, policy: policy}
}

func (p *RetryingPoster) Post(ctx context.Context, text, mediaPath string) error {
	return backoff.RetryNotify(func() error {
		err := p.poster.Post(ctx, text, mediaPath)
		if errors.Is(err, ErrAuth) {
			return backoff.Permanent(err)
		}
		return err
	}, p.policy.NewBackOff(ctx), func(err error, next time.Duration) {
		glog.Warningf("Post failed, retrying in %s: %v", common.Round(next, time.Millisecond), err)
	})
}
