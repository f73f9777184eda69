package notify

import (
	"context"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// ErrAuth marks a post that failed because the credentials were rejected.
var ErrAuth = errors.New("social post authentication failed")

// Poster publishes a status with an optional picture.
type Poster interface {
	Post(ctx context.Context, text, mediaPath string) error
}

// Mailer sends an email.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

type Options struct {
	Recipient string
	// DryRun prints what would be sent instead of sending it.
	DryRun bool
	// Debug returns post failures instead of mailing an alert about them.
	Debug bool
	// AlertSubject is used for operational alerts about failed posts.
	AlertSubject string
}

// Notifier dispatches posts and emails, or only prints them in dry-run mode.
type Notifier struct {
	poster Poster
	mailer Mailer
	opts   Options
	out    io.Writer
}

func NewNotifier(poster Poster, mailer Mailer, opts Options, out io.Writer) *Notifier {
	if opts.AlertSubject == "" {
		opts.AlertSubject = "evtools error"
	}
	return &Notifier{poster: poster, mailer: mailer, opts: opts, out: out}
}

// Post publishes text. A failed post is reported as an operational alert and not returned, unless
// debug mode is on.
func (n *Notifier) Post(ctx context.Context, text, mediaPath string) error {
	if n.opts.DryRun {
		fmt.Fprintf(n.out, "Would post:\n%s with pic: %s\n", text, mediaPath)
		glog.Infof("Dry run, not posting: %s with pic: %s", text, mediaPath)
		return nil
	}
	if n.poster == nil {
		glog.Warningf("No social poster configured, dropping post: %s", text)
		return nil
	}

	glog.Infof("Posting: %s with pic: %s", text, mediaPath)
	err := n.poster.Post(ctx, text, mediaPath)
	if err == nil {
		return nil
	}
	glog.Errorf("Post failed: %v", err)
	if n.opts.Debug {
		return errors.Wrap(err, "post failed")
	}
	body := fmt.Sprintf("There was a problem posting an update:\n\n%s\n\nError: %+v\n\nPlease investigate.", text, err)
	if alertErr := n.Alert(ctx, n.opts.AlertSubject, body); alertErr != nil {
		glog.Errorf("Cannot send alert about failed post: %v", alertErr)
	}
	return nil
}

// Email sends a message to the configured recipient.
func (n *Notifier) Email(ctx context.Context, subject, body string) error {
	if n.opts.DryRun {
		fmt.Fprintf(n.out, "Would email %s:\n%s\n%s\n", n.opts.Recipient, subject, body)
		glog.Infof("Dry run, not emailing %q", subject)
		return nil
	}
	if n.mailer == nil {
		return errors.New("no mailer configured")
	}
	glog.Infof("Emailing %s: %s", n.opts.Recipient, subject)
	return errors.Wrap(n.mailer.Send(ctx, n.opts.Recipient, subject, body), "email failed")
}

// Alert sends an operational alert. Nothing is sent in debug mode.
func (n *Notifier) Alert(ctx context.Context, subject, body string) error {
	if n.opts.Debug {
		glog.Warningf("Debug mode, not sending alert %q:\n%s", subject, body)
		return nil
	}
	return n.Email(ctx, subject, body)
}
