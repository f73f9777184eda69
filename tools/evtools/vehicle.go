package main

import (
	"context"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/the-mace/evtools/common"
	"github.com/the-mace/evtools/recorder"
	"github.com/the-mace/evtools/recorder/car"
	"github.com/the-mace/evtools/recorder/clock"
	"github.com/the-mace/evtools/recorder/databases"
	"github.com/the-mace/evtools/recorder/notify"
	"github.com/the-mace/evtools/recorder/report"
	"github.com/the-mace/evtools/recorder/state"
	"github.com/the-mace/evtools/recorder/weather"
)

func newVehicleCmd(name string, root *rootOptions) *cobra.Command {
	var flags recorder.Flags
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Record %s state and post daily updates", name),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.Day != "" && !clock.IsDayKey(flags.Day) {
				return errors.Errorf("invalid --day %q, expected YYYYMMDD", flags.Day)
			}
			conf, err := root.load()
			if err != nil {
				return err
			}
			return runVehicle(cmd.Context(), name, conf, flags, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.BoolVar(&flags.Status, "status", false, "print the current vehicle status")
	f.BoolVar(&flags.Dump, "dump", false, "dump the raw vehicle state to the dump directory")
	f.BoolVar(&flags.State, "state", false, "record the current state in the history")
	f.BoolVar(&flags.Mileage, "mileage", false, "check for a mileage milestone")
	f.BoolVar(&flags.ChargeCheck, "chargecheck", false, "track charging sessions")
	f.BoolVar(&flags.PluggedIn, "pluggedin", false, "email a notice when the vehicle isn't plugged in")
	f.BoolVar(&flags.Yesterday, "yesterday", false, "post about yesterday's driving")
	f.BoolVar(&flags.Firmware, "firmware", false, "check for a firmware update")
	f.StringVar(&flags.Day, "day", "", "show the stored morning snapshot of a day (YYYYMMDD)")
	f.BoolVar(&flags.Report, "report", false, "print the energy added report")
	f.BoolVar(&flags.Export, "export", false, "export the morning snapshots as CSV")
	f.BoolVar(&flags.MailTest, "mailtest", false, "send a test email")
	f.BoolVar(&flags.SleepCheck, "sleepcheck", false, "append the power state to the sleep log")
	return cmd
}

func newFetcher(name string, conf common.Vehicle) car.Fetcher {
	if name == "rivian" {
		return car.NewRivianFetcher(conf)
	}
	return car.NewTeslaFetcher(conf)
}

func newMailer(conf common.Configuration) notify.Mailer {
	if conf.Mail.Transport == "pushover" {
		return notify.NewPushoverMailer(conf.Pushover)
	}
	return notify.NewSMTPMailer(conf.Mail)
}

func newPoster(conf common.Configuration) notify.Poster {
	if conf.Mastodon.Server == "" {
		return nil
	}
	return notify.NewRetryingPoster(notify.NewMastodonPoster(conf.Mastodon), conf.Retry.Post)
}

func runVehicle(ctx context.Context, name string, conf common.Configuration, flags recorder.Flags, out io.Writer) error {
	vehicle := conf.Tesla
	if name == "rivian" {
		vehicle = conf.Rivian
	}
	if err := vehicle.Validate(); err != nil {
		return err
	}
	ops := flags.Operations()
	if len(ops) == 0 {
		return errors.New("nothing to do, pass at least one operation flag")
	}

	subject := fmt.Sprintf("%s Poll Error", vehicle.Brand)
	notifier := notify.NewNotifier(newPoster(conf), newMailer(conf), notify.Options{
		Recipient:    vehicle.Email,
		DryRun:       conf.DryRun,
		Debug:        conf.DebugMode,
		AlertSubject: subject,
	}, out)

	c := clock.NewReal()
	deps := recorder.Deps{
		Name:     name,
		Conf:     vehicle,
		Policies: conf.Retry,
		Clock:    c,
		Store:    state.NewFileStore(vehicle.DataFile, conf.DryRun),
		Fetcher:  newFetcher(name, vehicle),
		Engine: report.NewEngine(report.Config{
			Profile:       report.ProfileFromConfig(vehicle),
			Limits:        vehicle.Limits,
			PicturesPath:  vehicle.PicturesPath,
			VersionImages: vehicle.VersionImages,
		}, weather.NewClient(conf.Weather), c),
		Notifier: notifier,
		Out:      out,
	}

	if conf.InfluxDbConfig.Enabled {
		sink, err := databases.OpenInfluxDbDatabase(conf.InfluxDbConfig)
		if err != nil {
			glog.Errorf("Cannot open time-series database, continuing without it: %v", err)
		} else {
			deps.Sink = sink
			defer func() {
				if err := sink.Close(); err != nil {
					glog.Warningf("Cannot close time-series database: %v", err)
				}
			}()
		}
	}

	return recorder.Guard(ctx, recorder.GuardOptions{
		Policy:  conf.Retry.Run,
		Debug:   conf.DebugMode,
		Alerter: notifier,
		Subject: subject,
		Name:    vehicle.Brand,
	}, func(ctx context.Context) error {
		return recorder.RunOnce(ctx, deps, ops)
	})
}
