package main

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/the-mace/evtools/common"
	"github.com/the-mace/evtools/recorder"
	"github.com/the-mace/evtools/recorder/clock"
	"github.com/the-mace/evtools/recorder/notify"
	"github.com/the-mace/evtools/recorder/state"
	"github.com/the-mace/evtools/recorder/weather"
	"github.com/the-mace/evtools/solar"
)

func newSolarCmd(root *rootOptions) *cobra.Command {
	var (
		opts            solar.Options
		cloud, daylight float64
		weatherDay      string
	)
	cmd := &cobra.Command{
		Use:   "solar",
		Short: "Record solar production and post summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("cloud") {
				opts.Input.Cloud = &cloud
			}
			if cmd.Flags().Changed("daylight") {
				opts.Input.Daylight = &daylight
			}
			if opts.Daily && !cmd.Flags().Changed("production") {
				return errors.New("--daily needs --production")
			}
			conf, err := root.load()
			if err != nil {
				return err
			}
			if weatherDay != "" {
				if err := printWeather(cmd.Context(), conf, weatherDay, cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			return runSolar(cmd.Context(), conf, opts, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.Daily, "daily", false, "record and post today's production")
	f.Float64Var(&opts.Input.Production, "production", 0, "today's production in kWh")
	f.Float64Var(&cloud, "cloud", 0, "today's cloud cover in percent, looked up when not given")
	f.Float64Var(&daylight, "daylight", 0, "today's daylight hours, looked up when not given")
	f.BoolVar(&opts.Input.Force, "force", false, "post even if today's production was already posted")
	f.BoolVar(&opts.Monthly, "monthly", false, "post the month's production on the last day of the month")
	f.BoolVar(&opts.Yearly, "yearly", false, "post the year's production on December 31")
	f.BoolVar(&opts.Report, "report", false, "send the weekly report")
	f.BoolVar(&opts.Stats, "stats", false, "print lifetime statistics")
	f.StringVar(&opts.ImportPath, "import", "", "import a PowerGuide CSV export")
	f.StringVar(&weatherDay, "weather", "", "print the daytime weather of a day (YYYYMMDD, 0 for now)")
	f.BoolVar(&opts.NoEmail, "no_email", false, "print the weekly report instead of emailing it")
	f.BoolVar(&opts.NoPost, "no_tweet", false, "don't post")
	return cmd
}

func runSolar(ctx context.Context, conf common.Configuration, opts solar.Options, out io.Writer) error {
	if err := conf.Solar.Validate(); err != nil {
		return err
	}
	subject := "Solar Poll Error"
	notifier := notify.NewNotifier(newPoster(conf), newMailer(conf), notify.Options{
		Recipient:    conf.Solar.Email,
		DryRun:       conf.DryRun,
		Debug:        conf.DebugMode,
		AlertSubject: subject,
	}, out)
	deps := solar.Deps{
		Conf:     conf.Solar,
		Policies: conf.Retry,
		Store:    state.NewFileStore(conf.Solar.DataFile, conf.DryRun),
		Reporter: solar.NewReporter(conf.Solar, notifier, weather.NewClient(conf.Weather), clock.NewReal(), out),
	}
	return recorder.Guard(ctx, recorder.GuardOptions{
		Policy:  conf.Retry.Run,
		Debug:   conf.DebugMode,
		Alerter: notifier,
		Subject: subject,
		Name:    "solar",
	}, func(ctx context.Context) error {
		return solar.Run(ctx, deps, opts)
	})
}
