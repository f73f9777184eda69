package main

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/the-mace/evtools/common"
	"github.com/the-mace/evtools/recorder/clock"
	"github.com/the-mace/evtools/recorder/weather"
)

func newWeatherCmd(root *rootOptions) *cobra.Command {
	var (
		date    string
		sundays int
	)
	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Look up daytime weather",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := root.load()
			if err != nil {
				return err
			}
			if sundays != 0 {
				return weather.WriteSundays(cmd.Context(), weather.NewClient(conf.Weather), sundays, time.Now(), cmd.OutOrStdout())
			}
			return printWeather(cmd.Context(), conf, date, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&date, "date", "0", "day to look up (YYYYMMDD, 0 for now)")
	cmd.Flags().IntVar(&sundays, "sundays", 0, "print a CSV of every Sunday's weather of this year")
	return cmd
}

// printWeather prints the daytime weather of day as of 21:00, or of the current time for "0".
func printWeather(ctx context.Context, conf common.Configuration, day string, out io.Writer) error {
	at := time.Now()
	if day != "0" {
		t, err := clock.ParseDayKey(day)
		if err != nil {
			return errors.Wrapf(err, "invalid day %q, expected YYYYMMDD", day)
		}
		at = time.Date(t.Year(), t.Month(), t.Day(), 21, 0, 0, 0, time.Local)
	}
	w, err := weather.NewClient(conf.Weather).Daytime(ctx, at)
	if err != nil {
		return err
	}
	w.WriteSummary(out, at)
	return nil
}
