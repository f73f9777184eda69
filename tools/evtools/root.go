package main

import (
	"flag"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/the-mace/evtools/common"
)

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "evtools",
		Short:        "Track electric vehicles and solar production",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// glog reads its flags from the standard flag set.
			return flag.CommandLine.Parse(nil)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", common.DefaultConfigPath(), "configuration file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "dry run and surface errors instead of emailing them")
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	cmd.AddCommand(
		newVehicleCmd("tesla", opts),
		newVehicleCmd("rivian", opts),
		newSolarCmd(opts),
		newWeatherCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() (common.Configuration, error) {
	glog.V(1).Infof("Loading config from %s", o.configPath)
	conf, err := common.LoadConfig(o.configPath)
	if err != nil {
		return conf, err
	}
	if o.debug {
		conf.DebugMode = true
		conf.DryRun = true
	}
	return conf, nil
}

func newConfigCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with credentials masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := root.load()
			if err != nil {
				return err
			}
			conf.WriteRedacted(cmd.OutOrStdout())
			return nil
		},
	}
}
