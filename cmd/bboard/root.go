package main

import (
	"github.com/blockberries/bboard/config"
	"github.com/blockberries/bboard/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app is the state shared by every command once the configuration is
// loaded.
type app struct {
	v          *viper.Viper
	configFile string
	envFiles   []string

	cfg config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "bboard",
		Short:         "Post to and read from a bulletin board contract",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML configuration file")
	flags.StringSliceVar(&a.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	flags.String("network", config.NetworkStandalone, "network preset: standalone, devnet or testnet")
	flags.String("connector", "", "address of the wallet connector (overrides the preset)")
	flags.String("log-level", "info", "log level: trace, debug, info, warn or error")
	flags.String("state", "", "bbolt file to keep private state in (empty keeps it in memory)")
	flags.String("metrics", "", "address to serve prometheus metrics on")
	_ = a.v.BindPFlag(config.KeyNetwork, flags.Lookup("network"))
	_ = a.v.BindPFlag(config.KeyConnectorAddress, flags.Lookup("connector"))
	_ = a.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = a.v.BindPFlag(config.KeyStatePath, flags.Lookup("state"))
	_ = a.v.BindPFlag(config.KeyMetricsListen, flags.Lookup("metrics"))

	root.AddCommand(
		newRunCmd(a),
		newDevnetCmd(a),
		newWatchCmd(a),
		newDeploymentsCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(a.envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.Configure(cfg.LogLevel, cmd.ErrOrStderr())
	return nil
}
