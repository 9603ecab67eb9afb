package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cfn-softbio/scibot-web/internal/config"
	"github.com/cfn-softbio/scibot-web/internal/log"
)

type rootOptions struct {
	configPath string
	logLevel   string
	addr       string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "scibot-web",
		Short:        "Web front end relaying chat messages to the SciBot responder",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (default $SCIBOT_CONFIG_DEFAULT_PATH or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.addr, "addr", "", "override HTTP listen address")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newHistoryCmd(opts),
		newAskCmd(opts),
	)

	return rootCmd
}

// load resolves configuration and builds the logger it asks for, writing to
// logOut.
func (o *rootOptions) load(logOut io.Writer) (config.Config, *zerolog.Logger, error) {
	bootstrap := log.NewWithWriter(logOut, "info", "console")

	cfg, path, err := config.Load(bootstrap, o.configPath)
	if err != nil {
		return cfg, bootstrap, fmt.Errorf("load config: %w", err)
	}
	cfg.UpdateFrom(config.Config{LogLevel: o.logLevel, Addr: o.addr})

	logger := log.NewWithWriter(logOut, cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("config_path", path).Msg("configuration loaded")
	return cfg, logger, nil
}
