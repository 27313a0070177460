package main

import (
	"fmt"
	"strings"

	"github.com/PaulFidika/accesslog/config"
	"github.com/PaulFidika/accesslog/core"
	"github.com/PaulFidika/accesslog/storage"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app holds the global flags and the state built from them.
type app struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string

	logger *logrus.Logger
	// newFactory builds the store factory; tests swap it.
	newFactory func(logrus.FieldLogger) *core.Factory
}

func newRootCmd() *cobra.Command {
	a := &app{newFactory: storage.NewFactory}
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "accesslog",
		Short: "Manage captured access events",
		Long: `Manage the access events captured by an identity provider.

Every configured set names a store and a retention window in months. The
sweep deletes events older than the window; schedule repeats it on a cron
schedule; check verifies that each set's table has the mapped columns.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "accesslog.yaml", "Path to the configuration file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "Load environment variables from this dotenv file first")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(a.sweepCmd(), a.scheduleCmd(), a.checkCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil {
			return fmt.Errorf("load env file %q: %w", a.envFile, err)
		}
	}
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	level, err := logrus.ParseLevel(a.logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	logger.SetLevel(level)
	switch strings.ToLower(strings.TrimSpace(a.logFormat)) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid --log-format %q (use text or json)", a.logFormat)
	}
	a.logger = logger
	return nil
}

// open loads the configuration and builds the registry. The caller closes it.
func (a *app) open() (*core.Registry, config.File, error) {
	f, err := config.Load(a.configPath)
	if err != nil {
		return nil, config.File{}, err
	}
	if len(f.Sets) == 0 {
		return nil, config.File{}, fmt.Errorf("config file %q declares no sets", a.configPath)
	}
	reg, err := core.NewRegistry(f.Sets, a.newFactory(a.logger), core.WithLogger(a.logger))
	if err != nil {
		return nil, config.File{}, err
	}
	return reg, f, nil
}

func (a *app) closeRegistry(reg *core.Registry) {
	if err := reg.Close(); err != nil {
		a.logger.WithError(err).Warn("accesslog: closing stores")
	}
}
