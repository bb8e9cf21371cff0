package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Agossa1/marketauth/internal/config"
	"github.com/Agossa1/marketauth/internal/logging"
)

type app struct {
	configPath string
	settings   config.Settings
	logger     *zap.Logger
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{stdout: out, stderr: errOut, logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:           "marketauth",
		Short:         "Operate the marketplace authentication core",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to marketauth.yaml (default: ./marketauth.yaml or /etc/marketauth)")

	cmd.AddCommand(
		newKeygenCmd(a),
		newMigrateCmd(a),
		newLockoutDrillCmd(a),
		newReportCmd(a),
	)

	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd
}

func (a *app) load() error {
	settings, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(settings.Logging)
	if err != nil {
		return err
	}
	a.settings = settings
	a.logger = logger
	return nil
}
