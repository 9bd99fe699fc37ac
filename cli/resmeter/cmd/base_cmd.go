package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type resmeterApp struct {
	baseCmd    *cobra.Command
	baseConfig *baseConfiguration
}

// New creates the resmeter application, "logF" builds the logger once the
// logging configuration has been resolved.
func New(logF LoggerFactory) *resmeterApp {
	baseCmd, baseConfig := newBaseCmd(logF)
	return &resmeterApp{baseCmd: baseCmd, baseConfig: baseConfig}
}

// Execute runs the command line and shuts down the metric exporters.
func (a *resmeterApp) Execute(ctx context.Context) (err error) {
	defer func() {
		if a.baseConfig.observe != nil {
			err = errors.Join(err, a.baseConfig.observe.Shutdown())
		}
	}()

	return a.addAndExecuteCommand(ctx)
}

func (a *resmeterApp) addAndExecuteCommand(ctx context.Context) error {
	a.baseCmd.AddCommand(
		newGenesisCmd(a.baseConfig),
		newAccountCmd(a.baseConfig),
		newBillCmd(a.baseConfig),
		newServeCmd(a.baseConfig),
	)
	return a.baseCmd.ExecuteContext(ctx)
}

func newBaseCmd(logF LoggerFactory) (*cobra.Command, *baseConfiguration) {
	config := &baseConfiguration{loggerBuilder: logF}
	baseCmd := &cobra.Command{
		Use:           "resmeter",
		Short:         "The resource metering CLI",
		Long:          `The resmeter CLI bills bandwidth and energy of transactions against the account ledger and serves the account resources over REST.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		// subcommands do not define their own pre-run so this one runs for all of them
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.setup(cmd); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			return nil
		},
	}
	config.addConfigurationFlags(baseCmd)

	return baseCmd, config
}

/*
setup resolves the flag values of "cmd" (flag > RM_* environment variable >
config file), then creates the logger and the metric exporter.
*/
func (config *baseConfiguration) setup(cmd *cobra.Command) error {
	config.resolveLocations()
	v, err := config.readConfigFile()
	if err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}
	if err := applyConfig(cmd.Flags(), v); err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}

	log, err := config.initLogger(cmd)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	metrics, err := cmd.Flags().GetString(keyMetrics)
	if err != nil {
		return fmt.Errorf("reading flag %q: %w", keyMetrics, err)
	}
	if config.observe, err = newObservability(metrics, log); err != nil {
		return fmt.Errorf("initializing observability: %w", err)
	}
	return nil
}

// readConfigFile loads the config file into viper, missing file is not an error.
func (config *baseConfiguration) readConfigFile() (*viper.Viper, error) {
	v := viper.New()
	if !config.configFileExists() {
		return v, nil
	}
	v.SetConfigFile(config.CfgFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", config.CfgFile, err)
	}
	return v, nil
}

/*
applyConfig sets the flags which were not given on the command line from the
environment (--log-level is read from RM_LOG_LEVEL) or from the config file.
"home" and "config" are resolved before the config file can be read so they
are skipped.
*/
func applyConfig(flags *pflag.FlagSet, v *viper.Viper) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == keyHome || f.Name == keyConfig {
			return
		}
		if err := v.BindEnv(f.Name, flagEnvKey(f.Name)); err != nil {
			errs = append(errs, fmt.Errorf("binding env to flag %q: %w", f.Name, err))
			return
		}
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := flags.Set(f.Name, fmt.Sprint(v.Get(f.Name))); err != nil {
			errs = append(errs, fmt.Errorf("setting flag %q value: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}
