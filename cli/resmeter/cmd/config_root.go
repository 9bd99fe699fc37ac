package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/resmeter/resmeter/logger"
	"github.com/resmeter/resmeter/observability"
)

type (
	LoggerFactory func(cfg *logger.LogConfiguration) (*slog.Logger, error)

	baseConfiguration struct {
		// resmeter home directory, RM_HOME
		HomeDir string
		// config file, relative path is resolved against HomeDir
		CfgFile string
		// logger config file, relative path is resolved against HomeDir
		LogCfgFile string

		loggerBuilder LoggerFactory
		observe       *observability.Observability
	}
)

const (
	envPrefix = "RM"

	defaultConfigFile       = "config.props"
	defaultResmeterDir      = ".resmeter"
	defaultLoggerConfigFile = "logger-config.yaml"
	defaultDBFile           = "ledger.db"

	keyHome    = "home"
	keyConfig  = "config"
	keyMetrics = "metrics"

	flagNameLoggerCfgFile = "logger-config"
	flagNameLogOutputFile = "log-file"
	flagNameLogLevel      = "log-level"
	flagNameLogFormat     = "log-format"
)

func (r *baseConfiguration) addConfigurationFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&r.HomeDir, keyHome, "", fmt.Sprintf("resmeter home directory, RM_HOME (default is %s)", resmeterHomeDir()))
	flags.StringVar(&r.CfgFile, keyConfig, "", fmt.Sprintf("config file (default is $RM_HOME/%s)", defaultConfigFile))
	flags.String(keyMetrics, "", "metrics exporter, disabled when not set. One of: stdout, prometheus")

	flags.StringVar(&r.LogCfgFile, flagNameLoggerCfgFile, defaultLoggerConfigFile, "logger config file, relative path is resolved against $RM_HOME")
	// the log flags have no defaults, a value set means it overrides the logger config file
	flags.String(flagNameLogOutputFile, "", "log file path or one of the special values: stdout, stderr, discard")
	flags.String(flagNameLogLevel, "", "logging level, one of: DEBUG, INFO, WARN, ERROR")
	flags.String(flagNameLogFormat, "", "log format, one of: text, json, console, ecs")
}

/*
resolveLocations sets the home directory and the config file from the flag,
RM_HOME / RM_CONFIG environment variable or the default, in that order.
*/
func (r *baseConfiguration) resolveLocations() {
	r.HomeDir = firstNonEmpty(r.HomeDir, os.Getenv(envKey(keyHome)), resmeterHomeDir())
	r.CfgFile = inHomeDir(r.HomeDir, firstNonEmpty(r.CfgFile, os.Getenv(envKey(keyConfig)), defaultConfigFile))
}

func (r *baseConfiguration) loggerCfgFile() string {
	return inHomeDir(r.HomeDir, r.LogCfgFile)
}

func (r *baseConfiguration) configFileExists() bool {
	_, err := os.Stat(r.CfgFile)
	return err == nil
}

// dbFilename returns "file" when set, otherwise the ledger database in the home directory.
func (r *baseConfiguration) dbFilename(file string) string {
	return firstNonEmpty(file, filepath.Join(r.HomeDir, defaultDBFile))
}

/*
loggerConfig loads the logger config file and overrides it's values with the
log flags set on the command line. Only the default config file may be missing.
*/
func (r *baseConfiguration) loggerConfig(cmd *cobra.Command) (*logger.LogConfiguration, error) {
	cfg := &logger.LogConfiguration{}
	cfgFile := filepath.Clean(r.loggerCfgFile())
	switch f, err := os.Open(cfgFile); {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decoding logger configuration (%s): %w", cfgFile, err)
		}
	case errors.Is(err, os.ErrNotExist) && cfgFile == filepath.Join(r.HomeDir, defaultLoggerConfigFile):
	default:
		return nil, fmt.Errorf("opening logger configuration file: %w", err)
	}

	overrides := map[string]*string{
		flagNameLogLevel:      &cfg.Level,
		flagNameLogFormat:     &cfg.Format,
		flagNameLogOutputFile: &cfg.OutputPath,
	}
	for name, value := range overrides {
		if !cmd.Flags().Changed(name) {
			continue
		}
		v, err := cmd.Flags().GetString(name)
		if err != nil {
			return nil, fmt.Errorf("reading flag %q: %w", name, err)
		}
		*value = v
	}
	return cfg, nil
}

func (r *baseConfiguration) initLogger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := r.loggerConfig(cmd)
	if err != nil {
		return nil, err
	}
	l, err := r.loggerBuilder(cfg)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return l, nil
}

func envKey(key string) string {
	return strings.ToUpper(envPrefix + "_" + key)
}

// flagEnvKey returns the environment variable of the flag, ie RM_LOG_LEVEL for "log-level".
func flagEnvKey(flagName string) string {
	return envKey(strings.ReplaceAll(flagName, "-", "_"))
}

func inHomeDir(homeDir, file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(homeDir, file)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resmeterHomeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return defaultResmeterDir
	}
	return filepath.Join(dir, defaultResmeterDir)
}
