package main

import (
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage nmdscan configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.nmdscan.yaml.",
		Example: `  nmdscan config                                 # show all config
  nmdscan config set gtf /data/gencode.v44.gtf.gz  # set the default annotation
  nmdscan config set workers 8                     # set the worker count
  nmdscan config set fdr 0.05                      # set the filter FDR cutoff
  nmdscan config get fasta                         # get a value`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value. Paths are stored as absolute paths, workers as
an integer and the fdr and dpsi thresholds as numbers between 0 and 1.`,
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, args[0])
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	settings := viper.AllSettings()
	if len(settings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "# No configuration set. Config file: ~/.nmdscan.yaml")
		return nil
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

// configParsers converts a value given on the command line to the type
// stored for its key.
var configParsers = map[string]func(string) (any, error){
	keyAssembly:    parseAssembly,
	keyGTF:         parsePath,
	keyFASTA:       parsePath,
	keyCacheDir:    parsePath,
	keyResultsDB:   parsePath,
	keyMetricsFile: parsePath,
	keyWorkers:     parseWorkers,
	keyLogLevel:    parseLogLevel,
	keyLogFormat:   parseLogFormat,
	keyFDR:         parseFraction,
	keyDPSI:        parseFraction,
}

func configKeys() []string {
	keys := make([]string, 0, len(configParsers))
	for k := range configParsers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func checkConfigKey(key string) error {
	if _, ok := configParsers[key]; !ok {
		return usageErrorf("unknown configuration key %q (valid keys: %s)", key, strings.Join(configKeys(), ", "))
	}
	return nil
}

func parseAssembly(v string) (any, error) {
	if _, _, err := gencodeURLs("", v); err != nil {
		return nil, err
	}
	return v, nil
}

func parsePath(v string) (any, error) {
	if v == "" {
		return v, nil
	}
	abs, err := filepath.Abs(v)
	if err != nil {
		return nil, err
	}
	return abs, nil
}

func parseWorkers(v string) (any, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return nil, fmt.Errorf("workers must be a positive integer, got %q", v)
	}
	return n, nil
}

func parseLogLevel(v string) (any, error) {
	if _, err := zapcore.ParseLevel(v); err != nil {
		return nil, fmt.Errorf("invalid log level %q", v)
	}
	return v, nil
}

func parseLogFormat(v string) (any, error) {
	if v != "console" && v != "json" {
		return nil, fmt.Errorf("invalid log format %q (expected console or json)", v)
	}
	return v, nil
}

// parseFraction accepts thresholds in [0, 1].
func parseFraction(v string) (any, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > 1 {
		return nil, fmt.Errorf("expected a number between 0 and 1, got %q", v)
	}
	return f, nil
}

func runConfigSet(cmd *cobra.Command, key, value string) error {
	if err := checkConfigKey(key); err != nil {
		return err
	}
	typed, err := configParsers[key](value)
	if err != nil {
		return &usageError{err: fmt.Errorf("%s: %w", key, err)}
	}
	viper.Set(key, typed)

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		if cfgFile, err = defaultConfigPath(); err != nil {
			return err
		}
	}
	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v in %s\n", key, typed, cfgFile)
	return nil
}

func runConfigGet(cmd *cobra.Command, key string) error {
	if err := checkConfigKey(key); err != nil {
		return err
	}
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), val)
	return nil
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return &usageError{err: err}
	}
	return nil
}
