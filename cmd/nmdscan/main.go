// Package main provides the nmdscan command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Configuration keys shared by flags, environment and the config file.
const (
	keyAssembly    = "assembly"
	keyGTF         = "gtf"
	keyFASTA       = "fasta"
	keyCacheDir    = "cache_dir"
	keyWorkers     = "workers"
	keyLogLevel    = "log_level"
	keyLogFormat   = "log_format"
	keyResultsDB   = "results_db"
	keyMetricsFile = "metrics_file"
	keyFDR         = "fdr"
	keyDPSI        = "dpsi"
)

const configName = ".nmdscan"

// usageError marks errors caused by invalid command-line usage.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// app carries state shared by all subcommands.
type app struct {
	cfgFile string
	logger  *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{logger: zap.NewNop()}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	_ = a.logger.Sync()
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "Run 'nmdscan --help' for usage.\n")
		return ExitUsage
	}
	return ExitError
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "nmdscan",
		Short: "Predict ORF disruption and NMD from alternative splicing events",
		Long: `nmdscan reconstructs the coding sequence of every transcript touched by an
rMATS splicing event with and without the event exon, and reports whether the
alternative isoform truncates the protein and is a likely target of
nonsense-mediated decay.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initConfig(); err != nil {
				return err
			}
			return a.initLogger()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "Config file (default ~/.nmdscan.yaml)")
	flags.String("assembly", "GRCh38", "Assembly of downloaded GENCODE files used when --gtf or --fasta is not set")
	flags.String("gtf", "", "Gene annotation GTF (plain or gzipped)")
	flags.String("fasta", "", "Reference genome FASTA (plain or gzipped)")
	flags.String("cache-dir", "", "Directory for the parsed annotation cache (empty disables caching)")
	flags.Int("workers", runtime.NumCPU(), "Number of parallel workers")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.String("results-db", "", "Also store results in this DuckDB database")
	flags.String("metrics-file", "", "Write Prometheus metrics to this textfile")

	bindFlags(flags, map[string]string{
		keyAssembly:    "assembly",
		keyGTF:         "gtf",
		keyFASTA:       "fasta",
		keyCacheDir:    "cache-dir",
		keyWorkers:     "workers",
		keyLogLevel:    "log-level",
		keyLogFormat:   "log-format",
		keyResultsDB:   "results-db",
		keyMetricsFile: "metrics-file",
	})

	root.AddCommand(
		a.analyzeCommand(),
		a.batchCommand(),
		a.downloadCommand(),
		a.filterCommand(),
		a.indexCommand(),
		a.runsCommand(),
		newConfigCmd(),
	)
	return root
}

// bindFlags binds configuration keys to flags. A flag set on the command line
// takes precedence over the environment and the config file.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		// BindPFlag only fails on a nil flag.
		_ = viper.BindPFlag(key, fs.Lookup(name))
	}
}

// initConfig reads the config file and the NMDSCAN_* environment.
func (a *app) initConfig() error {
	if a.cfgFile != "" {
		viper.SetConfigFile(a.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("NMDSCAN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// initLogger builds the process logger from the log_level and log_format keys.
func (a *app) initLogger() error {
	logger, err := newLogger(viper.GetString(keyLogLevel), viper.GetString(keyLogFormat))
	if err != nil {
		return &usageError{err: err}
	}
	a.logger = logger
	return nil
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	var cfg zap.Config
	switch format {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console", "":
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("invalid log format %q (expected console or json)", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// defaultConfigPath returns ~/.nmdscan.yaml.
func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, configName+".yaml"), nil
}
