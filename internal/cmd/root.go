package cmd

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adamancini/forceupdate/internal/logging"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	logLevel     string
	logFile      string
	verbose      bool
	quiet        bool
)

// Build information, set by Execute.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// Execute runs the forceupdate command line. Commands stop when ctx is done.
func Execute(ctx context.Context, version, commit, date string) error {
	buildVersion, buildCommit, buildDate = version, commit, date
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "forceupdate",
		Short: "Check whether an application must be force-updated",
		Long: `forceupdate compares an installed application version against the version
published in its marketplace and the minimum supported version declared in a
remote manifest.

Describe the application in a Forcefile, then run forceupdate check or
forceupdate watch.`,
		Version:      buildVersion,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogging()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to Forcefile")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (default from Forcefile, else warn)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log destination: console or a file path (default from Forcefile, else console)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	// Add subcommands
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newCompareCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"trace", "debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}

// initLogging applies the global logging flags. A Forcefile loaded later may
// fill in whatever the flags left unset, see applyLogConfig.
func initLogging() error {
	if verbose && quiet {
		return fmt.Errorf("--verbose and --quiet are mutually exclusive")
	}
	return logging.InitLog(effectiveLogLevel(""), effectiveLogFile(""))
}

// effectiveLogLevel resolves the log level: -v and -q win, then --log-level,
// then the Forcefile, then warn.
func effectiveLogLevel(fromFile string) string {
	switch {
	case verbose:
		return log.DebugLevel.String()
	case quiet:
		return log.ErrorLevel.String()
	case logLevel != "":
		return logLevel
	case fromFile != "":
		return fromFile
	default:
		return log.WarnLevel.String()
	}
}

func effectiveLogFile(fromFile string) string {
	switch {
	case logFile != "":
		return logFile
	case fromFile != "":
		return fromFile
	default:
		return logging.Console
	}
}
