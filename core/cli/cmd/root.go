package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dataask/dataask/core/cli/internal"
	"github.com/dataask/dataask/core/config"
	"github.com/dataask/dataask/core/logger"
)

// version stores the version string, set via SetVersion()
var version = "dev"

// SetVersion sets the version string (called from main.init())
func SetVersion(v string) {
	version = v
}

// GetVersion returns the current version string
func GetVersion() string {
	return version
}

var (
	configFile  string
	logLevel    int
	verbose     bool
	logTags     string
	logFile     bool
	showVersion bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "dataask",
	Short:         "dataask\nScheduled queries and ad-hoc SQL over your connected databases",
	SilenceUsage:  true,
	SilenceErrors: true, // Errors are already logged, suppress Cobra's error output
}

// completionCmd is a hidden command used by install scripts to generate shell completions
var completionCmd = &cobra.Command{
	Use:          "completion [bash|zsh|fish|powershell]",
	Short:        "Generate shell completion script",
	Hidden:       true,
	ValidArgs:    []string{"bash", "zsh", "fish", "powershell"},
	Args:         cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletion(os.Stdout)
		default:
			return fmt.Errorf("unsupported shell: %s", args[0])
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(completionCmd)
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Print the installed version and exit")

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "dataask.yaml", "Path to the config file")
	pf.IntVar(&logLevel, "log-level", 0, "Log level: 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG (overrides config file)")
	pf.BoolVar(&verbose, "verbose", false, "Enable verbose logging (sets log level to DEBUG)")
	pf.StringVar(&logTags, "log-tags", "", "Filter logs by tags (comma-separated, use -tag to exclude). Overrides DATAASK_LOG_TAGS env var")
	pf.BoolVar(&logFile, "log-file", false, "Stream logs to file in /tmp/.dataask/logs/")

	// Root command should only print help.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		}
		return cmd.Help()
	}
}

// loadConfig reads the config file and applies the logging flags.
func loadConfig() (*config.Config, error) {
	cfg, err := internal.LoadConfig(configFile)
	if err != nil {
		return nil, logger.WithTag("config", err)
	}

	level, err := internal.ResolveLogLevel(verbose, logLevel, cfg)
	if err != nil {
		return nil, logger.WithTag("config", err)
	}
	logger.SetLogLevel(level)
	if tags := internal.ResolveLogTags(logTags, cfg); tags != "" {
		logger.SetTagFilter(tags)
	}

	if logFile {
		path, err := logger.SetLogFile()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize log file: %w", err)
		}
		logger.New("main").Infof("Log file: %s", path)
	}
	return cfg, nil
}
