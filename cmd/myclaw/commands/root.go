// Package commands provides the CLI commands for myclaw.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/myclaw-dev/myclaw/internal/config"
	"github.com/myclaw-dev/myclaw/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Version information set at build time.
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs   bool
	logLevel    string
	logFile     bool
	showConfig  bool
	globalModel string
	configPath  string
)

var rootCmd = &cobra.Command{
	Use:   "myclaw",
	Short: "myclaw - an autonomous coding agent loop",
	Long: `myclaw drives a single agent turn at a time: it loads a run
configuration, resolves the credential-profile failover chain, and
iterates the provider/tool loop until the model replies without a
further tool call.

Run 'myclaw run "<message>"' to start or continue a session.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.Config{
			Level:     logging.ParseLevel(logLevel),
			Output:    os.Stderr,
			Pretty:    printLogs,
			LogToFile: logFile,
			LogDir:    config.GetPaths().LogDir(),
		}

		if !printLogs && !logFile {
			logCfg.Level = logging.FatalLevel
		}

		logging.Init(logCfg)

		if logFile {
			logging.Info().
				Str("version", Version).
				Str("logFile", logging.GetLogFilePath()).
				Msg("myclaw started with file logging")
		}

		if showConfig {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}

			jsonData, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling config: %v\n", err)
				os.Exit(1)
			}

			fmt.Println(string(jsonData))
			os.Exit(0)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "Write logs to a timestamped file in the state log directory")
	rootCmd.PersistentFlags().BoolVar(&showConfig, "show-config", false, "Print the loaded run configuration as JSON and exit")
	rootCmd.PersistentFlags().StringVarP(&globalModel, "model", "m", "", "Model to use, overriding the config file")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the run config file")

	rootCmd.SetVersionTemplate(fmt.Sprintf("myclaw %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// resolveConfigPath returns the --config flag value, falling back to
// the global config path under the XDG config directory.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.GlobalConfigPath()
}

// GetGlobalModel returns the global --model flag value.
func GetGlobalModel() string {
	return globalModel
}
