package cli

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config  string
	Verbose bool
	JSON    bool
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "quotamaild",
	Short: "Quotamail - mailbox quota threshold notifications",
	Long: `Quotamail watches mailbox quota usage and mails users when their
occupation crosses a configured threshold.

It receives usage updates from the hosting mail server, tracks which
thresholds each user has already been notified about, and sends at most
one warning email per crossing within the configured grace period.

Usage:
  quotamaild [command] [flags]

Available Commands:
  serve      Start the quotamail server (main mode)
  check      Evaluate a usage figure against the configured thresholds
  history    Show recorded threshold changes for a user

Flags:
  --config string   Path to configuration file (default "config.yaml")
  --verbose         Enable verbose output
  --json            Output in JSON format

Use "quotamaild [command] --help" for more information about a command.`,
}

// InitRoot initializes the root command with global flags
func InitRoot() {
	configPath := os.Getenv("QUOTAMAIL_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", configPath, "Path to configuration file")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")
	RootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format")

	RootCmd.AddCommand(versionCmd)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of quotamail",
	Run: func(cmd *cobra.Command, args []string) {
		info := GetVersionInfo()
		cmd.Println("Quotamail Version:", info.Version)
		cmd.Println("Go Version:", info.GoVersion)
		cmd.Println("OS/Arch:", info.OS+"/"+info.Arch)
	},
}

var globalFlags GlobalFlags

// GetGlobalFlags returns the global flags
func GetGlobalFlags() GlobalFlags {
	return globalFlags
}

// VersionInfo contains version information
type VersionInfo struct {
	Version   string
	GoVersion string
	OS        string
	Arch      string
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
