// Package cli provides the command-line interface for Releasekit
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/releasekit/releasekit/pkg/config"
	"github.com/releasekit/releasekit/pkg/process"
)

var (
	projectRoot     string
	verbosity       string
	noColor         bool
	noNotifications bool

	buildVersion string
	buildCommit  string
	buildDate    string
)

// errUsage marks operator mistakes (bad arguments, unparseable versions)
// so they map to the config/usage exit code
var errUsage = errors.New("usage error")

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "releasekit",
	Short: "Coordinated releases for multi-package repositories",
	Long: `🚀 Releasekit - One-command releases for monorepo packages

Releasekit syncs the version across every file that declares it, runs the
test and build commands, publishes to the configured registries, tags the
commit, and creates the hosted release. If any step fails, everything the
run already published or created is rolled back in reverse order.`,

	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("🚀 Releasekit v%s\n", buildVersion)
			return
		}
		// If no subcommand, show help
		cmd.Help()
	},
}

// Execute runs the CLI. version, commit, and date come from the build's
// ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	// Initialize the root command explicitly (avoiding init())
	initializeRootCommand()

	return rootCmd.Execute()
}

// initializeRootCommand sets up the root command and its flags.
// This replaces the init() function to make initialization explicit and testable.
func initializeRootCommand() {
	cobra.OnInitialize(initEnv)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project-root", ".", "project root directory")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbose", "v", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&noNotifications, "no-notifications", false, "disable desktop notifications")

	rootCmd.Flags().Bool("version", false, "Print version information and quit")

	// Add subcommands
	rootCmd.AddCommand(newReleaseCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLogsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initEnv() {
	// Read in environment variables
	viper.SetEnvPrefix("RELEASEKIT")
	viper.AutomaticEnv()

	if noColor {
		color.NoColor = true
	}
}

// ExitCode maps an Execute error to the process exit code: 0 success,
// 2 configuration or usage problem, 3 missing required tool, 1 anything
// else (stage failures, rollbacks).
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case config.IsInvalidConfig(err), errors.Is(err, errUsage):
		return 2
	case errors.Is(err, process.ErrToolNotFound):
		return 3
	default:
		return 1
	}
}

// Helper functions

func printSuccess(message string) {
	fmt.Printf("🚀 %s %s\n", color.GreenString("[Releasekit]"), message)
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "🚀 %s %s\n", color.RedString("[Releasekit]"), message)
}

func printInfo(message string) {
	fmt.Printf("🚀 %s %s\n", color.CyanString("[Releasekit]"), message)
}

func printWarning(message string) {
	fmt.Printf("🚀 %s %s\n", color.YellowString("[Releasekit]"), message)
}
