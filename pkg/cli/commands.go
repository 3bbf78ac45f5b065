package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/releasekit/releasekit/pkg/config"
	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/runctx"
	"github.com/releasekit/releasekit/pkg/state"
	"github.com/releasekit/releasekit/pkg/types"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <package>",
		Short: "Validate a package's release configuration",
		Long:  `Resolve the package's release configuration, apply environment overrides, and report every validation error.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args[0])
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List packages with a release configuration",
		Long:  `List every package that has a config file under the release-configs directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList()
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [package]",
		Short: "Show recent and in-flight release runs",
		Long:  `Display the persisted run record of every package that has been released from this checkout.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			packageName := ""
			if len(args) > 0 {
				packageName = args[0]
			}
			return runStatus(packageName)
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect resolved release configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <package>",
			Short: "Print the fully resolved configuration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigShow(args[0])
			},
		},
		&cobra.Command{
			Use:   "path <package>",
			Short: "Print the config file locations probed for a package",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigPath(args[0])
			},
		},
	)

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Releasekit",
		Long:  `Print the version number of Releasekit`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("🚀 Releasekit v%s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
		},
	}
}

// Implementation functions

func newResolver() (*config.Resolver, *runctx.RuntimeContext, error) {
	rc, err := runctx.New(projectRoot)
	if err != nil {
		return nil, nil, err
	}
	return config.NewResolver(rc, logger.CreateLogger("", verbosity)), rc, nil
}

func runValidate(packageName string) error {
	resolver, _, err := newResolver()
	if err != nil {
		return err
	}

	cfg, err := resolver.Resolve(packageName)
	if err != nil {
		printError(fmt.Sprintf("Configuration is invalid: %v", err))
		return err
	}

	targets := describeTargets(cfg, types.ReleaseOptions{IncludeDocker: true})
	printSuccess(fmt.Sprintf("Configuration for %s is valid (%d sync file(s), targets: %s)",
		cfg.Display(), len(cfg.FilesToSync), strings.Join(targets, ", ")))
	return nil
}

func runList() error {
	resolver, _, err := newResolver()
	if err != nil {
		return err
	}

	names, err := resolver.Discover()
	if err != nil {
		return fmt.Errorf("failed to discover configs: %w", err)
	}
	if len(names) == 0 {
		printWarning("No release configs found. Add files under release-configs/ or release a package by convention.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PACKAGE\tDIR\tTARGETS\tSYNC FILES")
	fmt.Fprintln(w, "-------\t---\t-------\t----------")

	for _, name := range names {
		cfg, err := resolver.Resolve(name)
		if err != nil {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, "-", color.RedString("invalid"), "-")
			continue
		}

		targets := describeTargets(cfg, types.ReleaseOptions{IncludeDocker: true})
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			cfg.PackageName,
			cfg.PackageDir,
			strings.Join(targets, ","),
			len(cfg.FilesToSync),
		)
	}

	w.Flush()
	return nil
}

func runStatus(packageName string) error {
	rc, err := runctx.New(projectRoot)
	if err != nil {
		return err
	}

	sm := state.NewStateManager(rc, logger.CreateLogger("", verbosity))
	runs, err := sm.DiscoverRuns()
	if err != nil {
		return fmt.Errorf("failed to discover runs: %w", err)
	}

	if packageName != "" {
		record, ok := runs[packageName]
		if !ok {
			printInfo(fmt.Sprintf("No release runs recorded for %s", packageName))
			return nil
		}
		runs = map[string]*state.RunRecord{packageName: record}
	}
	if len(runs) == 0 {
		printInfo("No release runs recorded")
		return nil
	}

	names := make([]string, 0, len(runs))
	for name := range runs {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PACKAGE\tVERSION\tSTAGE\tSTARTED\tLAST ERROR")
	fmt.Fprintln(w, "-------\t-------\t-----\t-------\t----------")

	for _, name := range names {
		record := runs[name]

		lastError := record.LastError
		if lastError == "" {
			lastError = "-"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			record.PackageName,
			record.Version,
			stageColor(record),
			record.StartedAt.Format("2006-01-02 15:04:05"),
			lastError,
		)
	}

	w.Flush()
	return nil
}

func stageColor(record *state.RunRecord) string {
	stage := string(record.Stage)
	switch {
	case record.Stage == types.StageDone:
		return color.GreenString(stage)
	case record.Stage == types.StageFailed:
		return color.RedString(stage)
	case record.Stage == types.StageRolledBack:
		return color.YellowString(stage)
	case record.InProgress():
		return color.CyanString(stage + " (running)")
	default:
		return stage
	}
}

func runConfigShow(packageName string) error {
	resolver, _, err := newResolver()
	if err != nil {
		return err
	}

	cfg, err := resolver.Resolve(packageName)
	if err != nil {
		printError(fmt.Sprintf("Configuration error: %v", err))
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runConfigPath(packageName string) error {
	resolver, _, err := newResolver()
	if err != nil {
		return err
	}

	for _, path := range resolver.LookupPaths(packageName) {
		marker := " "
		if _, err := os.Stat(path); err == nil {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, path)
	}
	return nil
}
