package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/releasekit/releasekit/internal/pipeline"
	"github.com/releasekit/releasekit/pkg/config"
	"github.com/releasekit/releasekit/pkg/logger"
	"github.com/releasekit/releasekit/pkg/process"
	"github.com/releasekit/releasekit/pkg/runctx"
	"github.com/releasekit/releasekit/pkg/state"
	"github.com/releasekit/releasekit/pkg/types"
)

func newReleaseCmd() *cobra.Command {
	var opts types.ReleaseOptions

	cmd := &cobra.Command{
		Use:   "release <package> <version>",
		Short: "Release one package at the given version",
		Long: `Run the full release pipeline for a package: preflight checks, version
sync, build, publish, version commit, tag, and hosted release. A failed
stage rolls back everything the run already created; an interrupt (Ctrl-C)
stops without rolling back so the release can be re-invoked.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelease(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "run sync, build, and local packaging without publishing anything")
	cmd.Flags().BoolVar(&opts.SkipTests, "skip-tests", false, "skip the test command during preflight")
	cmd.Flags().BoolVar(&opts.SkipBuild, "skip-build", false, "skip the build command")
	cmd.Flags().BoolVar(&opts.IncludeDocker, "docker", false, "also publish the Docker image if the package configures one")
	cmd.Flags().BoolVarP(&opts.NonInteractive, "non-interactive", "y", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&opts.SkipVerify, "skip-verify", false, "skip post-publish registry verification")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "also write structured logs to this file")

	return cmd
}

func runRelease(cmd *cobra.Command, packageName string, rawVersion string, opts types.ReleaseOptions) error {
	version, err := types.ParseVersion(rawVersion)
	if err != nil {
		printError(fmt.Sprintf("Invalid version %q: %v", rawVersion, err))
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	// Required tools are an environment problem, not a release failure
	if err := process.LookPath("git"); err != nil {
		printError("git is required but was not found on PATH")
		return err
	}
	if !opts.DryRun {
		if err := process.LookPath("gh"); err != nil {
			printError("gh is required for hosted releases but was not found on PATH")
			return err
		}
	}

	rc, err := runctx.New(projectRoot)
	if err != nil {
		return err
	}

	log := logger.CreateLogger(opts.LogFile, verbosity)

	cfg, err := config.NewResolver(rc, log).Resolve(packageName)
	if err != nil {
		printError(fmt.Sprintf("Configuration error: %v", err))
		return err
	}

	if opts.DryRun {
		printInfo(fmt.Sprintf("Dry run: %s v%s (nothing will be published)", cfg.Display(), version))
	} else {
		printInfo(fmt.Sprintf("Releasing %s v%s to %s", cfg.Display(), version, strings.Join(describeTargets(cfg, opts), ", ")))
	}

	if !opts.NonInteractive && !opts.DryRun {
		if !confirm(cmd, fmt.Sprintf("Release %s v%s?", cfg.Display(), version)) {
			printWarning("Release aborted")
			return nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := pipeline.NewDependencyFactory(rc, log, cfg, !noNotifications).CreateDefaults()
	if err != nil {
		return err
	}
	defer deps.Journal.Close()

	orch := pipeline.NewOrchestrator(cfg, version, opts, rc, deps, log)
	if err := orch.Run(ctx); err != nil {
		reportFailure(err, orch)
		return err
	}

	if opts.DryRun {
		printSuccess(fmt.Sprintf("Dry run passed for %s v%s", cfg.Display(), version))
	} else {
		printSuccess(fmt.Sprintf("Released %s v%s", cfg.Display(), version))
	}
	if path := orch.ManifestPath(); path != "" {
		printInfo("Manifest: " + path)
	}
	return nil
}

// describeTargets names the destinations this run will publish to
func describeTargets(cfg *types.SubmoduleConfig, opts types.ReleaseOptions) []string {
	flags := cfg.ArtifactSet()

	var targets []string
	if flags.Npm {
		targets = append(targets, "npm")
	}
	if flags.Docker && opts.IncludeDocker {
		targets = append(targets, "docker")
	}
	if flags.VSCode {
		targets = append(targets, "vscode")
	}
	if flags.Binaries {
		targets = append(targets, "binaries")
	}
	if len(targets) == 0 {
		targets = append(targets, "github release only")
	}
	return targets
}

func confirm(cmd *cobra.Command, question string) bool {
	fmt.Printf("%s [y/N] ", question)

	reader := bufio.NewReader(cmd.InOrStdin())
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func reportFailure(err error, orch *pipeline.Orchestrator) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		printWarning("Release interrupted; nothing was rolled back. Re-run the same command to resume.")
		return
	}
	if errors.Is(err, state.ErrRunInProgress) {
		printError("Another release for this package is already running")
		return
	}

	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		printError(fmt.Sprintf("Release failed at %s: %s", stageErr.Stage, stageErr.Message))
		if stageErr.Hint != "" {
			printInfo("Try: " + stageErr.Hint)
		}
	} else {
		printError(fmt.Sprintf("Release failed: %v", err))
	}

	if orch.State() != nil && orch.State().Stage == types.StageRolledBack {
		printWarning("All confirmed changes were rolled back")
	}
	if path := orch.ManifestPath(); path != "" {
		printInfo("Manifest: " + path)
	}
}
