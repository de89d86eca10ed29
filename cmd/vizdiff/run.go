package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vizdiff/vizdiff/internal/artifact"
	"github.com/vizdiff/vizdiff/internal/capture"
	"github.com/vizdiff/vizdiff/internal/discovery"
	"github.com/vizdiff/vizdiff/internal/pipeline"
	"github.com/vizdiff/vizdiff/internal/status"
	"github.com/vizdiff/vizdiff/pkg/config"
)

func newRunCmd() *cobra.Command {
	var (
		configPath   string
		changedPath  string
		forceFull    bool
		changedFlags []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the full visual regression pipeline",
		Long: `Discovers the component catalog, classifies the change set, captures
before/after screenshots, diffs them, and publishes the report to the
pull request. Run-scoped values come from the environment (see --help
of the root command).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), runOpts{
				configPath:  configPath,
				changedPath: changedPath,
				changed:     changedFlags,
				forceFull:   forceFull,
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: nearest .vizdiff/config.yaml)")
	cmd.Flags().StringVar(&changedPath, "changed-files", "", "File with newline-delimited changed paths, or - for stdin")
	cmd.Flags().StringArrayVar(&changedFlags, "changed", nil, "Changed path (repeatable, alternative to --changed-files)")
	cmd.Flags().BoolVar(&forceFull, "full", false, "Test the entire component catalog regardless of changed files")

	return cmd
}

type runOpts struct {
	configPath  string
	changedPath string
	changed     []string
	forceFull   bool
}

func runRun(ctx context.Context, opts runOpts) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	run, err := config.RunFromEnv()
	if err != nil {
		return err
	}
	if run.WorkerURL == "" {
		return fmt.Errorf("SCREENSHOT_WORKER_URL is required")
	}
	if run.BeforeBaseURL == "" || run.AfterBaseURL == "" {
		return fmt.Errorf("BEFORE_BASE_URL and AFTER_BASE_URL are required")
	}

	pipelineOpts := pipeline.Options{ForceFull: opts.forceFull}
	switch {
	case opts.forceFull:
	case opts.changedPath != "":
		files, err := readChangedFiles(opts.changedPath)
		if err != nil {
			return err
		}
		pipelineOpts.Changed = files
	case len(opts.changed) > 0:
		pipelineOpts.Changed = opts.changed
	default:
		fmt.Fprintln(os.Stderr, "No changed-file list supplied, falling back to a full run")
		pipelineOpts.ChangedUnavailable = true
	}

	p := newPipeline(cfg, run)
	summary, err := p.Run(ctx, pipelineOpts)
	if err != nil {
		return err
	}
	if summary.CaptureFailed > 0 || summary.PublishFailed > 0 {
		fmt.Fprintln(os.Stderr, "Completed with recoverable failures (see log above)")
	}
	return nil
}

// newPipeline assembles the pipeline's collaborators from configuration.
func newPipeline(cfg *config.Config, run config.Run) *pipeline.Pipeline {
	worker := capture.NewWorkerClient(run.WorkerURL, run.WorkerAPIKey)
	return pipeline.New(cfg, run,
		discovery.NewClient(),
		capture.NewOrchestrator(worker, cfg.Capture),
		func(ctx context.Context) (artifact.Store, error) {
			return artifact.NewStore(ctx, cfg.Artifacts, run)
		},
		func() (pipeline.StatusPublisher, error) {
			return status.NewPublisher(run.GitHubToken, run.Repository, run.PRNumber)
		},
	)
}
