package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/vizdiff/vizdiff/internal/artifact"
	"github.com/vizdiff/vizdiff/internal/capture"
	"github.com/vizdiff/vizdiff/internal/discovery"
	"github.com/vizdiff/vizdiff/internal/pipeline"
	"github.com/vizdiff/vizdiff/internal/status"
	"github.com/vizdiff/vizdiff/internal/webhook"
	"github.com/vizdiff/vizdiff/pkg/config"
)

// pipelineRunner executes one pipeline run per accepted webhook event. The
// base run environment supplies the worker and token; everything
// event-scoped comes from the request.
type pipelineRunner struct {
	cfg     *config.Config
	baseRun config.Run
}

func (r *pipelineRunner) Run(ctx context.Context, req webhook.RunRequest) error {
	run := r.baseRun
	run.Repository = req.Repository
	run.PRNumber = req.PRNumber
	run.BaseRef = req.BaseRef
	run.BeforeBaseURL = req.BeforeBaseURL
	run.AfterBaseURL = req.AfterBaseURL
	run.RunID = uuid.NewString()[:8]

	// Concurrent runs each get their own screenshot directory.
	cfg := *r.cfg
	cfg.Capture.OutputDir = filepath.Join(r.cfg.Capture.OutputDir,
		fmt.Sprintf("pr-%d-run-%s", run.PRNumber, run.RunID))

	worker := capture.NewWorkerClient(run.WorkerURL, run.WorkerAPIKey)
	p := pipeline.New(&cfg, run,
		discovery.NewClient(),
		capture.NewOrchestrator(worker, cfg.Capture),
		func(ctx context.Context) (artifact.Store, error) {
			return artifact.NewStore(ctx, cfg.Artifacts, run)
		},
		func() (pipeline.StatusPublisher, error) {
			return status.NewPublisher(run.GitHubToken, run.Repository, run.PRNumber)
		},
	)

	_, err := p.Run(ctx, pipeline.Options{
		Changed:            req.Changed,
		ChangedUnavailable: req.ChangedUnavailable,
	})
	return err
}
