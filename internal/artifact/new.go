package artifact

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vizdiff/vizdiff/pkg/config"
)

// NewStore builds the configured artifact backend for one run. Every
// backend namespaces by change request and run identifier so repeated runs
// stay idempotent.
func NewStore(ctx context.Context, cfg config.ArtifactConfig, run config.Run) (Store, error) {
	prefix := fmt.Sprintf("pr-%d/run-%s", run.PRNumber, run.RunID)

	switch cfg.Backend {
	case "", "github":
		return NewGitHubStore(run.GitHubToken, run.Repository, run.BaseRef, run.PRNumber, run.RunID)
	case "s3":
		return NewS3Store(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			KeyPrefix: prefix,
		})
	case "gcs":
		return NewGCSStore(ctx, cfg.GCSBucket, prefix)
	case "local":
		dir := cfg.LocalDir
		if dir == "" {
			dir = ".vizdiff/artifacts"
		}
		return NewLocalStore(filepath.Join(dir, prefix)), nil
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}
