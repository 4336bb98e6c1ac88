package sync

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// Runner executes one vendor's sync. The subprocess runner isolates each
// vendor in its own process so a crashing or leaking vendor integration cannot
// take down the service; the in-process runner is the fallback for
// single-binary deployments and tests.
type Runner interface {
	Run(ctx context.Context, vendorName string) error
}

// InProcessRunner runs the sync inside the calling process.
type InProcessRunner struct {
	svc *Service
}

// NewInProcessRunner wraps the service as a Runner.
func NewInProcessRunner(svc *Service) *InProcessRunner {
	return &InProcessRunner{svc: svc}
}

func (r *InProcessRunner) Run(ctx context.Context, vendorName string) error {
	_, err := r.svc.SyncVendor(ctx, vendorName)
	return err
}

// SubprocessRunner spawns the syncer binary per vendor.
type SubprocessRunner struct {
	binary string
	logger *zap.Logger
}

// NewSubprocessRunner builds a runner around the syncer binary path.
func NewSubprocessRunner(binary string, logger *zap.Logger) *SubprocessRunner {
	return &SubprocessRunner{binary: binary, logger: logger}
}

func (r *SubprocessRunner) Run(ctx context.Context, vendorName string) error {
	cmd := exec.CommandContext(ctx, r.binary, "--vendor", vendorName)
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	r.logger.Info("starting sync worker",
		zap.String("vendor", vendorName), zap.String("binary", r.binary))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sync worker for %s: %w", vendorName, err)
	}
	return nil
}

// NewRunner picks the subprocess runner when a worker binary is configured.
func NewRunner(svc *Service, workerBinary string, logger *zap.Logger) Runner {
	if workerBinary != "" {
		return NewSubprocessRunner(workerBinary, logger)
	}
	return NewInProcessRunner(svc)
}
