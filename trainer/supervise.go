package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"apidocbench/registry"
	"apidocbench/storage"
	"apidocbench/utils/logging"
)

// Jobs refuse to launch when the shared disk is nearly full, since a
// checkpoint write failing mid training wastes the whole run.
const minFreeDiskFraction = 0.05

// Supervisor owns the lifecycle of a training run. It persists the config to
// shared storage, launches the trainer job, polls it to a terminal state, and
// records the produced artifact.
type Supervisor struct {
	Registry *registry.Registry
	Storage  storage.Storage
	Client   Client

	PollInterval time.Duration
}

func JobName(model string, runId uuid.UUID) string {
	return fmt.Sprintf("train-%v-%v", model, runId)
}

func (s *Supervisor) checkDiskUsage() error {
	usage, err := s.Storage.Usage()
	if err != nil {
		return fmt.Errorf("error checking disk usage: %w", err)
	}
	if usage.TotalBytes == 0 {
		return nil
	}
	free := float64(usage.FreeBytes) / float64(usage.TotalBytes)
	if free < minFreeDiskFraction {
		slog.Error("insufficient free disk space for training", "free_bytes", usage.FreeBytes, "total_bytes", usage.TotalBytes)
		return fmt.Errorf("insufficient disk space: %.1f%% free", free*100)
	}
	return nil
}

// Train runs a training job to completion. It blocks until the job reaches a
// terminal state or ctx is cancelled. The returned run id is valid even when
// training fails, so logs and status remain queryable.
func (s *Supervisor) Train(ctx context.Context, config TrainConfig) (uuid.UUID, error) {
	if err := config.Validate(); err != nil {
		return uuid.Nil, fmt.Errorf("invalid train config: %w", err)
	}

	if err := s.checkDiskUsage(); err != nil {
		return uuid.Nil, err
	}

	run, err := s.Registry.CreateRun(registry.TrainRun, config.Model, "")
	if err != nil {
		return uuid.Nil, fmt.Errorf("error creating training run: %w", err)
	}
	config.RunId = run.Id

	slog.Info("starting training run", "code", logging.MODEL_TRAIN, "run_id", run.Id, "model", config.Model)

	configPath, err := s.saveConfig(config)
	if err != nil {
		s.fail(run.Id, err)
		return run.Id, err
	}

	jobName := JobName(config.Model, run.Id)

	if err := StopJobIfExists(s.Client, jobName); err != nil {
		s.fail(run.Id, err)
		return run.Id, fmt.Errorf("error stopping stale job: %w", err)
	}

	job := Job{
		Name:       jobName,
		ConfigPath: filepath.Join(s.Storage.Location(), configPath),
		Entrypoint: config.Entrypoint(),
		Resources:  config.JobOptions,
	}

	if err := s.Client.StartJob(job); err != nil {
		s.fail(run.Id, err)
		return run.Id, fmt.Errorf("error starting training job: %w", err)
	}

	if err := s.Registry.UpdateStatus(run.Id, registry.StatusInProgress); err != nil {
		return run.Id, err
	}

	status, err := s.await(ctx, jobName)
	if err != nil {
		s.fail(run.Id, err)
		return run.Id, err
	}

	if status == StatusFailed {
		err := s.recordFailure(run.Id, jobName)
		s.fail(run.Id, err)
		return run.Id, err
	}

	kind := registry.CheckpointArtifact
	if config.Model == AdapterModel {
		kind = registry.AdapterArtifact
	}
	if _, err := s.Registry.RecordArtifact(run.Id, kind, config.OutputDir); err != nil {
		s.fail(run.Id, err)
		return run.Id, err
	}

	if err := s.Registry.UpdateStatus(run.Id, registry.StatusComplete); err != nil {
		return run.Id, err
	}

	slog.Info("training run complete", "code", logging.MODEL_SAVE, "run_id", run.Id, "model", config.Model, "output_dir", config.OutputDir)
	return run.Id, nil
}

func (s *Supervisor) saveConfig(config TrainConfig) (string, error) {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error serializing train config: %w", err)
	}

	path := filepath.Join("runs", config.RunId.String(), "train_config.json")
	if err := s.Storage.Write(path, bytes.NewReader(data)); err != nil {
		slog.Error("error writing train config", "run_id", config.RunId, "error", err)
		return "", fmt.Errorf("error writing train config: %w", err)
	}
	return path, nil
}

func (s *Supervisor) await(ctx context.Context, jobName string) (JobStatus, error) {
	interval := s.PollInterval
	if interval == 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.Client.StopJob(jobName); err != nil {
				slog.Error("error stopping job on cancellation", "job_name", jobName, "error", err)
			}
			return StatusFailed, ctx.Err()
		case <-ticker.C:
			info, err := s.Client.JobInfo(jobName)
			if err != nil {
				return StatusFailed, fmt.Errorf("error polling job %v: %w", jobName, err)
			}
			if info.Status == StatusSucceeded || info.Status == StatusFailed {
				return info.Status, nil
			}
		}
	}
}

// recordFailure copies the trainer logs into the registry and classifies the
// failure. Out of memory failures get a distinct error so callers do not
// retry them.
func (s *Supervisor) recordFailure(runId uuid.UUID, jobName string) error {
	logs, err := s.Client.JobLogs(jobName)
	if err != nil {
		slog.Error("error fetching logs for failed job", "job_name", jobName, "error", err)
		return fmt.Errorf("training job %v failed, logs unavailable: %w", jobName, err)
	}

	for _, log := range logs {
		if log.Stderr != "" {
			if err := s.Registry.Log(runId, "error", log.Stderr); err != nil {
				slog.Error("error storing job logs", "run_id", runId, "error", err)
			}
		}
	}

	if DetectOOM(logs) {
		slog.Error("training job ran out of memory", "job_name", jobName)
		return fmt.Errorf("training job %v failed: %w", jobName, ErrOutOfMemory)
	}

	return fmt.Errorf("training job %v failed, see run logs", jobName)
}

func (s *Supervisor) fail(runId uuid.UUID, cause error) {
	if cause != nil {
		if err := s.Registry.Log(runId, "error", cause.Error()); err != nil {
			slog.Error("error storing failure log", "run_id", runId, "error", err)
		}
	}
	if err := s.Registry.UpdateStatus(runId, registry.StatusFailed); err != nil {
		slog.Error("error marking run failed", "run_id", runId, "error", err)
	}
}
