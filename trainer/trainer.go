package trainer

import (
	"errors"
	"fmt"
	"strings"
)

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

type JobInfo struct {
	Name   string
	Status JobStatus
}

type JobLog struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Job describes one external trainer invocation.
type Job struct {
	Name string

	// Path to the serialized TrainConfig, resolvable by the trainer
	// process (shared storage).
	ConfigPath string

	Entrypoint string

	Resources JobOptions
}

// Client launches and supervises trainer jobs. Implementations run the
// trainer as a local child process or as a kubernetes batch job.
type Client interface {
	StartJob(job Job) error

	StopJob(jobName string) error

	JobInfo(jobName string) (JobInfo, error)

	JobLogs(jobName string) ([]JobLog, error)
}

var ErrJobNotFound = errors.New("job not found")

// ErrOutOfMemory marks a training failure caused by memory exhaustion. These
// are fatal and surfaced to the operator; there is no automatic retry.
var ErrOutOfMemory = errors.New("training job ran out of memory")

func JobExists(client Client, jobName string) (bool, error) {
	_, err := client.JobInfo(jobName)
	if errors.Is(err, ErrJobNotFound) {
		return false, nil
	}
	if err == nil {
		return true, nil
	}
	return false, err
}

func StopJobIfExists(client Client, jobName string) error {
	exists, err := JobExists(client, jobName)
	if err != nil {
		return fmt.Errorf("error checking if job %v exists: %w", jobName, err)
	}

	if exists {
		err := client.StopJob(jobName)
		if err != nil {
			return fmt.Errorf("error stopping job: %w", err)
		}
	}

	return nil
}

var oomPatterns = []string{
	"CUDA out of memory",
	"OutOfMemoryError",
	"exit status 137",
}

// DetectOOM reports whether the job logs indicate memory exhaustion, either a
// CUDA allocator failure or the process killed by the oom killer.
func DetectOOM(logs []JobLog) bool {
	for _, log := range logs {
		for _, pattern := range oomPatterns {
			if strings.Contains(log.Stderr, pattern) || strings.Contains(log.Stdout, pattern) {
				return true
			}
		}
	}
	return false
}
