// Package process runs trainer jobs as local child processes. This is the
// single machine setup: the trainer entrypoints live in a python project
// directory and are invoked as modules with the config path as argument.
package process

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"apidocbench/trainer"
)

type Client struct {
	pythonPath string
	trainerDir string

	mu   sync.Mutex
	jobs map[string]*processJob
}

type processJob struct {
	cmd    *exec.Cmd
	stdout lockedBuffer
	stderr lockedBuffer

	done chan struct{}
	err  error
}

// The process writes its output concurrently with log reads, so the capture
// buffers need locking.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func NewClient(pythonPath, trainerDir string) *Client {
	slog.Info("creating process trainer client", "python_path", pythonPath, "trainer_dir", trainerDir)
	return &Client{
		pythonPath: pythonPath,
		trainerDir: trainerDir,
		jobs:       make(map[string]*processJob),
	}
}

func (c *Client) StartJob(job trainer.Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.jobs[job.Name]; ok {
		select {
		case <-existing.done:
			// finished, can be replaced
		default:
			return fmt.Errorf("job %v is already running", job.Name)
		}
	}

	cmd := exec.Command(c.pythonPath, "-m", "trainers."+job.Entrypoint, "--config", job.ConfigPath)
	cmd.Dir = c.trainerDir

	p := &processJob{cmd: cmd, done: make(chan struct{})}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		slog.Error("error starting trainer process", "job_name", job.Name, "error", err)
		return fmt.Errorf("error starting trainer process for job %v: %w", job.Name, err)
	}

	c.jobs[job.Name] = p

	go func() {
		err := cmd.Wait()
		if err != nil {
			// Surface the exit status in the captured logs so that
			// failure classification (oom killer exits with 137) can
			// work from logs alone.
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				fmt.Fprintf(&p.stderr, "\n%v\n", exitErr)
			}
			p.err = err
		}
		close(p.done)
	}()

	slog.Info("trainer process started", "job_name", job.Name, "pid", cmd.Process.Pid)
	return nil
}

func (c *Client) StopJob(jobName string) error {
	c.mu.Lock()
	p, ok := c.jobs[jobName]
	c.mu.Unlock()

	if !ok {
		return trainer.ErrJobNotFound
	}

	select {
	case <-p.done:
		return nil
	default:
	}

	if err := p.cmd.Process.Kill(); err != nil {
		slog.Error("error killing trainer process", "job_name", jobName, "error", err)
		return fmt.Errorf("error killing trainer process for job %v: %w", jobName, err)
	}
	<-p.done
	return nil
}

func (c *Client) JobInfo(jobName string) (trainer.JobInfo, error) {
	c.mu.Lock()
	p, ok := c.jobs[jobName]
	c.mu.Unlock()

	if !ok {
		return trainer.JobInfo{}, trainer.ErrJobNotFound
	}

	info := trainer.JobInfo{Name: jobName}
	select {
	case <-p.done:
		if p.err != nil {
			info.Status = trainer.StatusFailed
		} else {
			info.Status = trainer.StatusSucceeded
		}
	default:
		info.Status = trainer.StatusRunning
	}

	return info, nil
}

func (c *Client) JobLogs(jobName string) ([]trainer.JobLog, error) {
	c.mu.Lock()
	p, ok := c.jobs[jobName]
	c.mu.Unlock()

	if !ok {
		return nil, trainer.ErrJobNotFound
	}

	return []trainer.JobLog{{Stdout: p.stdout.String(), Stderr: p.stderr.String()}}, nil
}
