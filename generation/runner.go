package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"apidocbench/dataset"
	"apidocbench/llm"
	"apidocbench/registry"
	"apidocbench/storage"
	"apidocbench/telemetry"
	"apidocbench/utils/logging"
)

// Prediction is one generated description paired with its reference. Lines
// are appended to the run's generations file as they are produced, so a
// partial file from an interrupted run is still usable.
type Prediction struct {
	ExampleId int    `json:"example_id"`
	Model     string `json:"model"`
	Setting   string `json:"setting"`

	Input      string `json:"input"`
	Reference  string `json:"reference"`
	Prediction string `json:"prediction"`
}

type Runner struct {
	Registry *registry.Registry
	Storage  storage.Storage
	LLM      llm.LLM

	// Endpoint-side model name, e.g. a checkpoint path or deployed model
	// id. Distinct from the model identity recorded in the registry.
	EndpointModel string

	Model   string
	Setting string

	MaxTokens int
	Seed      *int
}

// Run generates a prediction for every record in the test file and records
// the generations artifact. Individual failed or empty generations are
// logged and counted but do not abort the run.
func (r *Runner) Run(ctx context.Context, testFile string) (uuid.UUID, error) {
	if !ValidSetting(r.Setting) {
		return uuid.Nil, fmt.Errorf("unknown generation setting '%v'", r.Setting)
	}

	records, err := r.readTestSet(testFile)
	if err != nil {
		return uuid.Nil, err
	}

	run, err := r.Registry.CreateRun(registry.GenerateRun, r.Model, r.Setting)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error creating generation run: %w", err)
	}

	slog.Info("starting generation run", "code", logging.MODEL_GENERATE,
		"run_id", run.Id, "model", r.Model, "setting", r.Setting, "examples", len(records))

	if err := r.Registry.UpdateStatus(run.Id, registry.StatusInProgress); err != nil {
		return run.Id, err
	}

	outputPath := filepath.Join("runs", run.Id.String(), "generations.jsonl")

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			r.fail(run.Id, err)
			return run.Id, err
		}

		prediction, err := r.generate(ctx, record.InputText)
		if err != nil {
			// Cancellation aborts the run; any other request error is
			// a failed generation and scores zero like an empty one.
			if ctx.Err() != nil {
				r.fail(run.Id, ctx.Err())
				return run.Id, ctx.Err()
			}
			telemetry.GenerationFailures.WithLabelValues(r.Model, r.Setting).Inc()
			slog.Warn("generation request failed", "run_id", run.Id, "example_id", i, "error", err)
			if err := r.Registry.Log(run.Id, "warning", fmt.Sprintf("generation failed for example %d: %v", i, err)); err != nil {
				slog.Error("error storing run log", "run_id", run.Id, "error", err)
			}
			prediction = ""
		} else if prediction == "" {
			telemetry.GenerationFailures.WithLabelValues(r.Model, r.Setting).Inc()
			slog.Warn("model produced empty prediction", "run_id", run.Id, "example_id", i)
			if err := r.Registry.Log(run.Id, "warning", fmt.Sprintf("empty prediction for example %d", i)); err != nil {
				slog.Error("error storing run log", "run_id", run.Id, "error", err)
			}
		} else {
			telemetry.Generations.WithLabelValues(r.Model, r.Setting).Inc()
		}

		line := Prediction{
			ExampleId:  i,
			Model:      r.Model,
			Setting:    r.Setting,
			Input:      record.InputText,
			Reference:  record.TargetText,
			Prediction: prediction,
		}
		if err := r.appendPrediction(outputPath, line); err != nil {
			r.fail(run.Id, err)
			return run.Id, err
		}
	}

	if _, err := r.Registry.RecordArtifact(run.Id, registry.GenerationsArtifact, outputPath); err != nil {
		r.fail(run.Id, err)
		return run.Id, err
	}

	if err := r.Registry.UpdateStatus(run.Id, registry.StatusComplete); err != nil {
		return run.Id, err
	}

	slog.Info("generation run complete", "code", logging.MODEL_GENERATE,
		"run_id", run.Id, "output", outputPath)
	return run.Id, nil
}

func (r *Runner) readTestSet(testFile string) ([]dataset.Record, error) {
	file, err := r.Storage.Read(testFile)
	if err != nil {
		return nil, fmt.Errorf("error opening test file: %w", err)
	}
	defer file.Close()

	records, err := dataset.ReadRecords(file)
	if err != nil {
		return nil, fmt.Errorf("error reading test file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("test file %v contains no records", testFile)
	}
	return records, nil
}

func (r *Runner) generate(ctx context.Context, inputText string) (string, error) {
	prompt, err := BuildPrompt(r.Setting, inputText)
	if err != nil {
		return "", err
	}

	start := time.Now()
	defer func() {
		telemetry.GenerationLatency.Observe(time.Since(start).Seconds())
	}()

	return r.LLM.Generate(ctx, &llm.Request{
		Model:     r.EndpointModel,
		Prompt:    prompt,
		MaxTokens: r.MaxTokens,
		Seed:      r.Seed,
	})
}

func (r *Runner) appendPrediction(path string, line Prediction) error {
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("error serializing prediction: %w", err)
	}
	data = append(data, '\n')

	if err := r.Storage.Append(path, bytes.NewReader(data)); err != nil {
		slog.Error("error appending prediction", "path", path, "error", err)
		return fmt.Errorf("error appending prediction: %w", err)
	}
	return nil
}

// ReadPredictions loads a generations file produced by a previous run.
func ReadPredictions(store storage.Storage, path string) ([]Prediction, error) {
	file, err := store.Read(path)
	if err != nil {
		return nil, fmt.Errorf("error opening generations file: %w", err)
	}
	defer file.Close()

	var predictions []Prediction
	decoder := json.NewDecoder(file)
	for decoder.More() {
		var line Prediction
		if err := decoder.Decode(&line); err != nil {
			return nil, fmt.Errorf("error parsing generations file: %w", err)
		}
		predictions = append(predictions, line)
	}
	return predictions, nil
}

func (r *Runner) fail(runId uuid.UUID, cause error) {
	if cause != nil {
		if err := r.Registry.Log(runId, "error", cause.Error()); err != nil {
			slog.Error("error storing failure log", "run_id", runId, "error", err)
		}
	}
	if err := r.Registry.UpdateStatus(runId, registry.StatusFailed); err != nil {
		slog.Error("error marking run failed", "run_id", runId, "error", err)
	}
}
