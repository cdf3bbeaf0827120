package eval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"apidocbench/generation"
	"apidocbench/llm"
	"apidocbench/registry"
	"apidocbench/storage"
	"apidocbench/telemetry"
	"apidocbench/utils/logging"
)

// Result holds the aggregate scores for one (model, setting) pair. All
// scores are means over the pair's examples, on a 0 to 1 scale.
type Result struct {
	Model   string `json:"model"`
	Setting string `json:"setting"`

	Rouge1    float64 `json:"rouge1"`
	Bleu      float64 `json:"bleu"`
	BertScore float64 `json:"bert_score"`

	Examples int `json:"examples"`
}

type Evaluator struct {
	Registry *registry.Registry
	Storage  storage.Storage
	Embedder llm.Embedder
}

// Evaluate scores every generations file and saves one leaderboard row per
// (model, setting) pair found in them. Rows are derived entirely from the
// files, so re-running evaluation reproduces them.
func (e *Evaluator) Evaluate(ctx context.Context, generationFiles []string) (uuid.UUID, []Result, error) {
	var predictions []generation.Prediction
	for _, path := range generationFiles {
		loaded, err := generation.ReadPredictions(e.Storage, path)
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("error loading generations from %v: %w", path, err)
		}
		predictions = append(predictions, loaded...)
	}
	if len(predictions) == 0 {
		return uuid.Nil, nil, fmt.Errorf("no predictions to evaluate")
	}

	run, err := e.Registry.CreateRun(registry.EvaluateRun, "", "")
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("error creating evaluation run: %w", err)
	}

	slog.Info("starting evaluation run", "code", logging.MODEL_EVAL,
		"run_id", run.Id, "pairs", len(predictions))

	if err := e.Registry.UpdateStatus(run.Id, registry.StatusInProgress); err != nil {
		return run.Id, nil, err
	}

	results, err := e.score(ctx, predictions)
	if err != nil {
		e.fail(run.Id, err)
		return run.Id, nil, err
	}

	for _, result := range results {
		report := registry.MetricReport{
			RunId:     run.Id,
			Model:     result.Model,
			Setting:   result.Setting,
			Rouge1:    result.Rouge1,
			Bleu:      result.Bleu,
			BertScore: result.BertScore,
			Examples:  result.Examples,
		}
		if err := e.Registry.SaveReport(report); err != nil {
			e.fail(run.Id, err)
			return run.Id, nil, err
		}
	}

	if err := e.Registry.UpdateStatus(run.Id, registry.StatusComplete); err != nil {
		return run.Id, nil, err
	}

	slog.Info("evaluation run complete", "code", logging.MODEL_EVAL,
		"run_id", run.Id, "rows", len(results))
	return run.Id, results, nil
}

type group struct {
	model   string
	setting string

	candidates []string
	references []string
}

func (e *Evaluator) score(ctx context.Context, predictions []generation.Prediction) ([]Result, error) {
	groups := make(map[string]*group)
	var order []string
	for _, prediction := range predictions {
		key := prediction.Model + "/" + prediction.Setting
		g, ok := groups[key]
		if !ok {
			g = &group{model: prediction.Model, setting: prediction.Setting}
			groups[key] = g
			order = append(order, key)
		}
		g.candidates = append(g.candidates, prediction.Prediction)
		g.references = append(g.references, prediction.Reference)
	}
	sort.Strings(order)

	results := make([]Result, 0, len(order))
	for _, key := range order {
		g := groups[key]

		bertScores, err := BertScores(ctx, e.Embedder, g.candidates, g.references)
		if err != nil {
			return nil, err
		}

		var rougeSum, bleuSum, bertSum float64
		for i, candidate := range g.candidates {
			rougeSum += Rouge1(candidate, g.references[i])
			bleuSum += Bleu(candidate, g.references[i])
			bertSum += bertScores[i]
			telemetry.PairsScored.Inc()
		}

		n := float64(len(g.candidates))
		results = append(results, Result{
			Model:     g.model,
			Setting:   g.setting,
			Rouge1:    rougeSum / n,
			Bleu:      bleuSum / n,
			BertScore: bertSum / n,
			Examples:  len(g.candidates),
		})
	}
	return results, nil
}

func (e *Evaluator) fail(runId uuid.UUID, cause error) {
	if cause != nil {
		if err := e.Registry.Log(runId, "error", cause.Error()); err != nil {
			slog.Error("error storing failure log", "run_id", runId, "error", err)
		}
	}
	if err := e.Registry.UpdateStatus(runId, registry.StatusFailed); err != nil {
		slog.Error("error marking run failed", "run_id", runId, "error", err)
	}
}
