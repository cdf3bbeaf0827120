package telemetry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

var (
	RecordsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apidocbench_records_extracted_total",
		Help: "Records extracted from api specs, by record type.",
	}, []string{"type"})

	FilesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apidocbench_files_skipped_total",
		Help: "Malformed spec files skipped during extraction.",
	})

	RecordsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apidocbench_records_dropped_total",
		Help: "Operations dropped for missing or trivial descriptions.",
	})

	Generations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apidocbench_generations_total",
		Help: "Generated predictions, by model and setting.",
	}, []string{"model", "setting"})

	GenerationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apidocbench_generation_failures_total",
		Help: "Failed or empty generations, by model and setting.",
	}, []string{"model", "setting"})

	GenerationLatency = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "apidocbench_generation_seconds",
		Help: "Latency of single generation requests.",
	})

	PairsScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apidocbench_pairs_scored_total",
		Help: "Prediction/reference pairs scored during evaluation.",
	})
)

// WriteTextfile dumps all gathered metrics to a prometheus textfile so that
// offline runs still leave a scrapeable record (node exporter textfile
// collector format).
func WriteTextfile(path string) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		slog.Error("error gathering metrics", "error", err)
		return fmt.Errorf("error gathering metrics: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return fmt.Errorf("error creating metrics directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		slog.Error("error creating metrics textfile", "path", path, "error", err)
		return fmt.Errorf("error creating metrics textfile %v: %w", path, err)
	}
	defer file.Close()

	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(file, family); err != nil {
			return fmt.Errorf("error writing metric family %v: %w", family.GetName(), err)
		}
	}

	return nil
}
