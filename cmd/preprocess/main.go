package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"apidocbench/dataset"
	"apidocbench/registry"
	"apidocbench/storage"
	"apidocbench/telemetry"
	"apidocbench/utils/logging"
)

type PreprocessEnv struct {
	ShareDir    string `env:"SHARE_DIR,required"`
	DatabaseUri string `env:"DATABASE_URI"`
}

func loadEnv() (*PreprocessEnv, error) {
	cfg := &PreprocessEnv{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.DatabaseUri == "" {
		cfg.DatabaseUri = filepath.Join(cfg.ShareDir, "registry.db")
	}
	return cfg, nil
}

// The reason we have a separate runApp function is because the defer calls don't
// run if we exit with log.Fatalf, so instead we return an err here and fail outside
func runApp() error {
	specsDir := flag.String("specs", "", "Directory of api spec files to extract")
	seed := flag.Int64("seed", dataset.DefaultSeed, "Shuffle seed for the dataset split")
	envFile := flag.String("env", "", "Optional .env file to load")

	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return fmt.Errorf("error loading .env file '%v': %w", *envFile, err)
		}
	}
	if *specsDir == "" {
		return fmt.Errorf("the -specs flag is required")
	}

	env, err := loadEnv()
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	reg, err := registry.Open(env.DatabaseUri)
	if err != nil {
		return err
	}
	store := storage.NewSharedDisk(env.ShareDir)

	run, err := reg.CreateRun(registry.PreprocessRun, "", "")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(env.ShareDir, "logs"), 0777); err != nil {
		return fmt.Errorf("error creating log dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(env.ShareDir, fmt.Sprintf("logs/preprocess-%v.log", run.Id)), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer logFile.Close()

	logging.InitRunLogging(logFile, "preprocess", run.Id.String())

	if err := preprocess(reg, store, run, *specsDir, *seed); err != nil {
		if logErr := reg.Log(run.Id, "error", err.Error()); logErr != nil {
			slog.Error("error storing run log", "run_id", run.Id, "error", logErr)
		}
		if statusErr := reg.UpdateStatus(run.Id, registry.StatusFailed); statusErr != nil {
			slog.Error("error marking run failed", "run_id", run.Id, "error", statusErr)
		}
		return err
	}

	return telemetry.WriteTextfile(filepath.Join(env.ShareDir, "metrics", "preprocess.prom"))
}

func preprocess(reg *registry.Registry, store storage.Storage, run registry.Run, specsDir string, seed int64) error {
	if err := reg.UpdateStatus(run.Id, registry.StatusInProgress); err != nil {
		return err
	}

	extractor := dataset.Extractor{}
	records, err := extractor.ExtractDir(specsDir)
	if err != nil {
		return fmt.Errorf("error extracting records: %w", err)
	}

	records = dataset.Dedupe(records)
	if len(records) == 0 {
		return fmt.Errorf("no usable records extracted from %v", specsDir)
	}

	splits := dataset.Split(records, seed)
	if err := splits.Validate(); err != nil {
		return fmt.Errorf("invalid dataset split: %w", err)
	}

	slog.Info("dataset split complete", "code", logging.DATA_SPLIT,
		"train", len(splits.Train), "val", len(splits.Val), "test", len(splits.Test))

	datasetDir := filepath.Join("runs", run.Id.String(), "dataset")
	files := map[string][]dataset.Record{
		"train.jsonl": splits.Train,
		"val.jsonl":   splits.Val,
		"test.jsonl":  splits.Test,
	}
	for name, split := range files {
		var buf bytes.Buffer
		if err := dataset.WriteRecords(&buf, split); err != nil {
			return fmt.Errorf("error serializing %v: %w", name, err)
		}
		if err := store.Write(filepath.Join(datasetDir, name), &buf); err != nil {
			return fmt.Errorf("error writing %v: %w", name, err)
		}
	}

	summary, err := json.MarshalIndent(splits.Summarize(extractor.Stats), "", "  ")
	if err != nil {
		return fmt.Errorf("error serializing summary: %w", err)
	}
	if err := store.Write(filepath.Join(datasetDir, "summary.json"), bytes.NewReader(summary)); err != nil {
		return fmt.Errorf("error writing summary: %w", err)
	}

	if _, err := reg.RecordArtifact(run.Id, registry.DatasetArtifact, datasetDir); err != nil {
		return err
	}
	return reg.UpdateStatus(run.Id, registry.StatusComplete)
}

func main() {
	if err := runApp(); err != nil {
		log.Fatal(err)
	}
}
