package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"apidocbench/eval"
	"apidocbench/llm"
	"apidocbench/registry"
	"apidocbench/storage"
	"apidocbench/telemetry"
	"apidocbench/trainer"
	"apidocbench/utils/logging"
)

type EvaluateEnv struct {
	ShareDir    string `env:"SHARE_DIR,required"`
	DatabaseUri string `env:"DATABASE_URI"`

	GenAiKey          string `env:"GENAI_KEY,required"`
	EmbeddingEndpoint string `env:"EMBEDDING_ENDPOINT"`
	EmbeddingModel    string `env:"EMBEDDING_MODEL"`
}

func loadEnv() (*EvaluateEnv, error) {
	cfg := &EvaluateEnv{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.DatabaseUri == "" {
		cfg.DatabaseUri = filepath.Join(cfg.ShareDir, "registry.db")
	}
	return cfg, nil
}

// latestGenerations collects the newest generations artifact for each model.
// Models that have not produced generations yet are skipped.
func latestGenerations(reg *registry.Registry) ([]string, error) {
	var paths []string
	for _, model := range []string{trainer.BaselineModel, trainer.AdapterModel} {
		artifact, err := reg.LatestArtifact(registry.GenerationsArtifact, model)
		if err != nil {
			if errors.Is(err, registry.ErrRunNotFound) {
				slog.Info("no generations found for model", "model", model)
				continue
			}
			return nil, err
		}
		paths = append(paths, artifact.Path)
	}
	return paths, nil
}

// The reason we have a separate runApp function is because the defer calls don't
// run if we exit with log.Fatalf, so instead we return an err here and fail outside
func runApp() error {
	generations := flag.String("generations", "", "Comma separated generations files; defaults to the latest artifact per model")
	envFile := flag.String("env", "", "Optional .env file to load")

	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return fmt.Errorf("error loading .env file '%v': %w", *envFile, err)
		}
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

	var files []string
	if *generations != "" {
		for _, path := range strings.Split(*generations, ",") {
			if path = strings.TrimSpace(path); path != "" {
				files = append(files, path)
			}
		}
	} else {
		files, err = latestGenerations(reg)
		if err != nil {
			return err
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no generations files to evaluate")
	}

	if err := os.MkdirAll(filepath.Join(env.ShareDir, "logs"), 0777); err != nil {
		return fmt.Errorf("error creating log dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(env.ShareDir, "logs/evaluate.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer logFile.Close()

	logging.InitRunLogging(logFile, "evaluate", "leaderboard")

	embedder := llm.NewOpenAIEmbedder(llm.Config{
		APIKey:  env.GenAiKey,
		BaseURL: env.EmbeddingEndpoint,
	}, env.EmbeddingModel)

	evaluator := eval.Evaluator{Registry: reg, Storage: store, Embedder: embedder}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runId, results, err := evaluator.Evaluate(ctx, files)
	if err != nil {
		return err
	}

	markdownPath, err := eval.WriteReport(reg, store, runId, results)
	if err != nil {
		return err
	}
	slog.Info("leaderboard written", "path", filepath.Join(store.Location(), markdownPath))

	return telemetry.WriteTextfile(filepath.Join(env.ShareDir, "metrics", "evaluate.prom"))
}

func main() {
	if err := runApp(); err != nil {
		log.Fatal(err)
	}
}
