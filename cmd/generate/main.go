package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"apidocbench/generation"
	"apidocbench/llm"
	"apidocbench/registry"
	"apidocbench/storage"
	"apidocbench/telemetry"
	"apidocbench/trainer"
	"apidocbench/utils/logging"
)

type GenerateEnv struct {
	ShareDir    string `env:"SHARE_DIR,required"`
	DatabaseUri string `env:"DATABASE_URI"`

	// "openai" or "local". Local expects a llama-server style endpoint.
	LlmProvider string `env:"LLM_PROVIDER" envDefault:"local"`
	LlmEndpoint string `env:"LLM_ENDPOINT"`
	LlmModel    string `env:"LLM_MODEL"`
	GenAiKey    string `env:"GENAI_KEY"`
}

func loadEnv() (*GenerateEnv, error) {
	cfg := &GenerateEnv{}
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
	model := flag.String("model", "", fmt.Sprintf("Model identity, '%v' or '%v'", trainer.BaselineModel, trainer.AdapterModel))
	setting := flag.String("setting", "", "Generation setting: zero_shot, few_shot, or finetuned")
	testFile := flag.String("test", "", "Test split path; defaults to the latest dataset artifact")
	maxTokens := flag.Int("max-tokens", 128, "Maximum tokens per generated description")
	seed := flag.Int("seed", 42, "Sampling seed forwarded to the endpoint")
	envFile := flag.String("env", "", "Optional .env file to load")

	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return fmt.Errorf("error loading .env file '%v': %w", *envFile, err)
		}
	}
	if *model != trainer.BaselineModel && *model != trainer.AdapterModel {
		return fmt.Errorf("the -model flag must be '%v' or '%v'", trainer.BaselineModel, trainer.AdapterModel)
	}
	if !generation.ValidSetting(*setting) {
		return fmt.Errorf("the -setting flag must be zero_shot, few_shot, or finetuned")
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

	if *testFile == "" {
		artifact, err := reg.LatestArtifact(registry.DatasetArtifact, "")
		if err != nil {
			return fmt.Errorf("no -test flag and no dataset artifact found: %w", err)
		}
		*testFile = filepath.Join(artifact.Path, "test.jsonl")
	}

	endpointModel := env.LlmModel
	if endpointModel == "" {
		endpointModel = *model
	}

	provider, err := llm.NewLLM(env.LlmProvider, llm.Config{
		APIKey:  env.GenAiKey,
		BaseURL: env.LlmEndpoint,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(env.ShareDir, "logs"), 0777); err != nil {
		return fmt.Errorf("error creating log dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(env.ShareDir, fmt.Sprintf("logs/generate-%v-%v.log", *model, *setting)), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer logFile.Close()

	logging.InitRunLogging(logFile, "generate", fmt.Sprintf("%v-%v", *model, *setting))

	runner := generation.Runner{
		Registry:      reg,
		Storage:       store,
		LLM:           provider,
		EndpointModel: endpointModel,
		Model:         *model,
		Setting:       *setting,
		MaxTokens:     *maxTokens,
		Seed:          seed,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := runner.Run(ctx, *testFile); err != nil {
		return err
	}

	return telemetry.WriteTextfile(filepath.Join(env.ShareDir, "metrics", fmt.Sprintf("generate-%v-%v.prom", *model, *setting)))
}

func main() {
	if err := runApp(); err != nil {
		log.Fatal(err)
	}
}
