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

	"apidocbench/registry"
	"apidocbench/storage"
	"apidocbench/telemetry"
	"apidocbench/trainer"
	"apidocbench/trainer/kubernetes"
	"apidocbench/trainer/process"
	"apidocbench/utils/logging"
)

type TrainEnv struct {
	ShareDir    string `env:"SHARE_DIR,required"`
	DatabaseUri string `env:"DATABASE_URI"`

	// Local trainer process settings.
	PythonPath string `env:"PYTHON_PATH"`
	TrainerDir string `env:"TRAINER_DIR"`

	// Kubernetes trainer settings.
	Kubernetes   string `env:"KUBERNETES"`
	Kubeconfig   string `env:"KUBECONFIG"`
	K8sNamespace string `env:"K8S_NAMESPACE" envDefault:"default"`
	TrainerImage string `env:"TRAINER_IMAGE"`

	AllocationCores  int `env:"ALLOCATION_CORES"`
	AllocationMemory int `env:"ALLOCATION_MEMORY"`
}

func loadEnv() (*TrainEnv, error) {
	cfg := &TrainEnv{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.DatabaseUri == "" {
		cfg.DatabaseUri = filepath.Join(cfg.ShareDir, "registry.db")
	}

	if (cfg.PythonPath != "" && cfg.Kubernetes != "") || (cfg.PythonPath == "" && cfg.Kubernetes == "") {
		return nil, fmt.Errorf("must specify exactly one of PYTHON_PATH or KUBERNETES")
	}
	if cfg.PythonPath != "" && cfg.TrainerDir == "" {
		return nil, fmt.Errorf("must specify TRAINER_DIR when using PYTHON_PATH")
	}
	if cfg.Kubernetes != "" && cfg.TrainerImage == "" {
		return nil, fmt.Errorf("must specify TRAINER_IMAGE when using KUBERNETES")
	}
	return cfg, nil
}

func (cfg *TrainEnv) trainerClient() (trainer.Client, error) {
	if cfg.Kubernetes != "" {
		return kubernetes.NewClient(cfg.Kubeconfig, cfg.K8sNamespace, cfg.TrainerImage, cfg.ShareDir)
	}
	return process.NewClient(cfg.PythonPath, cfg.TrainerDir), nil
}

// The reason we have a separate runApp function is because the defer calls don't
// run if we exit with log.Fatalf, so instead we return an err here and fail outside
func runApp() error {
	trainFile := flag.String("train", "", "Train split path, relative to the share dir")
	valFile := flag.String("val", "", "Validation split path, relative to the share dir")
	outputDir := flag.String("output", "models/t5-baseline", "Checkpoint output directory")
	seed := flag.Int64("seed", 42, "Training seed")
	epochs := flag.Int("epochs", 0, "Override the number of training epochs")
	envFile := flag.String("env", "", "Optional .env file to load")

	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return fmt.Errorf("error loading .env file '%v': %w", *envFile, err)
		}
	}
	if *trainFile == "" || *valFile == "" {
		return fmt.Errorf("the -train and -val flags are required")
	}

	env, err := loadEnv()
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	reg, err := registry.Open(env.DatabaseUri)
	if err != nil {
		return err
	}

	client, err := env.trainerClient()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(env.ShareDir, "logs"), 0777); err != nil {
		return fmt.Errorf("error creating log dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(env.ShareDir, "logs/train-baseline.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer logFile.Close()

	logging.InitRunLogging(logFile, "train", trainer.BaselineModel)

	supervisor := trainer.Supervisor{
		Registry: reg,
		Storage:  storage.NewSharedDisk(env.ShareDir),
		Client:   client,
	}

	config := trainer.TrainConfig{
		Model:     trainer.BaselineModel,
		TrainFile: *trainFile,
		ValFile:   *valFile,
		OutputDir: *outputDir,
		Seed:      *seed,
		BaselineOptions: &trainer.BaselineOptions{
			Epochs: *epochs,
		},
		JobOptions: trainer.JobOptions{
			AllocationCores:  env.AllocationCores,
			AllocationMemory: env.AllocationMemory,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := supervisor.Train(ctx, config); err != nil {
		return err
	}

	return telemetry.WriteTextfile(filepath.Join(env.ShareDir, "metrics", "train-baseline.prom"))
}

func main() {
	if err := runApp(); err != nil {
		log.Fatal(err)
	}
}
