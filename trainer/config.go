package trainer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Model identities used across training, generation, and evaluation.
const (
	BaselineModel = "t5-baseline"
	AdapterModel  = "llama3-qlora"
)

// BaselineOptions configures the full parameter seq2seq fine tune.
type BaselineOptions struct {
	BaseModel string `json:"base_model"`

	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	BatchSize    int     `json:"batch_size"`

	MaxInputLength  int `json:"max_input_length"`
	MaxTargetLength int `json:"max_target_length"`

	// Stop early when validation loss does not improve for this many
	// evaluations; 0 disables early stopping.
	EarlyStoppingPatience int `json:"early_stopping_patience"`
	CheckpointSteps       int `json:"checkpoint_steps"`
}

func (opts *BaselineOptions) Validate() error {
	if opts.BaseModel == "" {
		opts.BaseModel = "t5-base"
	}
	if opts.Epochs == 0 {
		opts.Epochs = 3
	}
	if opts.LearningRate == 0 {
		opts.LearningRate = 3e-4
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 8
	}
	if opts.MaxInputLength == 0 {
		opts.MaxInputLength = 512
	}
	if opts.MaxTargetLength == 0 {
		opts.MaxTargetLength = 128
	}
	if opts.CheckpointSteps == 0 {
		opts.CheckpointSteps = 500
	}
	return nil
}

// AdapterOptions configures quantized low rank adapter fine tuning. The base
// model is loaded quantized and frozen; only the adapter matrices train, and
// only they are written out.
type AdapterOptions struct {
	BaseModel string `json:"base_model"`

	// Directory holding local base model weights, if not pulled by name.
	// Never written to.
	BaseModelDir string `json:"base_model_dir,omitempty"`

	QuantBits     int      `json:"quant_bits"`
	Rank          int      `json:"rank"`
	Alpha         int      `json:"alpha"`
	Dropout       float64  `json:"dropout"`
	TargetModules []string `json:"target_modules"`

	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	BatchSize    int     `json:"batch_size"`
}

func (opts *AdapterOptions) Validate() error {
	if opts.BaseModel == "" {
		opts.BaseModel = "meta-llama/Meta-Llama-3-8B"
	}

	if opts.QuantBits == 0 {
		opts.QuantBits = 4
	}
	if opts.QuantBits != 4 && opts.QuantBits != 8 {
		return fmt.Errorf("quant_bits must be 4 or 8, got %d", opts.QuantBits)
	}

	if opts.Rank == 0 {
		opts.Rank = 16
	}
	if opts.Rank < 0 {
		return fmt.Errorf("rank must be > 0, got %d", opts.Rank)
	}
	if opts.Alpha == 0 {
		opts.Alpha = 2 * opts.Rank
	}
	if opts.Dropout == 0 {
		opts.Dropout = 0.05
	}
	if len(opts.TargetModules) == 0 {
		opts.TargetModules = []string{"q_proj", "k_proj", "v_proj", "o_proj"}
	}

	if opts.Epochs == 0 {
		opts.Epochs = 1
	}
	if opts.LearningRate == 0 {
		opts.LearningRate = 2e-4
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 4
	}
	return nil
}

type JobOptions struct {
	AllocationCores  int `json:"allocation_cores"`
	AllocationMemory int `json:"allocation_memory"`
}

func (opts *JobOptions) Validate() error {
	opts.AllocationCores = max(opts.AllocationCores, 1)
	if opts.AllocationMemory < 500 {
		opts.AllocationMemory = 6800
	}
	return nil
}

// TrainConfig is the full configuration handed to an external trainer
// process. It is serialized to shared storage and passed by path.
type TrainConfig struct {
	RunId uuid.UUID `json:"run_id"`
	Model string    `json:"model"`

	TrainFile string `json:"train_file"`
	ValFile   string `json:"val_file"`
	OutputDir string `json:"output_dir"`

	Seed int64 `json:"seed"`

	BaselineOptions *BaselineOptions `json:"baseline_options,omitempty"`
	AdapterOptions  *AdapterOptions  `json:"adapter_options,omitempty"`

	JobOptions JobOptions `json:"job_options"`
}

func (c *TrainConfig) Validate() error {
	if c.TrainFile == "" || c.ValFile == "" {
		return fmt.Errorf("train_file and val_file must be specified")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must be specified")
	}

	switch c.Model {
	case BaselineModel:
		if c.BaselineOptions == nil {
			return fmt.Errorf("baseline_options required for model %v", c.Model)
		}
		if c.AdapterOptions != nil {
			return fmt.Errorf("adapter_options not valid for model %v", c.Model)
		}
		if err := c.BaselineOptions.Validate(); err != nil {
			return err
		}
	case AdapterModel:
		if c.AdapterOptions == nil {
			return fmt.Errorf("adapter_options required for model %v", c.Model)
		}
		if c.BaselineOptions != nil {
			return fmt.Errorf("baseline_options not valid for model %v", c.Model)
		}
		if err := c.AdapterOptions.Validate(); err != nil {
			return err
		}
		if err := checkAdapterOutput(c.AdapterOptions.BaseModelDir, c.OutputDir); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown model '%v', must be '%v' or '%v'", c.Model, BaselineModel, AdapterModel)
	}

	return c.JobOptions.Validate()
}

// The frozen base weights must never be touched by adapter training.
func checkAdapterOutput(baseModelDir, outputDir string) error {
	if baseModelDir == "" {
		return nil
	}
	rel, err := filepath.Rel(filepath.Clean(baseModelDir), filepath.Clean(outputDir))
	if err != nil {
		return nil
	}
	if rel == "." || !strings.HasPrefix(rel, "..") {
		return fmt.Errorf("adapter output_dir '%v' must be outside the base model directory '%v'", outputDir, baseModelDir)
	}
	return nil
}

// Entrypoint names the external trainer module to run for this config.
func (c *TrainConfig) Entrypoint() string {
	if c.Model == BaselineModel {
		return "train_seq2seq"
	}
	return "train_qlora"
}
