package trainer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apidocbench/trainer"
)

func validBaselineConfig() trainer.TrainConfig {
	return trainer.TrainConfig{
		Model:           trainer.BaselineModel,
		TrainFile:       "data/train.jsonl",
		ValFile:         "data/val.jsonl",
		OutputDir:       "models/t5-baseline",
		BaselineOptions: &trainer.BaselineOptions{},
	}
}

func validAdapterConfig() trainer.TrainConfig {
	return trainer.TrainConfig{
		Model:          trainer.AdapterModel,
		TrainFile:      "data/train.jsonl",
		ValFile:        "data/val.jsonl",
		OutputDir:      "models/llama3-qlora",
		AdapterOptions: &trainer.AdapterOptions{},
	}
}

func TestBaselineDefaults(t *testing.T) {
	config := validBaselineConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, "t5-base", config.BaselineOptions.BaseModel)
	assert.Equal(t, 3, config.BaselineOptions.Epochs)
	assert.Equal(t, 3e-4, config.BaselineOptions.LearningRate)
	assert.Equal(t, 8, config.BaselineOptions.BatchSize)
	assert.Equal(t, 512, config.BaselineOptions.MaxInputLength)
	assert.Equal(t, 128, config.BaselineOptions.MaxTargetLength)
	assert.Equal(t, "train_seq2seq", config.Entrypoint())
}

func TestAdapterDefaults(t *testing.T) {
	config := validAdapterConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, "meta-llama/Meta-Llama-3-8B", config.AdapterOptions.BaseModel)
	assert.Equal(t, 4, config.AdapterOptions.QuantBits)
	assert.Equal(t, 16, config.AdapterOptions.Rank)
	assert.Equal(t, 32, config.AdapterOptions.Alpha)
	assert.Equal(t, []string{"q_proj", "k_proj", "v_proj", "o_proj"}, config.AdapterOptions.TargetModules)
	assert.Equal(t, 1, config.AdapterOptions.Epochs)
	assert.Equal(t, "train_qlora", config.Entrypoint())
}

func TestAlphaTracksRank(t *testing.T) {
	config := validAdapterConfig()
	config.AdapterOptions.Rank = 64
	require.NoError(t, config.Validate())
	assert.Equal(t, 128, config.AdapterOptions.Alpha)
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *trainer.TrainConfig)
	}{
		{"missing train file", func(c *trainer.TrainConfig) { c.TrainFile = "" }},
		{"missing val file", func(c *trainer.TrainConfig) { c.ValFile = "" }},
		{"missing output dir", func(c *trainer.TrainConfig) { c.OutputDir = "" }},
		{"unknown model", func(c *trainer.TrainConfig) { c.Model = "gpt-j" }},
		{"wrong options for baseline", func(c *trainer.TrainConfig) {
			c.AdapterOptions = &trainer.AdapterOptions{}
		}},
		{"no options", func(c *trainer.TrainConfig) { c.BaselineOptions = nil }},
		{"bad quant bits", func(c *trainer.TrainConfig) {
			c.Model = trainer.AdapterModel
			c.BaselineOptions = nil
			c.AdapterOptions = &trainer.AdapterOptions{QuantBits: 3}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := validBaselineConfig()
			tc.mutate(&config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestAdapterOutputMustBeOutsideBaseModelDir(t *testing.T) {
	config := validAdapterConfig()
	config.AdapterOptions.BaseModelDir = "models/llama3-base"
	config.OutputDir = "models/llama3-base/adapter"
	assert.Error(t, config.Validate())

	config.OutputDir = "models/llama3-qlora"
	assert.NoError(t, config.Validate())
}

func TestJobOptionFloors(t *testing.T) {
	opts := trainer.JobOptions{AllocationCores: 0, AllocationMemory: 100}
	require.NoError(t, opts.Validate())
	assert.Equal(t, 1, opts.AllocationCores)
	assert.Equal(t, 6800, opts.AllocationMemory)
}

func TestDetectOOM(t *testing.T) {
	assert.False(t, trainer.DetectOOM([]trainer.JobLog{{Stdout: "epoch 1 loss 2.3"}}))

	assert.True(t, trainer.DetectOOM([]trainer.JobLog{
		{Stderr: "torch.cuda.OutOfMemoryError: CUDA out of memory. Tried to allocate 2.00 GiB"},
	}))
	assert.True(t, trainer.DetectOOM([]trainer.JobLog{
		{Stderr: "trainer exited: exit status 137"},
	}))
}
