package registry_test

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apidocbench/registry"
)

func openTestRegistry(t *testing.T) *registry.Registry {
	reg, err := registry.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	return reg
}

func TestRunLifecycle(t *testing.T) {
	reg := openTestRegistry(t)

	run, err := reg.CreateRun(registry.TrainRun, "llama3-qlora", "")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusStarting, run.Status)

	require.NoError(t, reg.UpdateStatus(run.Id, registry.StatusInProgress))
	require.NoError(t, reg.Log(run.Id, "warning", "validation loss plateaued"))
	require.NoError(t, reg.Log(run.Id, "error", "checkpoint write retried"))
	require.NoError(t, reg.SetAttribute(run.Id, "epochs", "3"))
	require.NoError(t, reg.UpdateStatus(run.Id, registry.StatusComplete))

	loaded, err := reg.GetRun(run.Id)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusComplete, loaded.Status)
	require.NotNil(t, loaded.Completed)
	assert.Equal(t, "3", loaded.GetAttributes()["epochs"])

	warnings, err := reg.Logs(run.Id, "warning")
	require.NoError(t, err)
	assert.Equal(t, []string{"validation loss plateaued"}, warnings)

	errors, err := reg.Logs(run.Id, "error")
	require.NoError(t, err)
	assert.Len(t, errors, 1)
}

func TestGetRunNotFound(t *testing.T) {
	reg := openTestRegistry(t)

	_, err := reg.GetRun(uuid.New())
	assert.ErrorIs(t, err, registry.ErrRunNotFound)

	err = reg.UpdateStatus(uuid.New(), registry.StatusFailed)
	assert.ErrorIs(t, err, registry.ErrRunNotFound)
}

func TestArtifacts(t *testing.T) {
	reg := openTestRegistry(t)

	first, err := reg.CreateRun(registry.TrainRun, "t5-baseline", "")
	require.NoError(t, err)
	_, err = reg.RecordArtifact(first.Id, registry.CheckpointArtifact, "models/t5-baseline/run1")
	require.NoError(t, err)

	second, err := reg.CreateRun(registry.TrainRun, "t5-baseline", "")
	require.NoError(t, err)
	_, err = reg.RecordArtifact(second.Id, registry.CheckpointArtifact, "models/t5-baseline/run2")
	require.NoError(t, err)

	other, err := reg.CreateRun(registry.TrainRun, "llama3-qlora", "")
	require.NoError(t, err)
	_, err = reg.RecordArtifact(other.Id, registry.AdapterArtifact, "models/llama3-qlora/adapters")
	require.NoError(t, err)

	latest, err := reg.LatestArtifact(registry.CheckpointArtifact, "t5-baseline")
	require.NoError(t, err)
	assert.Equal(t, "models/t5-baseline/run2", latest.Path)

	_, err = reg.LatestArtifact(registry.AdapterArtifact, "t5-baseline")
	assert.ErrorIs(t, err, registry.ErrRunNotFound)
}

func TestMetricReports(t *testing.T) {
	reg := openTestRegistry(t)

	run, err := reg.CreateRun(registry.EvaluateRun, "", "")
	require.NoError(t, err)

	for _, report := range []registry.MetricReport{
		{RunId: run.Id, Model: "t5-baseline", Setting: "finetuned", Rouge1: 0.41, Bleu: 0.22, BertScore: 0.88, Examples: 120},
		{RunId: run.Id, Model: "llama3-qlora", Setting: "zero_shot", Rouge1: 0.18, Bleu: 0.05, BertScore: 0.79, Examples: 120},
	} {
		require.NoError(t, reg.SaveReport(report))
	}

	reports, err := reg.ListReports()
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "llama3-qlora", reports[0].Model)
	assert.Equal(t, 120, reports[0].Examples)
	assert.False(t, reports[0].Created.IsZero())
}
