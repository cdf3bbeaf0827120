package registry

import (
	"time"

	"github.com/google/uuid"
)

// Run kinds, one per pipeline stage.
const (
	PreprocessRun = "preprocess"
	TrainRun      = "train"
	GenerateRun   = "generate"
	EvaluateRun   = "evaluate"
)

// Run statuses.
const (
	StatusStarting   = "starting"
	StatusInProgress = "in_progress"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Artifact kinds.
const (
	DatasetArtifact     = "dataset"
	CheckpointArtifact  = "checkpoint"
	AdapterArtifact     = "adapter"
	GenerationsArtifact = "generations"
	ReportArtifact      = "report"
)

type Run struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Kind string `gorm:"size:50;not null"`

	// Model identity and generation setting; empty for stages that are not
	// tied to a single model.
	Model   string `gorm:"size:100"`
	Setting string `gorm:"size:50"`

	Status string `gorm:"size:50;not null"`

	Started   time.Time
	Completed *time.Time

	Attributes []RunAttribute `gorm:"constraint:OnDelete:CASCADE"`
	Logs       []RunLog       `gorm:"constraint:OnDelete:CASCADE"`
	Artifacts  []Artifact     `gorm:"constraint:OnDelete:CASCADE"`
}

type RunAttribute struct {
	RunId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Key   string    `gorm:"primaryKey"`
	Value string
}

func (r *Run) GetAttributes() map[string]string {
	attrs := make(map[string]string)
	for _, attr := range r.Attributes {
		attrs[attr.Key] = attr.Value
	}
	return attrs
}

type RunLog struct {
	Id    uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunId uuid.UUID `gorm:"type:uuid;index"`
	Level string    `gorm:"size:50;not null"`
	Message string
}

// Artifact records a file produced by a run. Artifacts are written once by
// their producing run and only read afterwards.
type Artifact struct {
	Id    uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunId uuid.UUID `gorm:"type:uuid;index"`

	Kind string `gorm:"size:50;not null"`
	Path string `gorm:"size:500;not null"`
}

// MetricReport is one leaderboard row: aggregate scores for a (model,
// setting) pair. Derived purely from generations and references, so rows are
// recomputable and non-authoritative.
type MetricReport struct {
	Id    uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunId uuid.UUID `gorm:"type:uuid;index"`

	Model   string `gorm:"size:100;not null"`
	Setting string `gorm:"size:50;not null"`

	Rouge1    float64
	Bleu      float64
	BertScore float64

	Examples int

	Created time.Time
}
