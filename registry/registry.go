package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrRunNotFound    = errors.New("run not found")
	ErrDbAccessFailed = errors.New("db access failed")
)

// Registry is the experiment bookkeeping database: runs, their logs, the
// artifacts they produced, and the metric reports derived from them.
type Registry struct {
	db *gorm.DB
}

// Open connects to the registry database. A uri beginning with "postgres"
// uses the postgres driver; anything else is treated as a sqlite path.
func Open(uri string) (*Registry, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(uri, "postgres") {
		dialector = postgres.Open(uri)
	} else {
		dialector = sqlite.Open(uri)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		slog.Error("error opening registry database", "error", err)
		return nil, fmt.Errorf("error opening registry database: %w", err)
	}

	registry := &Registry{db: db}
	if err := registry.migrate(); err != nil {
		return nil, err
	}

	return registry, nil
}

func allTables() []interface{} {
	return []interface{}{
		&Run{}, &RunAttribute{}, &RunLog{}, &Artifact{}, &MetricReport{},
	}
}

func (r *Registry) migrate() error {
	migrations := gormigrate.New(r.db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "0_initial",
			Migrate: func(txn *gorm.DB) error {
				return txn.AutoMigrate(allTables()...)
			},
			Rollback: func(txn *gorm.DB) error {
				return txn.Migrator().DropTable(allTables()...)
			},
		},
	})

	if err := migrations.Migrate(); err != nil {
		slog.Error("error migrating registry schema", "error", err)
		return fmt.Errorf("error migrating registry schema: %w", err)
	}
	return nil
}

func (r *Registry) CreateRun(kind, model, setting string) (Run, error) {
	run := Run{
		Id:      uuid.New(),
		Kind:    kind,
		Model:   model,
		Setting: setting,
		Status:  StatusStarting,
		Started: time.Now().UTC(),
	}

	if err := r.db.Create(&run).Error; err != nil {
		slog.Error("sql error creating run", "kind", kind, "error", err)
		return Run{}, ErrDbAccessFailed
	}

	slog.Info("created run", "run_id", run.Id, "kind", kind, "model", model, "setting", setting)
	return run, nil
}

func (r *Registry) GetRun(runId uuid.UUID) (Run, error) {
	var run Run

	result := r.db.Preload("Attributes").Preload("Artifacts").First(&run, "id = ?", runId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return run, ErrRunNotFound
		}
		slog.Error("sql error in get run", "run_id", runId, "error", result.Error)
		return run, ErrDbAccessFailed
	}

	return run, nil
}

// UpdateStatus moves a run to the given status. Terminal statuses also stamp
// the completion time.
func (r *Registry) UpdateStatus(runId uuid.UUID, status string) error {
	updates := map[string]interface{}{"status": status}
	if status == StatusComplete || status == StatusFailed {
		now := time.Now().UTC()
		updates["completed"] = &now
	}

	result := r.db.Model(&Run{}).Where("id = ?", runId).Updates(updates)
	if result.Error != nil {
		slog.Error("sql error updating run status", "run_id", runId, "error", result.Error)
		return ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return ErrRunNotFound
	}

	slog.Info("updated run status", "run_id", runId, "status", status)
	return nil
}

func (r *Registry) SetAttribute(runId uuid.UUID, key, value string) error {
	attr := RunAttribute{RunId: runId, Key: key, Value: value}
	if err := r.db.Save(&attr).Error; err != nil {
		slog.Error("sql error setting run attribute", "run_id", runId, "key", key, "error", err)
		return ErrDbAccessFailed
	}
	return nil
}

func (r *Registry) Log(runId uuid.UUID, level, message string) error {
	entry := RunLog{Id: uuid.New(), RunId: runId, Level: level, Message: message}
	if err := r.db.Create(&entry).Error; err != nil {
		slog.Error("sql error appending run log", "run_id", runId, "error", err)
		return ErrDbAccessFailed
	}
	return nil
}

// Logs returns the messages recorded for a run at the given level.
func (r *Registry) Logs(runId uuid.UUID, level string) ([]string, error) {
	var entries []RunLog
	result := r.db.Find(&entries, "run_id = ? AND level = ?", runId, level)
	if result.Error != nil {
		slog.Error("sql error in run logs", "run_id", runId, "error", result.Error)
		return nil, ErrDbAccessFailed
	}

	messages := make([]string, 0, len(entries))
	for _, entry := range entries {
		messages = append(messages, entry.Message)
	}
	return messages, nil
}

func (r *Registry) RecordArtifact(runId uuid.UUID, kind, path string) (Artifact, error) {
	artifact := Artifact{Id: uuid.New(), RunId: runId, Kind: kind, Path: path}
	if err := r.db.Create(&artifact).Error; err != nil {
		slog.Error("sql error recording artifact", "run_id", runId, "kind", kind, "error", err)
		return Artifact{}, ErrDbAccessFailed
	}

	slog.Info("recorded artifact", "run_id", runId, "kind", kind, "path", path)
	return artifact, nil
}

// LatestArtifact returns the most recently recorded artifact of the given
// kind, optionally restricted to a model.
func (r *Registry) LatestArtifact(kind, model string) (Artifact, error) {
	var artifact Artifact

	query := r.db.Joins("JOIN runs ON runs.id = artifacts.run_id").Where("artifacts.kind = ?", kind)
	if model != "" {
		query = query.Where("runs.model = ?", model)
	}

	result := query.Order("runs.started DESC").First(&artifact)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return artifact, ErrRunNotFound
		}
		slog.Error("sql error in latest artifact", "kind", kind, "error", result.Error)
		return artifact, ErrDbAccessFailed
	}

	return artifact, nil
}

func (r *Registry) SaveReport(report MetricReport) error {
	if report.Id == uuid.Nil {
		report.Id = uuid.New()
	}
	report.Created = time.Now().UTC()

	if err := r.db.Create(&report).Error; err != nil {
		slog.Error("sql error saving metric report", "model", report.Model, "setting", report.Setting, "error", err)
		return ErrDbAccessFailed
	}
	return nil
}

// ListReports returns all metric reports ordered for the leaderboard.
func (r *Registry) ListReports() ([]MetricReport, error) {
	var reports []MetricReport
	result := r.db.Order("model, setting, created").Find(&reports)
	if result.Error != nil {
		slog.Error("sql error listing metric reports", "error", result.Error)
		return nil, ErrDbAccessFailed
	}
	return reports, nil
}
