package runstore

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbukum/caseflow/database"
)

// SQL is a Store backed by GORM.
type SQL struct {
	db *database.DB
}

var _ Store = (*SQL)(nil)

// Models lists the tables this store owns, for auto-migration.
func Models() []interface{} {
	return []interface{}{&Run{}, &TaskAttempt{}}
}

// NewSQL creates the store and migrates its tables.
func NewSQL(db *database.DB) (*SQL, error) {
	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, err
	}
	return &SQL{db: db}, nil
}

func (s *SQL) SaveRun(ctx context.Context, run *Run) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "started_at", "ended_at", "failed_task", "error_code", "error_message", "attempts", "updated_at"}),
		}).
		Create(run).Error
	if err != nil {
		return database.FromDatabase(err, "run", run.ID)
	}
	return nil
}

func (s *SQL) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, database.FromDatabase(err, "run", id)
	}
	return &r, nil
}

func (s *SQL) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC").Order("logical_date DESC").Limit(opts.limit())
	if opts.DAGID != "" {
		q = q.Where("dag_id = ?", opts.DAGID)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}
	var runs []Run
	if err := q.Find(&runs).Error; err != nil {
		return nil, database.FromDatabase(err, "run", "")
	}
	return runs, nil
}

func (s *SQL) RecordAttempt(ctx context.Context, a *TaskAttempt) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return database.FromDatabase(err, "task attempt", a.RunID)
	}
	return nil
}

func (s *SQL) Attempts(ctx context.Context, runID string) ([]TaskAttempt, error) {
	var out []TaskAttempt
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("id").Find(&out).Error; err != nil {
		return nil, database.FromDatabase(err, "task attempt", runID)
	}
	return out, nil
}

func (s *SQL) LastLogicalDate(ctx context.Context, dagID string) (string, error) {
	var last sql.NullString
	err := s.db.WithContext(ctx).Model(&Run{}).
		Where("dag_id = ? AND run_trigger = ?", dagID, TriggerScheduled).
		Select("MAX(logical_date)").
		Row().Scan(&last)
	if err != nil {
		return "", database.FromDatabase(err, "run", dagID)
	}
	return last.String, nil
}

func (s *SQL) FailUnfinished(ctx context.Context, dagID string, at time.Time, code, message string) ([]string, error) {
	var ids []string
	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		unfinished := tx.Model(&Run{}).Where("dag_id = ? AND status IN ?", dagID, []RunStatus{RunPending, RunRunning})
		if err := unfinished.Order("id").Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&Run{}).Where("id IN ?", ids).Updates(map[string]any{
			"status":        RunFailed,
			"ended_at":      at,
			"error_code":    code,
			"error_message": message,
			"updated_at":    time.Now(),
		}).Error
	})
	if err != nil {
		return nil, database.FromDatabase(err, "run", dagID)
	}
	return ids, nil
}
