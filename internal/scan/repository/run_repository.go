package repository

import (
	"errors"
	"time"

	scandomain "relay-backend/internal/scan/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RunRepository defines persistence for scan runs
type RunRepository interface {
	Create(run *scandomain.ScanRun) error
	FindByID(id string) (*scandomain.ScanRun, error)
	ListByUser(userID string, limit int) ([]scandomain.ScanRun, error)
	SetTotals(id string, totalMessages int) error
	UpdateProgress(id string, processed, classified, companies int, costUSD float64) error
	// AppendNote pushes a diagnostic note onto the run's bounded ring
	AppendNote(id string, code, message, context string) error
	Complete(id string, processed, classified, companies int) error
	MarkFailed(id, reason string) error
	// Touch bumps the run's updatedAt so a stalled run is distinguishable
	// from a slow one
	Touch(id string) error
	DeleteByUser(userID string) error
}

// runRepository implements RunRepository interface
type runRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new instance of runRepository
func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{
		db: db,
	}
}

func (r *runRepository) Create(run *scandomain.ScanRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	now := time.Now()
	run.StartedAt = now
	run.UpdatedAt = now
	if run.Notes == nil {
		run.Notes = scandomain.RunNotes{}
	}
	return r.db.Create(run).Error
}

func (r *runRepository) FindByID(id string) (*scandomain.ScanRun, error) {
	var run scandomain.ScanRun
	err := r.db.Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (r *runRepository) ListByUser(userID string, limit int) ([]scandomain.ScanRun, error) {
	var runs []scandomain.ScanRun
	err := r.db.Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

func (r *runRepository) SetTotals(id string, totalMessages int) error {
	return r.db.Model(&scandomain.ScanRun{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_messages": totalMessages,
			"updated_at":     time.Now(),
		}).Error
}

func (r *runRepository) UpdateProgress(id string, processed, classified, companies int, costUSD float64) error {
	return r.db.Model(&scandomain.ScanRun{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_messages":     processed,
			"newsletters_classified": classified,
			"processed_companies":    companies,
			"cost_usd":               costUSD,
			"updated_at":             time.Now(),
		}).Error
}

func (r *runRepository) AppendNote(id string, code, message, context string) error {
	run, err := r.FindByID(id)
	if err != nil {
		return err
	}
	if run == nil {
		return gorm.ErrRecordNotFound
	}
	run.AppendNote(code, message, context)
	run.UpdatedAt = time.Now()
	return r.db.Save(run).Error
}

func (r *runRepository) Complete(id string, processed, classified, companies int) error {
	now := time.Now()
	return r.db.Model(&scandomain.ScanRun{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                 scandomain.RunStatusComplete,
			"processed_messages":     processed,
			"newsletters_classified": classified,
			"processed_companies":    companies,
			"completed_at":           now,
			"updated_at":             now,
		}).Error
}

func (r *runRepository) MarkFailed(id, reason string) error {
	now := time.Now()
	return r.db.Model(&scandomain.ScanRun{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         scandomain.RunStatusFailed,
			"failure_reason": scandomain.TruncateNote(reason),
			"completed_at":   now,
			"updated_at":     now,
		}).Error
}

func (r *runRepository) Touch(id string) error {
	return r.db.Model(&scandomain.ScanRun{}).Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}

func (r *runRepository) DeleteByUser(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&scandomain.ScanRun{}).Error
}
