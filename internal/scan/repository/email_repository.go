package repository

import (
	"errors"
	"time"

	scandomain "relay-backend/internal/scan/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailRepository defines persistence for normalized email metadata and bodies
type EmailRepository interface {
	// UpsertRecord stores metadata keyed by provider message ID.
	// An existing record is repointed to the latest run.
	UpsertRecord(record *scandomain.EmailRecord) (*scandomain.EmailRecord, error)
	UpsertBody(body *scandomain.EmailBody) error
	FindBodyByEmailID(emailID string) (*scandomain.EmailBody, error)
	DeleteExpiredBodies(now time.Time) (int64, error)
	DeleteByUser(userID string) error
}

type emailRepository struct {
	db *gorm.DB
}

// NewEmailRepository creates a new instance of emailRepository
func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &emailRepository{
		db: db,
	}
}

func (r *emailRepository) UpsertRecord(record *scandomain.EmailRecord) (*scandomain.EmailRecord, error) {
	var existing scandomain.EmailRecord
	err := r.db.Where("message_id = ?", record.MessageID).First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		record.ID = uuid.New().String()
		if createErr := r.db.Create(record).Error; createErr != nil {
			return nil, createErr
		}
		return record, nil
	}

	existing.RunID = record.RunID
	existing.ThreadID = record.ThreadID
	existing.Subject = record.Subject
	existing.FromAddress = record.FromAddress
	existing.ListID = record.ListID
	existing.Platform = record.Platform
	existing.SentAt = record.SentAt
	if err := r.db.Save(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

func (r *emailRepository) UpsertBody(body *scandomain.EmailBody) error {
	var existing scandomain.EmailBody
	err := r.db.Where("email_id = ?", body.EmailID).First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		body.NormalizedAt = time.Now()
		return r.db.Create(body).Error
	}

	existing.RunID = body.RunID
	existing.NormalizedHTML = body.NormalizedHTML
	existing.NormalizedText = body.NormalizedText
	existing.Links = body.Links
	existing.RetentionExpiry = body.RetentionExpiry
	existing.NormalizedAt = time.Now()
	return r.db.Save(&existing).Error
}

func (r *emailRepository) FindBodyByEmailID(emailID string) (*scandomain.EmailBody, error) {
	var body scandomain.EmailBody
	err := r.db.Where("email_id = ?", emailID).First(&body).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &body, nil
}

func (r *emailRepository) DeleteExpiredBodies(now time.Time) (int64, error) {
	result := r.db.Where("retention_expiry > 0 AND retention_expiry <= ?", now.UnixMilli()).
		Delete(&scandomain.EmailBody{})
	return result.RowsAffected, result.Error
}

func (r *emailRepository) DeleteByUser(userID string) error {
	if err := r.db.Where("run_id IN (?)",
		r.db.Model(&scandomain.ScanRun{}).Select("id").Where("user_id = ?", userID),
	).Delete(&scandomain.EmailBody{}).Error; err != nil {
		return err
	}
	return r.db.Where("run_id IN (?)",
		r.db.Model(&scandomain.ScanRun{}).Select("id").Where("user_id = ?", userID),
	).Delete(&scandomain.EmailRecord{}).Error
}
