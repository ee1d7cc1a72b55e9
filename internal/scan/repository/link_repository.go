package repository

import (
	"errors"
	"time"

	scandomain "relay-backend/internal/scan/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LinkRepository defines persistence for fetched link snapshots
type LinkRepository interface {
	// Upsert stores a snapshot keyed by (run, url), merging newer fields in
	Upsert(snapshot *scandomain.LinkSnapshot) error
	FindByRunAndURL(runID, url string) (*scandomain.LinkSnapshot, error)
	ListByRun(runID string) ([]scandomain.LinkSnapshot, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository creates a new instance of linkRepository
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{
		db: db,
	}
}

func (r *linkRepository) Upsert(snapshot *scandomain.LinkSnapshot) error {
	var existing scandomain.LinkSnapshot
	err := r.db.Where("run_id = ? AND url = ?", snapshot.RunID, snapshot.URL).First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		snapshot.ID = uuid.New().String()
		snapshot.FetchedAt = time.Now()
		return r.db.Create(snapshot).Error
	}

	if snapshot.Title != "" {
		existing.Title = snapshot.Title
	}
	if snapshot.Description != "" {
		existing.Description = snapshot.Description
	}
	if snapshot.CanonicalURL != "" {
		existing.CanonicalURL = snapshot.CanonicalURL
	}
	if len(snapshot.SocialLinks) > 0 {
		existing.SocialLinks = mergeUnique(existing.SocialLinks, snapshot.SocialLinks)
	}
	existing.FetchedAt = time.Now()
	return r.db.Save(&existing).Error
}

func (r *linkRepository) FindByRunAndURL(runID, url string) (*scandomain.LinkSnapshot, error) {
	var snapshot scandomain.LinkSnapshot
	err := r.db.Where("run_id = ? AND url = ?", runID, url).First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

func (r *linkRepository) ListByRun(runID string) ([]scandomain.LinkSnapshot, error) {
	var snapshots []scandomain.LinkSnapshot
	err := r.db.Where("run_id = ?", runID).Find(&snapshots).Error
	return snapshots, err
}

func mergeUnique(existing, incoming scandomain.StringList) scandomain.StringList {
	seen := make(map[string]bool, len(existing))
	merged := make(scandomain.StringList, 0, len(existing)+len(incoming))
	for _, v := range existing {
		if !seen[v] {
			seen[v] = true
			merged = append(merged, v)
		}
	}
	for _, v := range incoming {
		if !seen[v] {
			seen[v] = true
			merged = append(merged, v)
		}
	}
	return merged
}
