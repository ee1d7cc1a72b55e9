package repository

import (
	"errors"
	"time"

	companydomain "relay-backend/internal/company/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListFilters narrows the company listing
type ListFilters struct {
	RunID      string
	Decision   string
	Categories []string
	Stages     []string
	Platforms  []string
}

// CompanyRepository defines persistence for the company knowledge base
type CompanyRepository interface {
	Create(company *companydomain.Company) error
	Update(company *companydomain.Company) error
	FindByID(id string) (*companydomain.Company, error)
	FindByDomain(userID, canonicalDomain string) (*companydomain.Company, error)
	FindByNormalizedName(userID, normalizedName string) (*companydomain.Company, error)
	// FindRecent returns the user's most recently updated companies, used
	// as the fuzzy-match candidate pool.
	FindRecent(userID string, limit int) ([]companydomain.Company, error)
	List(userID string, filters ListFilters) ([]companydomain.Company, error)
	UpdateDecision(id string, decision companydomain.Decision) error
	DeleteByUser(userID string) error
}

type companyRepository struct {
	db *gorm.DB
}

// NewCompanyRepository creates a new instance of companyRepository
func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepository{
		db: db,
	}
}

func (r *companyRepository) Create(company *companydomain.Company) error {
	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	now := time.Now()
	company.CreatedAt = now
	company.UpdatedAt = now
	return r.db.Create(company).Error
}

func (r *companyRepository) Update(company *companydomain.Company) error {
	company.UpdatedAt = time.Now()
	return r.db.Save(company).Error
}

func (r *companyRepository) FindByID(id string) (*companydomain.Company, error) {
	var company companydomain.Company
	err := r.db.Where("id = ?", id).First(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) FindByDomain(userID, canonicalDomain string) (*companydomain.Company, error) {
	var company companydomain.Company
	err := r.db.Where("user_id = ? AND canonical_domain = ?", userID, canonicalDomain).First(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) FindByNormalizedName(userID, normalizedName string) (*companydomain.Company, error) {
	var company companydomain.Company
	err := r.db.Where("user_id = ? AND normalized_name = ?", userID, normalizedName).First(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) FindRecent(userID string, limit int) ([]companydomain.Company, error) {
	var companies []companydomain.Company
	err := r.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&companies).Error
	return companies, err
}

func (r *companyRepository) List(userID string, filters ListFilters) ([]companydomain.Company, error) {
	query := r.db.Where("user_id = ?", userID)
	if filters.RunID != "" {
		query = query.Where("run_id = ?", filters.RunID)
	}
	if filters.Decision != "" && filters.Decision != "all" {
		query = query.Where("decision = ?", filters.Decision)
	}
	if len(filters.Categories) > 0 {
		query = query.Where("category IN ?", filters.Categories)
	}
	if len(filters.Stages) > 0 {
		query = query.Where("stage IN ?", filters.Stages)
	}
	if len(filters.Platforms) > 0 {
		query = query.Where("newsletter_platform IN ?", filters.Platforms)
	}

	var companies []companydomain.Company
	err := query.Order("score DESC, updated_at DESC").Find(&companies).Error
	return companies, err
}

func (r *companyRepository) UpdateDecision(id string, decision companydomain.Decision) error {
	return r.db.Model(&companydomain.Company{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"decision":   decision,
			"updated_at": time.Now(),
		}).Error
}

func (r *companyRepository) DeleteByUser(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&companydomain.Company{}).Error
}
