package usecase

import (
	"errors"
	"fmt"
	"io"
	"strings"

	companydomain "relay-backend/internal/company/domain"
	companyrepository "relay-backend/internal/company/repository"
)

var (
	ErrCompanyNotFound = errors.New("company not found")
	ErrInvalidDecision = errors.New("invalid decision")
)

// CompanyUsecase serves the knowledge base read and triage paths
type CompanyUsecase interface {
	List(userID string, filters companyrepository.ListFilters) ([]companydomain.Company, error)
	SetDecision(userID, companyID, decision string) error
	ExportCSV(w io.Writer, userID string, filters companyrepository.ListFilters) error
}

type companyUsecase struct {
	companyRepo companyrepository.CompanyRepository
}

// NewCompanyUsecase creates a new instance of companyUsecase
func NewCompanyUsecase(companyRepo companyrepository.CompanyRepository) CompanyUsecase {
	return &companyUsecase{
		companyRepo: companyRepo,
	}
}

func (u *companyUsecase) List(userID string, filters companyrepository.ListFilters) ([]companydomain.Company, error) {
	return u.companyRepo.List(userID, filters)
}

// SetDecision records the user's triage verdict for a company they own
func (u *companyUsecase) SetDecision(userID, companyID, decision string) error {
	if !companydomain.ValidDecision(decision) {
		return fmt.Errorf("%w: %s", ErrInvalidDecision, decision)
	}

	company, err := u.companyRepo.FindByID(companyID)
	if err != nil {
		return err
	}
	if company == nil || company.UserID != userID {
		return ErrCompanyNotFound
	}

	return u.companyRepo.UpdateDecision(companyID, companydomain.Decision(decision))
}

// joinList flattens a jsonb string list for flat export formats
func joinList(values companydomain.StringList) string {
	return strings.Join(values, "; ")
}
