package usecase

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	companyrepository "relay-backend/internal/company/repository"
)

var exportHeader = []string{
	"name",
	"homepage_url",
	"one_line_summary",
	"category",
	"stage",
	"location",
	"newsletter_platform",
	"key_signals",
	"confidence",
	"score",
	"decision",
	"first_seen_at",
	"last_seen_at",
}

// ExportCSV streams the user's companies as CSV rows, honoring the same
// filters as the listing endpoint.
func (u *companyUsecase) ExportCSV(w io.Writer, userID string, filters companyrepository.ListFilters) error {
	companies, err := u.companyRepo.List(userID, filters)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}

	for _, company := range companies {
		row := []string{
			company.Name,
			company.HomepageURL,
			company.OneLineSummary,
			company.Category,
			company.Stage,
			company.Location,
			company.NewsletterPlatform,
			joinList(company.KeySignals),
			fmt.Sprintf("%.2f", company.Confidence),
			fmt.Sprintf("%.2f", company.Score),
			string(company.Decision),
			company.FirstSeenAt.UTC().Format(time.RFC3339),
			company.LastSeenAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
