package dto

// SetDecisionRequest updates the triage verdict for a company
type SetDecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
}
