package delivery

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	companydto "relay-backend/internal/company/dto"
	companyrepository "relay-backend/internal/company/repository"
	"relay-backend/internal/company/usecase"

	"github.com/gin-gonic/gin"
)

type CompanyHandler struct {
	companyUsecase usecase.CompanyUsecase
}

func NewCompanyHandler(companyUsecase usecase.CompanyUsecase) *CompanyHandler {
	return &CompanyHandler{
		companyUsecase: companyUsecase,
	}
}

func (h *CompanyHandler) List(c *gin.Context) {
	userID := c.GetString("userID")
	companies, err := h.companyUsecase.List(userID, filtersFromQuery(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"companies": companies})
}

func (h *CompanyHandler) SetDecision(c *gin.Context) {
	userID := c.GetString("userID")
	companyID := c.Param("id")

	var req companydto.SetDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.companyUsecase.SetDecision(userID, companyID, req.Decision); err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidDecision):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, usecase.ErrCompanyNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Decision updated"})
}

func (h *CompanyHandler) ExportCSV(c *gin.Context) {
	userID := c.GetString("userID")

	filename := fmt.Sprintf("companies-%s.csv", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.companyUsecase.ExportCSV(c.Writer, userID, filtersFromQuery(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
}

func filtersFromQuery(c *gin.Context) companyrepository.ListFilters {
	return companyrepository.ListFilters{
		RunID:      c.Query("runId"),
		Decision:   c.Query("decision"),
		Categories: splitCSV(c.Query("categories")),
		Stages:     splitCSV(c.Query("stages")),
		Platforms:  splitCSV(c.Query("platforms")),
	}
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
