package delivery

import (
	"errors"
	"net/http"
	"strconv"

	authusecase "relay-backend/internal/auth/usecase"
	scandto "relay-backend/internal/scan/dto"
	"relay-backend/internal/scan/usecase"

	"github.com/gin-gonic/gin"
)

type ScanHandler struct {
	scanUsecase usecase.ScanUsecase
}

func NewScanHandler(scanUsecase usecase.ScanUsecase) *ScanHandler {
	return &ScanHandler{
		scanUsecase: scanUsecase,
	}
}

func (h *ScanHandler) StartScan(c *gin.Context) {
	userID := c.GetString("userID")

	var req scandto.StartScanRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runID, err := h.scanUsecase.StartScan(userID, req.TimeWindowDays)
	if err != nil {
		switch {
		case errors.Is(err, authusecase.ErrNoTokens), errors.Is(err, authusecase.ErrMissingScopes):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusAccepted, scandto.StartScanResponse{RunID: runID})
}

func (h *ScanHandler) Progress(c *gin.Context) {
	userID := c.GetString("userID")
	runID := c.Param("id")

	progress, err := h.scanUsecase.Progress(userID, runID)
	if err != nil {
		if errors.Is(err, usecase.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *ScanHandler) ListRuns(c *gin.Context) {
	userID := c.GetString("userID")

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	runs, err := h.scanUsecase.ListRuns(userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
