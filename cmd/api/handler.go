package api

import (
	authdelivery "relay-backend/internal/auth/delivery"
	authusecase "relay-backend/internal/auth/usecase"
	companydelivery "relay-backend/internal/company/delivery"
	companyusecase "relay-backend/internal/company/usecase"
	scandelivery "relay-backend/internal/scan/delivery"
	scanusecase "relay-backend/internal/scan/usecase"
	"relay-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase    authusecase.AuthUsecase
	authHandler    *authdelivery.AuthHandler
	scanHandler    *scandelivery.ScanHandler
	companyHandler *companydelivery.CompanyHandler
}

func NewHandler(
	authUc authusecase.AuthUsecase,
	tokenUc authusecase.TokenUsecase,
	scanUc scanusecase.ScanUsecase,
	companyUc companyusecase.CompanyUsecase,
	cfg *config.Config,
) *Handler {
	return &Handler{
		authUsecase:    authUc,
		authHandler:    authdelivery.NewAuthHandler(authUc, tokenUc, cfg),
		scanHandler:    scandelivery.NewScanHandler(scanUc),
		companyHandler: companydelivery.NewCompanyHandler(companyUc),
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	gin.SetMode(gin.ReleaseMode)

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Setup routes
	SetupRoutes(r, h.authUsecase, h.authHandler, h.scanHandler, h.companyHandler)

	return r.Run(addr)
}
