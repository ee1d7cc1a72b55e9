package api

import (
	"net/http"

	authdelivery "relay-backend/internal/auth/delivery"
	authusecase "relay-backend/internal/auth/usecase"
	companydelivery "relay-backend/internal/company/delivery"
	scandelivery "relay-backend/internal/scan/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	authUsecase authusecase.AuthUsecase,
	authHandler *authdelivery.AuthHandler,
	scanHandler *scandelivery.ScanHandler,
	companyHandler *companydelivery.CompanyHandler,
) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", authdelivery.AuthMiddleware(authUsecase), authHandler.Me)
			auth.POST("/google", authHandler.GoogleSignIn)
			auth.POST("/google/connect", authdelivery.AuthMiddleware(authUsecase), authHandler.GoogleConnect)
			auth.DELETE("/google", authdelivery.AuthMiddleware(authUsecase), authHandler.GoogleDisconnect)
			auth.POST("/imap", authdelivery.AuthMiddleware(authUsecase), authHandler.ImapConnect)
			auth.DELETE("/imap", authdelivery.AuthMiddleware(authUsecase), authHandler.ImapDisconnect)
		}

		// Scan routes (protected)
		scans := api.Group("/scans")
		scans.Use(authdelivery.AuthMiddleware(authUsecase))
		{
			scans.POST("", scanHandler.StartScan)
			scans.GET("", scanHandler.ListRuns)
			scans.GET("/:id/progress", scanHandler.Progress)
		}

		// Company routes (protected)
		companies := api.Group("/companies")
		companies.Use(authdelivery.AuthMiddleware(authUsecase))
		{
			companies.GET("", companyHandler.List)
			companies.GET("/export", companyHandler.ExportCSV)
			companies.PATCH("/:id/decision", companyHandler.SetDecision)
		}
	}
}
