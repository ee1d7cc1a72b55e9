package main

import (
	"log"

	api "relay-backend/cmd/api"
	authdomain "relay-backend/internal/auth/domain"
	authrepo "relay-backend/internal/auth/repository"
	authusecase "relay-backend/internal/auth/usecase"
	companydomain "relay-backend/internal/company/domain"
	companyrepo "relay-backend/internal/company/repository"
	companyusecase "relay-backend/internal/company/usecase"
	scandomain "relay-backend/internal/scan/domain"
	scanrepo "relay-backend/internal/scan/repository"
	"relay-backend/internal/scan/scheduler"
	scanusecase "relay-backend/internal/scan/usecase"
	"relay-backend/pkg/config"
	"relay-backend/pkg/database"
	"relay-backend/pkg/gmail"
	"relay-backend/pkg/linkmeta"
	"relay-backend/pkg/openai"
	"relay-backend/pkg/vault"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&authdomain.OAuthTokenRecord{},
		&authdomain.ImapAccount{},
		&scandomain.ScanRun{},
		&scandomain.EmailRecord{},
		&scandomain.EmailBody{},
		&scandomain.LinkSnapshot{},
		&companydomain.Company{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize token vault
	tokenVault, err := vault.New(cfg.TokenEncryptionSecret)
	if err != nil {
		log.Fatal("Failed to initialize token vault:", err)
	}

	// Initialize repositories (dependency injection)
	userRepo := authrepo.NewUserRepository(db)
	tokenRepo := authrepo.NewOAuthTokenRepository(db)
	imapRepo := authrepo.NewImapAccountRepository(db)
	runRepo := scanrepo.NewRunRepository(db)
	emailRepo := scanrepo.NewEmailRepository(db)
	linkRepo := scanrepo.NewLinkRepository(db)
	companyRepo := companyrepo.NewCompanyRepository(db)

	// Initialize external services
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)
	extractor := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIInputRateUSD, cfg.OpenAIOutputRateUSD)
	linkFetcher := linkmeta.NewFetcher(cfg.LinkFetchTimeout, cfg.LinkFetchMaxBytes)

	// Initialize use cases (dependency injection)
	authUc := authusecase.NewAuthUsecase(userRepo, cfg)
	tokenUc := authusecase.NewTokenUsecase(tokenRepo, imapRepo, tokenVault, cfg)
	resolver := companyusecase.NewResolver(companyRepo, companyusecase.ResolverConfig{
		FuzzyMatchThreshold: cfg.FuzzyMatchThreshold,
		RecencyFreshDays:    cfg.RecencyFreshDays,
		RecencyRecentDays:   cfg.RecencyRecentDays,
	})
	companyUc := companyusecase.NewCompanyUsecase(companyRepo)
	scanUc := scanusecase.NewScanUsecase(cfg, runRepo, emailRepo, linkRepo, tokenUc, resolver, gmailService, extractor, linkFetcher)
	defer scanUc.Shutdown()

	// Start retention purge scheduler
	purgeScheduler := scheduler.NewRetentionPurgeScheduler(emailRepo, cfg.PurgeInterval)
	purgeScheduler.Start()
	defer purgeScheduler.Stop()

	// Initialize HTTP handler
	handler := api.NewHandler(authUc, tokenUc, scanUc, companyUc, cfg)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
