package delivery

import (
	"net/http"
	"strings"

	authdomain "relay-backend/internal/auth/domain"
	authdto "relay-backend/internal/auth/dto"
	"relay-backend/internal/auth/usecase"
	"relay-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type AuthHandler struct {
	authUsecase  usecase.AuthUsecase
	tokenUsecase usecase.TokenUsecase
	config       *config.Config
}

func NewAuthHandler(authUsecase usecase.AuthUsecase, tokenUsecase usecase.TokenUsecase, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authUsecase:  authUsecase,
		tokenUsecase: tokenUsecase,
		config:       cfg,
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req authdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokens, err := h.authUsecase.Login(&req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req authdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokens, err := h.authUsecase.Register(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, tokens)
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req authdto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokens, err := h.authUsecase.RefreshToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req authdto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authUsecase.Logout(req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user := c.MustGet("user").(*authdomain.User)
	c.JSON(http.StatusOK, user)
}

// GoogleSignIn verifies a Google ID token and issues a session,
// creating the account on first sign-in.
func (h *AuthHandler) GoogleSignIn(c *gin.Context) {
	var req authdto.GoogleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokens, err := h.authUsecase.GoogleSignIn(req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// GoogleConnect exchanges an authorization code for Gmail tokens and
// stores them encrypted for the signed-in user.
func (h *AuthHandler) GoogleConnect(c *gin.Context) {
	user := c.MustGet("user").(*authdomain.User)

	var req authdto.GoogleConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	oauthCfg := &oauth2.Config{
		ClientID:     h.config.GoogleClientID,
		ClientSecret: h.config.GoogleClientSecret,
		RedirectURL:  h.config.GoogleRedirectURI,
		Scopes:       []string{usecase.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}

	token, err := oauthCfg.Exchange(c.Request.Context(), req.Code)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "google code exchange failed"})
		return
	}

	scopes := oauthCfg.Scopes
	if granted, ok := token.Extra("scope").(string); ok && granted != "" {
		scopes = splitScopes(granted)
	}

	if err := h.tokenUsecase.StoreTokens(user.ID, token, scopes); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connected"})
}

// GoogleDisconnect deletes the stored token record.
func (h *AuthHandler) GoogleDisconnect(c *gin.Context) {
	user := c.MustGet("user").(*authdomain.User)
	if err := h.tokenUsecase.Disconnect(user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

// ImapConnect verifies and stores IMAP mailbox credentials encrypted
// for the signed-in user.
func (h *AuthHandler) ImapConnect(c *gin.Context) {
	user := c.MustGet("user").(*authdomain.User)

	var req authdto.ImapConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.tokenUsecase.ConnectIMAP(user.ID, req.Address, req.Username, req.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connected"})
}

// ImapDisconnect deletes the stored IMAP account.
func (h *AuthHandler) ImapDisconnect(c *gin.Context) {
	user := c.MustGet("user").(*authdomain.User)
	if err := h.tokenUsecase.DisconnectIMAP(user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

func splitScopes(raw string) []string {
	return strings.Fields(raw)
}
