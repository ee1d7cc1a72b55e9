package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	authdomain "relay-backend/internal/auth/domain"
	"relay-backend/internal/auth/repository"
	"relay-backend/pkg/config"
	"relay-backend/pkg/vault"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GmailReadonlyScope is required before a scan may start.
const GmailReadonlyScope = "https://www.googleapis.com/auth/gmail.readonly"

// The access token is refreshed when its expiry falls within this
// buffer of now.
const accessTokenRefreshBuffer = time.Minute

var (
	// ErrNoTokens means the user never connected a Google account.
	ErrNoTokens = errors.New("no Google OAuth tokens available for user")
	// ErrMissingRefreshToken means the stored record cannot be refreshed.
	ErrMissingRefreshToken = errors.New("missing Google refresh token")
	// ErrMissingScopes means the granted scopes do not cover a required one.
	ErrMissingScopes = errors.New("missing required Google OAuth scopes")
	// ErrNoImapAccount means the user never connected an IMAP mailbox.
	ErrNoImapAccount = errors.New("no IMAP account configured for user")
)

// TokenUsecase is the vault boundary: it stores OAuth tokens encrypted
// and hands out fresh plaintext access tokens.
type TokenUsecase interface {
	// StoreTokens encrypts and persists a freshly granted token pair
	StoreTokens(userID string, token *oauth2.Token, scopes []string) error
	// GetFreshAccessToken decrypts the access token, refreshing and
	// persisting the rotation first when it is about to expire
	GetFreshAccessToken(ctx context.Context, userID string) (string, error)
	// TokenPair returns decrypted access and refresh tokens for adapters
	// that drive their own refresh flow
	TokenPair(userID string) (access, refresh string, err error)
	// UpdateAccessToken encrypts and persists a rotated access token,
	// leaving the stored refresh token untouched
	UpdateAccessToken(userID, accessToken string, expiry time.Time) error
	// RequireScopes fails with ErrMissingScopes unless every scope was granted
	RequireScopes(userID string, required ...string) error
	// Disconnect deletes the stored record
	Disconnect(userID string) error

	// ConnectIMAP encrypts and stores IMAP mailbox credentials
	ConnectIMAP(userID, address, username, password string) error
	// ImapCredentials returns the decrypted IMAP credentials, or
	// ErrNoImapAccount when none are stored
	ImapCredentials(userID string) (address, username, password string, err error)
	// DisconnectIMAP deletes the stored IMAP account
	DisconnectIMAP(userID string) error
}

// tokenUsecase implements TokenUsecase interface
type tokenUsecase struct {
	tokenRepo repository.OAuthTokenRepository
	imapRepo  repository.ImapAccountRepository
	vault     *vault.Vault
	config    *config.Config
}

// NewTokenUsecase creates a new instance of tokenUsecase
func NewTokenUsecase(tokenRepo repository.OAuthTokenRepository, imapRepo repository.ImapAccountRepository, v *vault.Vault, cfg *config.Config) TokenUsecase {
	return &tokenUsecase{
		tokenRepo: tokenRepo,
		imapRepo:  imapRepo,
		vault:     v,
		config:    cfg,
	}
}

func (u *tokenUsecase) StoreTokens(userID string, token *oauth2.Token, scopes []string) error {
	accessEnc, err := u.vault.Encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	refreshEnc := ""
	if token.RefreshToken != "" {
		refreshEnc, err = u.vault.Encrypt(token.RefreshToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}

	return u.tokenRepo.Upsert(&authdomain.OAuthTokenRecord{
		UserID:          userID,
		AccessTokenEnc:  accessEnc,
		RefreshTokenEnc: refreshEnc,
		Expiry:          token.Expiry,
		Scopes:          joinScopes(scopes),
	})
}

func (u *tokenUsecase) GetFreshAccessToken(ctx context.Context, userID string) (string, error) {
	record, err := u.tokenRepo.FindByUserID(userID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", ErrNoTokens
	}

	accessToken, err := u.vault.Decrypt(record.AccessTokenEnc)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt access token: %w", err)
	}

	if record.Expiry.Add(-accessTokenRefreshBuffer).After(time.Now()) {
		return accessToken, nil
	}

	if record.RefreshTokenEnc == "" {
		return "", ErrMissingRefreshToken
	}
	refreshToken, err := u.vault.Decrypt(record.RefreshTokenEnc)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	if refreshToken == "" {
		return "", ErrMissingRefreshToken
	}

	oauthCfg := &oauth2.Config{
		ClientID:     u.config.GoogleClientID,
		ClientSecret: u.config.GoogleClientSecret,
		Endpoint:     google.Endpoint,
	}
	refreshed, err := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("google refresh failed: %w", err)
	}

	rotatedEnc, err := u.vault.Encrypt(refreshed.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt rotated access token: %w", err)
	}
	if err := u.tokenRepo.UpdateAccessToken(userID, rotatedEnc, refreshed.Expiry); err != nil {
		return "", fmt.Errorf("failed to persist rotated access token: %w", err)
	}

	log.Printf("[TokenVault] Access token refreshed for user %s, expires %s", userID, refreshed.Expiry.Format(time.RFC3339))
	return refreshed.AccessToken, nil
}

func (u *tokenUsecase) TokenPair(userID string) (string, string, error) {
	record, err := u.tokenRepo.FindByUserID(userID)
	if err != nil {
		return "", "", err
	}
	if record == nil {
		return "", "", ErrNoTokens
	}

	access, err := u.vault.Decrypt(record.AccessTokenEnc)
	if err != nil {
		return "", "", fmt.Errorf("failed to decrypt access token: %w", err)
	}

	refresh := ""
	if record.RefreshTokenEnc != "" {
		refresh, err = u.vault.Decrypt(record.RefreshTokenEnc)
		if err != nil {
			return "", "", fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
	}
	return access, refresh, nil
}

func (u *tokenUsecase) UpdateAccessToken(userID, accessToken string, expiry time.Time) error {
	accessEnc, err := u.vault.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt rotated access token: %w", err)
	}
	return u.tokenRepo.UpdateAccessToken(userID, accessEnc, expiry)
}

func (u *tokenUsecase) RequireScopes(userID string, required ...string) error {
	record, err := u.tokenRepo.FindByUserID(userID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrNoTokens
	}

	granted := make(map[string]bool)
	for _, scope := range record.ScopeList() {
		granted[scope] = true
	}
	for _, scope := range required {
		if !granted[scope] {
			return fmt.Errorf("%w: %s", ErrMissingScopes, scope)
		}
	}
	return nil
}

func (u *tokenUsecase) Disconnect(userID string) error {
	return u.tokenRepo.Delete(userID)
}

func (u *tokenUsecase) ConnectIMAP(userID, address, username, password string) error {
	passwordEnc, err := u.vault.Encrypt(password)
	if err != nil {
		return fmt.Errorf("failed to encrypt IMAP password: %w", err)
	}
	return u.imapRepo.Upsert(&authdomain.ImapAccount{
		UserID:      userID,
		Address:     address,
		Username:    username,
		PasswordEnc: passwordEnc,
	})
}

func (u *tokenUsecase) ImapCredentials(userID string) (string, string, string, error) {
	account, err := u.imapRepo.FindByUserID(userID)
	if err != nil {
		return "", "", "", err
	}
	if account == nil {
		return "", "", "", ErrNoImapAccount
	}

	password, err := u.vault.Decrypt(account.PasswordEnc)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to decrypt IMAP password: %w", err)
	}
	return account.Address, account.Username, password, nil
}

func (u *tokenUsecase) DisconnectIMAP(userID string) error {
	return u.imapRepo.Delete(userID)
}

func joinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}
