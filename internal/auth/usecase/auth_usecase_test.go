package usecase

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authdomain "relay-backend/internal/auth/domain"
	"relay-backend/pkg/config"
)

type fakeUserRepo struct {
	usersByEmail  map[string]*authdomain.User
	refreshTokens map[string]*authdomain.RefreshToken
	created       int
	updated       int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		usersByEmail:  map[string]*authdomain.User{},
		refreshTokens: map[string]*authdomain.RefreshToken{},
	}
}

func (f *fakeUserRepo) Create(user *authdomain.User) error {
	f.created++
	if user.ID == "" {
		user.ID = "user-" + user.Email
	}
	copied := *user
	f.usersByEmail[user.Email] = &copied
	return nil
}

func (f *fakeUserRepo) FindByEmail(email string) (*authdomain.User, error) {
	if user, ok := f.usersByEmail[email]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) FindByID(id string) (*authdomain.User, error) {
	for _, user := range f.usersByEmail {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) Update(user *authdomain.User) error {
	f.updated++
	copied := *user
	f.usersByEmail[user.Email] = &copied
	return nil
}

func (f *fakeUserRepo) Delete(id string) error { return nil }

func (f *fakeUserRepo) SaveRefreshToken(token *authdomain.RefreshToken) error {
	copied := *token
	f.refreshTokens[token.Token] = &copied
	return nil
}

func (f *fakeUserRepo) FindRefreshToken(token string) (*authdomain.RefreshToken, error) {
	if stored, ok := f.refreshTokens[token]; ok {
		copied := *stored
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) DeleteRefreshToken(token string) error {
	delete(f.refreshTokens, token)
	return nil
}

func testAuthConfig() *config.Config {
	return &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 168 * time.Hour,
	}
}

func tokenInfoServer(t *testing.T, info map[string]string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("id_token"))
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(info)
	}))
}

func TestGoogleSignIn_CreatesUserOnFirstSignIn(t *testing.T) {
	server := tokenInfoServer(t, map[string]string{
		"email":          "new@gmail.com",
		"name":           "New User",
		"email_verified": "true",
		"sub":            "google-sub-1",
	}, http.StatusOK)
	defer server.Close()

	repo := newFakeUserRepo()
	u := &authUsecase{userRepo: repo, config: testAuthConfig(), tokenInfoEndpoint: server.URL}

	tokens, err := u.GoogleSignIn("fake-id-token")
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	require.Equal(t, 1, repo.created)
	user := repo.usersByEmail["new@gmail.com"]
	require.NotNil(t, user)
	assert.Equal(t, "google", user.Provider)
	assert.Equal(t, "New User", user.Name)
}

func TestGoogleSignIn_UpdatesExistingUser(t *testing.T) {
	server := tokenInfoServer(t, map[string]string{
		"email":          "known@gmail.com",
		"name":           "Renamed",
		"email_verified": "true",
	}, http.StatusOK)
	defer server.Close()

	repo := newFakeUserRepo()
	require.NoError(t, repo.Create(&authdomain.User{Email: "known@gmail.com", Name: "Old Name", Provider: "google"}))
	repo.created = 0

	u := &authUsecase{userRepo: repo, config: testAuthConfig(), tokenInfoEndpoint: server.URL}

	_, err := u.GoogleSignIn("fake-id-token")
	require.NoError(t, err)

	assert.Equal(t, 0, repo.created)
	assert.Equal(t, 1, repo.updated)
	assert.Equal(t, "Renamed", repo.usersByEmail["known@gmail.com"].Name)
}

func TestGoogleSignIn_RejectsUnverifiedEmail(t *testing.T) {
	server := tokenInfoServer(t, map[string]string{
		"email":          "sketchy@gmail.com",
		"name":           "Sketchy",
		"email_verified": "false",
	}, http.StatusOK)
	defer server.Close()

	repo := newFakeUserRepo()
	u := &authUsecase{userRepo: repo, config: testAuthConfig(), tokenInfoEndpoint: server.URL}

	_, err := u.GoogleSignIn("fake-id-token")
	assert.Error(t, err)
	assert.Equal(t, 0, repo.created)
}

func TestGoogleSignIn_RejectsInvalidToken(t *testing.T) {
	server := tokenInfoServer(t, map[string]string{"error": "invalid_token"}, http.StatusBadRequest)
	defer server.Close()

	repo := newFakeUserRepo()
	u := &authUsecase{userRepo: repo, config: testAuthConfig(), tokenInfoEndpoint: server.URL}

	_, err := u.GoogleSignIn("garbage")
	assert.Error(t, err)
	assert.Equal(t, 0, repo.created)
}
