// Package ghapp authenticates as a GitHub App and hands out REST clients
// scoped to one installation.
package ghapp

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/codefair/internal/config"
	"github.com/danielolaszy/codefair/internal/github"
	"github.com/danielolaszy/codefair/internal/logging"
)

const (
	// GitHub rejects app tokens valid for more than ten minutes.
	jwtLifetime = 9 * time.Minute
	// Tolerates clock drift between this host and GitHub.
	jwtBackdate = 60 * time.Second
	// Cached installation tokens are renewed this long before they expire.
	tokenRenewal = 5 * time.Minute
)

// App is a GitHub App identity.
type App struct {
	id      int64
	key     *rsa.PrivateKey
	baseURL string
	now     func() time.Time

	mu     sync.Mutex
	tokens map[int64]*oauth2.Token
}

// New creates an App from the configured app id and private key.
func New(cfg config.GitHubConfig) (*App, error) {
	pem, err := cfg.PrivateKeyPEM()
	if err != nil {
		return nil, err
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse app private key: %w", err)
	}

	logging.Info("github app configuration",
		"app_id", cfg.AppID,
		"api_url", cfg.APIURL())

	return &App{
		id:      cfg.AppID,
		key:     key,
		baseURL: cfg.APIURL(),
		now:     time.Now,
		tokens:  map[int64]*oauth2.Token{},
	}, nil
}

// JWT returns a signed token that authenticates as the app itself.
func (a *App) JWT() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-jwtBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtLifetime)),
		Issuer:    strconv.FormatInt(a.id, 10),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign app jwt: %w", err)
	}
	return signed, nil
}

// InstallationClient returns a client authenticated as the given
// installation. Installation tokens are cached until shortly before they
// expire.
func (a *App) InstallationClient(ctx context.Context, installationID int64) (*github.Client, error) {
	token, err := a.installationToken(ctx, installationID)
	if err != nil {
		return nil, err
	}

	client, err := a.rest(oauth2.NewClient(ctx, oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, err
	}
	return github.New(client), nil
}

func (a *App) installationToken(ctx context.Context, installationID int64) (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if token, ok := a.tokens[installationID]; ok && a.now().Add(tokenRenewal).Before(token.Expiry) {
		return token, nil
	}

	signed, err := a.JWT()
	if err != nil {
		return nil, err
	}

	client, err := a.rest(nil)
	if err != nil {
		return nil, err
	}

	issued, _, err := client.WithAuthToken(signed).Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		logging.ErrorContext(ctx, "failed to create installation token",
			"installation_id", installationID,
			"error", err)
		return nil, fmt.Errorf("failed to create installation token for %d: %w", installationID, err)
	}

	token := &oauth2.Token{
		AccessToken: issued.GetToken(),
		TokenType:   "Bearer",
		Expiry:      issued.GetExpiresAt().Time,
	}
	a.tokens[installationID] = token

	logging.DebugContext(ctx, "issued installation token",
		"installation_id", installationID,
		"expires_at", token.Expiry)
	return token, nil
}

// rest builds a go-github client against the configured API root.
func (a *App) rest(httpClient *http.Client) (*gh.Client, error) {
	client := gh.NewClient(httpClient)

	base, err := url.Parse(a.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid github api url: %w", err)
	}
	client.BaseURL = base
	client.UploadURL = base
	return client, nil
}
