package github

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/checkpilot/internal/domain/model"
)

const (
	// appJWTLifetime is the validity window of the signed app JWT used to
	// resolve the installation. GitHub caps it at 10 minutes.
	appJWTLifetime = 9 * time.Minute

	// tokenExpirySkew is the margin before expiry at which a cached
	// installation token is proactively re-minted.
	tokenExpirySkew = 2 * time.Minute
)

// TokenSource mints GitHub App installation tokens for one repository and
// caches the current token together with its expiry. It is safe for
// concurrent use and is the only cross-request mutable state in the service.
type TokenSource struct {
	appID   int64
	key     *rsa.PrivateKey
	owner   string
	repo    string
	baseURL string // Overridden in tests to point at an httptest server.

	mu             sync.Mutex
	token          string
	expiresAt      time.Time
	installationID int64 // Resolved once; installations do not move between repos.
}

// NewTokenSource parses the PEM-encoded private key and returns a token
// source for the given app and repository. A key that does not decode to an
// RSA private key is a configuration error.
func NewTokenSource(appID int64, privateKeyPEM []byte, owner, repo string) (*TokenSource, error) {
	if appID <= 0 {
		return nil, fmt.Errorf("app id must be positive: %w", model.ErrConfiguration)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing app private key: %v: %w", err, model.ErrConfiguration)
	}

	return &TokenSource{
		appID: appID,
		key:   key,
		owner: owner,
		repo:  repo,
	}, nil
}

// NewTokenSourceWithBaseURL is NewTokenSource with the GitHub API base URL
// overridden, for tests backed by an httptest server.
func NewTokenSourceWithBaseURL(appID int64, privateKeyPEM []byte, owner, repo, baseURL string) (*TokenSource, error) {
	ts, err := NewTokenSource(appID, privateKeyPEM, owner, repo)
	if err != nil {
		return nil, err
	}
	ts.baseURL = baseURL
	return ts, nil
}

// Token returns a valid installation token, minting a fresh one when the
// cached token is absent or within the expiry skew. Minting costs one API
// round trip to resolve the installation (first call only) plus one to
// create the token.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Until(ts.expiresAt) > tokenExpirySkew {
		return ts.token, nil
	}

	appJWT, err := ts.signAppJWT()
	if err != nil {
		return "", fmt.Errorf("signing app jwt: %w", err)
	}

	client, err := ts.appClient(appJWT)
	if err != nil {
		return "", err
	}

	if ts.installationID == 0 {
		inst, resp, err := client.Apps.FindRepositoryInstallation(ctx, ts.owner, ts.repo)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				return "", fmt.Errorf("no installation for %s/%s: %w", ts.owner, ts.repo, model.ErrInstallationNotFound)
			}
			return "", fmt.Errorf("resolving installation for %s/%s: %w", ts.owner, ts.repo, err)
		}
		ts.installationID = inst.GetID()
	}

	tok, _, err := client.Apps.CreateInstallationToken(ctx, ts.installationID, nil)
	if err != nil {
		return "", fmt.Errorf("creating installation token: %w", err)
	}

	ts.token = tok.GetToken()
	ts.expiresAt = tok.GetExpiresAt().Time

	slog.Debug("installation token minted",
		"installation_id", ts.installationID,
		"expires_at", ts.expiresAt.UTC().Format(time.RFC3339),
	)

	return ts.token, nil
}

// signAppJWT creates the short-lived RS256 JWT that authenticates as the app
// itself. The issued-at is backdated 60s to tolerate clock drift.
func (ts *TokenSource) signAppJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(ts.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(ts.key)
}

// appClient builds a go-github client authenticated with the app JWT.
func (ts *TokenSource) appClient(appJWT string) (*gh.Client, error) {
	client := gh.NewClient(nil).WithAuthToken(appJWT)
	if ts.baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(ts.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing base URL: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}
