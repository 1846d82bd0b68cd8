// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ericfisherdev/checkpilot/internal/domain/model"
)

// BotIdentities holds the usernames of the known automation accounts in the
// handoff chain. Matching against comment authors is case-insensitive and
// tolerates GitHub's "[bot]" suffix.
type BotIdentities struct {
	Verifier          string
	DependencyManager string
	LintFixer         string
	PRCreator         string
	DeployPreview     string
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Owner           string
	Repo            string
	DefaultBranch   string
	AppID           int64
	PrivateKeyPEM   []byte // Decoded from base64; parsed and validated by the token source.
	Bots            BotIdentities
	ListenAddr      string
	DBPath          string // Empty disables the terminal-state cache.
	UpstreamTimeout time.Duration
	// MetadataPathTemplate is the repo-relative path of the per-artifact
	// metadata file; %s is substituted with the artifact slug derived from
	// the head branch name.
	MetadataPathTemplate string
}

// Load reads configuration from environment variables and returns a validated
// Config. CHECKPILOT_GITHUB_APP_ID and CHECKPILOT_GITHUB_APP_PRIVATE_KEY
// (base64-encoded PEM) are mandatory; everything else has a default.
func Load() (*Config, error) {
	appIDStr := os.Getenv("CHECKPILOT_GITHUB_APP_ID")
	if appIDStr == "" {
		return nil, fmt.Errorf("CHECKPILOT_GITHUB_APP_ID is required: %w", model.ErrConfiguration)
	}
	appID, err := strconv.ParseInt(appIDStr, 10, 64)
	if err != nil || appID <= 0 {
		return nil, fmt.Errorf("CHECKPILOT_GITHUB_APP_ID has invalid value %q: %w", appIDStr, model.ErrConfiguration)
	}

	keyB64 := os.Getenv("CHECKPILOT_GITHUB_APP_PRIVATE_KEY")
	if keyB64 == "" {
		return nil, fmt.Errorf("CHECKPILOT_GITHUB_APP_PRIVATE_KEY is required: %w", model.ErrConfiguration)
	}
	keyPEM, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("CHECKPILOT_GITHUB_APP_PRIVATE_KEY is not valid base64: %w", model.ErrConfiguration)
	}

	cfg := &Config{
		Owner:         envOr("CHECKPILOT_GITHUB_OWNER", "ericfisherdev"),
		Repo:          envOr("CHECKPILOT_GITHUB_REPO", "checkpilot"),
		DefaultBranch: envOr("CHECKPILOT_DEFAULT_BRANCH", "main"),
		AppID:         appID,
		PrivateKeyPEM: keyPEM,
		Bots: BotIdentities{
			Verifier:          envOr("CHECKPILOT_VERIFIER_BOT", "vpr-bot"),
			DependencyManager: envOr("CHECKPILOT_DEPENDENCY_BOT", "adm-bot"),
			LintFixer:         envOr("CHECKPILOT_LINT_BOT", "alf-bot"),
			PRCreator:         envOr("CHECKPILOT_PR_BOT", "tool-pr-bot"),
			DeployPreview:     envOr("CHECKPILOT_PREVIEW_BOT", "netlify"),
		},
		ListenAddr:           envOr("CHECKPILOT_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:               envOr("CHECKPILOT_DB_PATH", "checkpilot.db"),
		UpstreamTimeout:      20 * time.Second,
		MetadataPathTemplate: envOr("CHECKPILOT_METADATA_PATH", "generated/%s/metadata.json"),
	}

	if v, ok := os.LookupEnv("CHECKPILOT_UPSTREAM_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("CHECKPILOT_UPSTREAM_TIMEOUT has invalid duration %q: %w", v, model.ErrConfiguration)
		}
		cfg.UpstreamTimeout = parsed
	}

	return cfg, nil
}

// envOr returns the environment variable's value, or fallback when unset or empty.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
