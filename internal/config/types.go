package config

import "time"

// Config is the top-level backport configuration.
type Config struct {
	GitHub  GitHubConfig  `json:"github"`
	Git     GitConfig     `json:"git"`
	Reports ReportsConfig `json:"reports"`
}

// GitHubConfig controls access to the code-hosting API.
type GitHubConfig struct {
	Token string `json:"token,omitempty"`
	// APIURL overrides the REST endpoint for GitHub Enterprise Server.
	// The GraphQL endpoint is derived from it.
	APIURL string `json:"api_url,omitempty"`
}

// GitConfig holds settings for the local checkout the backport is replayed in.
type GitConfig struct {
	Remote      string `json:"remote"`
	UserName    string `json:"user_name"`
	UserEmail   string `json:"user_email"`
	WorkDir     string `json:"work_dir,omitempty"`
	LockTimeout string `json:"lock_timeout"`
}

// ParseLockTimeout returns the working tree lock timeout as a time.Duration.
func (g GitConfig) ParseLockTimeout() time.Duration {
	d, err := time.ParseDuration(g.LockTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ReportsConfig controls the per-run report documents written for operators.
type ReportsConfig struct {
	Enabled *bool  `json:"enabled"`
	Dir     string `json:"dir"`
}

// IsEnabled returns whether run reports are written.
// Defaults to true when not explicitly set.
func (r ReportsConfig) IsEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

func boolPtr(b bool) *bool {
	return &b
}

// DefaultConfig returns a Config with the identity GitHub Actions uses for bot commits.
func DefaultConfig() Config {
	return Config{
		Git: GitConfig{
			Remote:      "origin",
			UserName:    "github-actions[bot]",
			UserEmail:   "41898282+github-actions[bot]@users.noreply.github.com",
			LockTimeout: "30s",
		},
		Reports: ReportsConfig{
			Enabled: boolPtr(true),
			Dir:     "~/.local/share/backport/runs",
		},
	}
}
