package config

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/tidwall/jsonc"
)

// Load reads and merges configuration from user-level and repo-level JSONC files.
// Resolution order: defaults → user config (~/.config/backport/backport.jsonc)
// → repo config (.backport/backport.jsonc) → explicit path → environment.
// An empty path skips the explicit file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	userDir, err := os.UserConfigDir()
	if err == nil {
		userPath := filepath.Join(userDir, "backport", "backport.jsonc")
		if userMap, err := loadJSONC(userPath); err == nil {
			if err := mergeIntoConfig(&cfg, userMap); err != nil {
				return nil, fmt.Errorf("merging user config: %w", err)
			}
		}
	}

	repoRoot := findRepoRoot()
	if repoRoot != "" {
		repoPath := filepath.Join(repoRoot, ".backport", "backport.jsonc")
		if repoMap, err := loadJSONC(repoPath); err == nil {
			if err := mergeIntoConfig(&cfg, repoMap); err != nil {
				return nil, fmt.Errorf("merging repo config: %w", err)
			}
		}
	}

	if path != "" {
		m, err := loadJSONC(path)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
		if err := mergeIntoConfig(&cfg, m); err != nil {
			return nil, fmt.Errorf("merging config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	cfg.Reports.Dir = expandHome(cfg.Reports.Dir)
	return &cfg, nil
}

// loadJSONC reads a JSONC file and returns it as a map.
func loadJSONC(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jsonData := jsonc.ToJSON(data)
	var m map[string]any
	if err := json.Unmarshal(jsonData, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// mergeIntoConfig round-trips the config through a map so src can be
// deep-merged over it.
func mergeIntoConfig(cfg *Config, src map[string]any) error {
	cfgBytes, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var dst map[string]any
	if err := json.Unmarshal(cfgBytes, &dst); err != nil {
		return err
	}

	if err := mergo.Merge(&dst, src, mergo.WithOverride); err != nil {
		return err
	}

	merged, err := json.Marshal(dst)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, cfg)
}

func findRepoRoot() string {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// applyEnvOverrides applies the variables GitHub Actions exports, plus the
// identity overrides, on top of file config.
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if api := os.Getenv("GITHUB_API_URL"); api != "" && api != "https://api.github.com" {
		cfg.GitHub.APIURL = api
	}
	if ws := os.Getenv("GITHUB_WORKSPACE"); ws != "" && cfg.Git.WorkDir == "" {
		cfg.Git.WorkDir = ws
	}
	if name := os.Getenv("BACKPORT_GIT_USER_NAME"); name != "" {
		cfg.Git.UserName = name
	}
	if email := os.Getenv("BACKPORT_GIT_USER_EMAIL"); email != "" {
		cfg.Git.UserEmail = email
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// RepoRoot returns the detected git repository root, or empty string if not in a repo.
func RepoRoot() string {
	return findRepoRoot()
}
