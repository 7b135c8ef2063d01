// Package config loads the YAML run configuration: target issue,
// credentials, model name, retry policy, and the named deterministic
// check commands used by the BUILDING and TESTING handlers. Shaped after
// the repository's earlier pipeline YAML, narrowed to what a single run
// needs.
package config

import "time"

// Check defines a single deterministic command the check runner can
// invoke, keyed by name (e.g. "build", "test") in RunConfig.Checks.
type Check struct {
	Command    string `yaml:"command"`
	Parser     string `yaml:"parser"`
	Timeout    string `yaml:"timeout"`
	AutoFix    bool   `yaml:"auto_fix"`
	FixCommand string `yaml:"fix_command"`
}

// Duration parses the Check's Timeout field, defaulting to 2 minutes when
// unset or unparseable.
func (c Check) Duration() time.Duration {
	if c.Timeout == "" {
		return 2 * time.Minute
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// RunConfig is the top-level YAML configuration for a single run.
type RunConfig struct {
	Owner       string           `yaml:"owner"`
	Repo        string           `yaml:"repo"`
	IssueNumber int              `yaml:"issue_number"`
	MaxAttempts int              `yaml:"max_attempts"`
	Model       string           `yaml:"model"`
	StoreRoot   string           `yaml:"store_root"`
	GitHubToken string           `yaml:"github_token"`
	AnthropicKey string          `yaml:"anthropic_api_key"`
	Checks      map[string]Check `yaml:"checks"`
}
