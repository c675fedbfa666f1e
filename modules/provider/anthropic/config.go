package anthropic

import "errors"

// DefaultModel is used when none is configured.
const DefaultModel = "claude-3-5-haiku-latest"

const (
	defaultMaxTokens = 1024
	defaultAPIKeyEnv = "ANTHROPIC_API_KEY"
)

// Config holds the provider.anthropic configuration.
type Config struct {
	APIKey string `yaml:"api_key"`
	// APIKeyEnv names the variable read when api_key is empty.
	APIKeyEnv   string   `yaml:"api_key_env"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	MaxTokens   int64    `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
	MaxRetries  *int     `yaml:"max_retries"`
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = defaultAPIKeyEnv
	}
	if c.MaxRetries == nil {
		n := 2
		c.MaxRetries = &n
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.MaxTokens < 0 {
		errs = append(errs, errors.New("provider.anthropic: max_tokens must be positive"))
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 1) {
		errs = append(errs, errors.New("provider.anthropic: temperature must be in [0, 1]"))
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		errs = append(errs, errors.New("provider.anthropic: max_retries must be non-negative"))
	}
	return errors.Join(errs...)
}
