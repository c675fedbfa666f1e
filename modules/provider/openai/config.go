package openai

import "errors"

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Config holds the provider.openai configuration.
type Config struct {
	APIKey       string   `yaml:"api_key"`
	Model        string   `yaml:"model"`
	BaseURL      string   `yaml:"base_url"`
	Organization string   `yaml:"organization"`
	MaxTokens    int64    `yaml:"max_tokens"`
	Temperature  *float64 `yaml:"temperature"`

	// MaxRetries is the SDK retry budget per call. Defaults to 2; set 0
	// when a failover chain should move on immediately.
	MaxRetries *int `yaml:"max_retries"`
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxRetries == nil {
		n := 2
		c.MaxRetries = &n
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("provider.openai: api_key is required"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, errors.New("provider.openai: max_tokens must be positive"))
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		errs = append(errs, errors.New("provider.openai: temperature must be in [0, 2]"))
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		errs = append(errs, errors.New("provider.openai: max_retries must be non-negative"))
	}
	return errors.Join(errs...)
}
