package openai

import (
	"errors"
	"fmt"
	"slices"
)

const (
	DefaultModel     = "tts-1"
	DefaultVoice     = "alloy"
	DefaultFormat    = "mp3"
	DefaultChunkSize = 4096
)

var formats = []string{"mp3", "opus", "aac", "flac", "wav", "pcm"}

// Config holds the speech.openai configuration.
type Config struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Voice   string `yaml:"voice"`
	Format  string `yaml:"format"`
	// Speed is the playback rate, 0.25 to 4. Zero leaves the API default.
	Speed float64 `yaml:"speed"`
	// ChunkSize is the size of each delivered audio chunk in bytes.
	ChunkSize  int  `yaml:"chunk_size"`
	MaxRetries *int `yaml:"max_retries"`
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Voice == "" {
		c.Voice = DefaultVoice
	}
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.MaxRetries == nil {
		n := 2
		c.MaxRetries = &n
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("speech.openai: api_key is required"))
	}
	if !slices.Contains(formats, c.Format) {
		errs = append(errs, fmt.Errorf("speech.openai: unknown format %q", c.Format))
	}
	if c.Speed != 0 && (c.Speed < 0.25 || c.Speed > 4) {
		errs = append(errs, errors.New("speech.openai: speed must be in [0.25, 4]"))
	}
	if c.ChunkSize < 0 {
		errs = append(errs, errors.New("speech.openai: chunk_size must be positive"))
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		errs = append(errs, errors.New("speech.openai: max_retries must be non-negative"))
	}
	return errors.Join(errs...)
}
