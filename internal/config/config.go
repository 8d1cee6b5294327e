package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`

	// AssetsDir is a local directory or object storage URL holding model assets.
	AssetsDir    string `json:"assets_dir" yaml:"assets_dir" toml:"assets_dir"`
	Tokenizer    string `json:"tokenizer" yaml:"tokenizer" toml:"tokenizer"`
	ChatTemplate string `json:"chat_template,omitempty" yaml:"chat_template,omitempty" toml:"chat_template,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty" toml:"system_prompt,omitempty"`

	// RuntimeURL addresses the model runtime. Empty leaves the gateway
	// unavailable for generation.
	RuntimeURL    string `json:"runtime_url" yaml:"runtime_url" toml:"runtime_url"`
	RuntimeAPIKey string `json:"runtime_api_key,omitempty" yaml:"runtime_api_key,omitempty" toml:"runtime_api_key,omitempty"`

	Generation Generation `json:"generation" yaml:"generation" toml:"generation"`

	ImageMarker      string `json:"image_marker,omitempty" yaml:"image_marker,omitempty" toml:"image_marker,omitempty"`
	TextOnlyTemplate string `json:"text_only_template" yaml:"text_only_template" toml:"text_only_template"`
	ImageSize        int    `json:"image_size" yaml:"image_size" toml:"image_size"`
	// MaxImagePixels rejects uploads whose header declares more pixels.
	MaxImagePixels   int    `json:"max_image_pixels" yaml:"max_image_pixels" toml:"max_image_pixels"`

	MaxQueueDepth          int   `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitMS              int   `json:"max_wait_ms" yaml:"max_wait_ms" toml:"max_wait_ms"`
	GenerateTimeoutSeconds *int  `json:"generate_timeout_seconds" yaml:"generate_timeout_seconds" toml:"generate_timeout_seconds"`
	ConnectTimeoutSeconds  int   `json:"connect_timeout_seconds" yaml:"connect_timeout_seconds" toml:"connect_timeout_seconds"`
	MaxBodyBytes           int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	CORS      CORS   `json:"cors" yaml:"cors" toml:"cors"`
	SentryDSN string `json:"sentry_dsn,omitempty" yaml:"sentry_dsn,omitempty" toml:"sentry_dsn,omitempty"`
}

// Generation holds sampling parameters fixed for the deployment.
type Generation struct {
	Temperature       float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP              float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	RepetitionPenalty float64 `json:"repetition_penalty" yaml:"repetition_penalty" toml:"repetition_penalty"`
	MaxNewTokens      int     `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens"`
	DoSample          *bool   `json:"do_sample" yaml:"do_sample" toml:"do_sample"`
	MaxSeqLen         int     `json:"max_seq_len" yaml:"max_seq_len" toml:"max_seq_len"`
	// PadToken and EOSToken are resolved through the tokenizer unless the
	// corresponding id is set.
	PadToken   string `json:"pad_token" yaml:"pad_token" toml:"pad_token"`
	EOSToken   string `json:"eos_token" yaml:"eos_token" toml:"eos_token"`
	PadTokenID *int   `json:"pad_token_id,omitempty" yaml:"pad_token_id,omitempty" toml:"pad_token_id,omitempty"`
	EOSTokenID *int   `json:"eos_token_id,omitempty" yaml:"eos_token_id,omitempty" toml:"eos_token_id,omitempty"`
}

// CORS configures cross-origin access for browser front-ends.
type CORS struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// Defaults.
const (
	DefaultAddr                   = ":5000"
	DefaultLogLevel               = "info"
	DefaultTokenizer              = "tokenizer.json"
	DefaultTemperature            = 0.3
	DefaultTopP                   = 0.85
	DefaultRepetitionPenalty      = 1.1
	DefaultMaxSeqLen              = 8192
	DefaultMaxNewTokens           = 8192
	DefaultPadToken               = "<|endoftext|>"
	DefaultEOSToken               = "<|im_end|>"
	DefaultImageSize              = 224
	DefaultMaxImagePixels         = 40_000_000
	DefaultMaxQueueDepth          = 32
	DefaultMaxWaitMS              = 30000
	DefaultGenerateTimeoutSeconds = 120
	DefaultConnectTimeoutSeconds  = 5
	DefaultMaxBodyBytes           = 20 << 20
	DefaultTextOnlyTemplate       = "（系统指令：请忽略视觉感知，仅作为纯文本医疗助手回答问题）\n用户问题：{prompt}"
	promptPlaceholder             = "{prompt}"
)

// Defaults returns a fully populated configuration.
func Defaults() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Tokenizer == "" {
		c.Tokenizer = DefaultTokenizer
	}
	g := &c.Generation
	if g.Temperature == 0 {
		g.Temperature = DefaultTemperature
	}
	if g.TopP == 0 {
		g.TopP = DefaultTopP
	}
	if g.RepetitionPenalty == 0 {
		g.RepetitionPenalty = DefaultRepetitionPenalty
	}
	if g.MaxNewTokens == 0 {
		g.MaxNewTokens = DefaultMaxNewTokens
	}
	if g.DoSample == nil {
		v := true
		g.DoSample = &v
	}
	if g.MaxSeqLen == 0 {
		g.MaxSeqLen = DefaultMaxSeqLen
	}
	if g.PadToken == "" {
		g.PadToken = DefaultPadToken
	}
	if g.EOSToken == "" {
		g.EOSToken = DefaultEOSToken
	}
	if c.TextOnlyTemplate == "" {
		c.TextOnlyTemplate = DefaultTextOnlyTemplate
	}
	if c.ImageSize == 0 {
		c.ImageSize = DefaultImageSize
	}
	if c.MaxImagePixels == 0 {
		c.MaxImagePixels = DefaultMaxImagePixels
	}
	if c.MaxQueueDepth == 0 {
		c.MaxQueueDepth = DefaultMaxQueueDepth
	}
	if c.MaxWaitMS == 0 {
		c.MaxWaitMS = DefaultMaxWaitMS
	}
	if c.GenerateTimeoutSeconds == nil {
		v := DefaultGenerateTimeoutSeconds
		c.GenerateTimeoutSeconds = &v
	}
	if c.ConnectTimeoutSeconds == 0 {
		c.ConnectTimeoutSeconds = DefaultConnectTimeoutSeconds
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.CORS.Enabled {
		if len(c.CORS.AllowedOrigins) == 0 {
			c.CORS.AllowedOrigins = []string{"*"}
		}
		if len(c.CORS.AllowedMethods) == 0 {
			c.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
		}
		if len(c.CORS.AllowedHeaders) == 0 {
			c.CORS.AllowedHeaders = []string{"Accept", "Content-Type", "X-Request-Id", "X-Log-Level"}
		}
	}
}

// Validate rejects values the service cannot run with. Call after ApplyDefaults.
func (c Config) Validate() error {
	var errs []error
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log_level %q: %w", c.LogLevel, err))
	}
	if c.RuntimeURL != "" {
		u, err := url.Parse(c.RuntimeURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("runtime_url %q must be an http(s) URL", c.RuntimeURL))
		}
	}
	g := c.Generation
	if g.Temperature < 0 {
		errs = append(errs, errors.New("generation.temperature must be >= 0"))
	}
	if g.TopP <= 0 || g.TopP > 1 {
		errs = append(errs, errors.New("generation.top_p must be in (0, 1]"))
	}
	if g.RepetitionPenalty <= 0 {
		errs = append(errs, errors.New("generation.repetition_penalty must be > 0"))
	}
	if g.MaxNewTokens <= 0 {
		errs = append(errs, errors.New("generation.max_new_tokens must be > 0"))
	}
	if g.MaxSeqLen < 2 {
		errs = append(errs, errors.New("generation.max_seq_len must be >= 2"))
	}
	if !strings.Contains(c.TextOnlyTemplate, promptPlaceholder) {
		errs = append(errs, fmt.Errorf("text_only_template must contain %s", promptPlaceholder))
	}
	if c.ImageMarker != "" && strings.TrimSpace(c.ImageMarker) == "" {
		errs = append(errs, errors.New("image_marker must not be blank"))
	}
	if c.ImageSize <= 0 {
		errs = append(errs, errors.New("image_size must be > 0"))
	}
	if c.MaxImagePixels <= 0 {
		errs = append(errs, errors.New("max_image_pixels must be > 0"))
	}
	if c.MaxQueueDepth < 1 {
		errs = append(errs, errors.New("max_queue_depth must be >= 1"))
	}
	if c.MaxWaitMS <= 0 {
		errs = append(errs, errors.New("max_wait_ms must be > 0"))
	}
	if c.GenerateTimeoutSeconds != nil && *c.GenerateTimeoutSeconds < 0 {
		errs = append(errs, errors.New("generate_timeout_seconds must be >= 0"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max_body_bytes must be > 0"))
	}
	return errors.Join(errs...)
}

// MaxWait is the admission timeout.
func (c Config) MaxWait() time.Duration { return time.Duration(c.MaxWaitMS) * time.Millisecond }

// GenerateTimeout is the per-request generation bound; zero disables it.
func (c Config) GenerateTimeout() time.Duration {
	if c.GenerateTimeoutSeconds == nil {
		return DefaultGenerateTimeoutSeconds * time.Second
	}
	return time.Duration(*c.GenerateTimeoutSeconds) * time.Second
}

// ConnectTimeout bounds dialing the runtime.
func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}
