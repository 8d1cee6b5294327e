package gateway

import (
	"errors"
	"image"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
)

// Config encapsulates all collaborators and tunables for Gateway construction.
type Config struct {
	Template     ChatTemplate
	Tokenizer    Tokenizer
	Preprocessor ImagePreprocessor
	Generator    Generator
	Params       GenerationParams

	ImageMarker      string
	TextOnlyTemplate string
	MaxSeqLen        int
	// MaxImagePixels bounds width*height of uploads. Zero uses the default.
	MaxImagePixels   int

	MaxQueueDepth int
	MaxWait       time.Duration
	// GenerateTimeout bounds a single request's generation, fallback
	// included. Zero disables it.
	GenerateTimeout time.Duration

	// RuntimeDescription is reported by Status.
	RuntimeDescription string

	Logger *zerolog.Logger
	Events EventPublisher
	// Noise overrides the fallback image source (tests).
	Noise func() image.Image
}

// New constructs a Gateway from cfg. The Gateway starts in the loading state
// until Warmup succeeds, unless the generator cannot be probed, in which case
// it starts ready.
func New(cfg Config) (*Gateway, error) {
	switch {
	case cfg.Template == nil:
		return nil, errors.New("gateway: chat template is required")
	case cfg.Tokenizer == nil:
		return nil, errors.New("gateway: tokenizer is required")
	case cfg.Preprocessor == nil:
		return nil, errors.New("gateway: image preprocessor is required")
	case cfg.Generator == nil:
		return nil, errors.New("gateway: generator is required")
	}
	g := &Gateway{
		gen:             cfg.Generator,
		builder:         NewPromptBuilder(cfg.Template, cfg.Tokenizer, cfg.Preprocessor, cfg.ImageMarker, cfg.TextOnlyTemplate, cfg.MaxSeqLen).WithMaxImagePixels(cfg.MaxImagePixels),
		invoker:         NewInvoker(cfg.Generator, cfg.Tokenizer, cfg.Preprocessor, cfg.Params, cfg.Noise),
		generateTimeout: cfg.GenerateTimeout,
		runtime:         cfg.RuntimeDescription,
		events:          cfg.Events,
		startTime:       time.Now(),
	}
	// Apply defaults if unset
	if cfg.MaxQueueDepth <= 0 {
		g.maxQueueDepth = defaultMaxQueueDepth
	} else {
		g.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		g.maxWait = defaultMaxWait
	} else {
		g.maxWait = cfg.MaxWait
	}
	if g.generateTimeout < 0 {
		g.generateTimeout = 0
	}
	if cfg.Logger != nil {
		g.log = *cfg.Logger
	} else {
		g.log = zerolog.Nop()
	}
	if g.events == nil {
		g.events = noopPublisher{}
	}
	g.genCh = make(chan struct{}, 1)
	g.queueCh = make(chan struct{}, g.maxQueueDepth)
	g.state = StateLoading
	if _, ok := cfg.Generator.(Pinger); !ok {
		g.state = StateReady
	}
	return g, nil
}
