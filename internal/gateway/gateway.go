package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Gateway is the composition root: it routes one chat turn through mode
// resolution, prompt construction, admission, generation and sanitization.
type Gateway struct {
	mu    sync.RWMutex
	state State
	err   string

	gen     Generator
	builder *PromptBuilder
	invoker *Invoker

	// Admission: single in-flight generation plus a bounded wait queue.
	genCh         chan struct{}
	queueCh       chan struct{}
	maxQueueDepth int
	maxWait       time.Duration

	generateTimeout time.Duration
	runtime         string
	log             zerolog.Logger
	events          EventPublisher
	startTime       time.Time

	requests  atomic.Uint64
	vision    atomic.Uint64
	text      atomic.Uint64
	fallbacks atomic.Uint64
	fatal     atomic.Uint64
}

// Ready reports whether the gateway accepts chat requests.
func (g *Gateway) Ready() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state == StateReady
}

// Warmup probes the generator when it supports it and moves the gateway to
// ready or error accordingly.
func (g *Gateway) Warmup(ctx context.Context) error {
	p, ok := g.gen.(Pinger)
	if !ok {
		g.setState(StateReady, "")
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		g.setState(StateError, err.Error())
		g.log.Warn().Err(err).Msg("generator not ready")
		return err
	}
	g.setState(StateReady, "")
	g.log.Info().Str("runtime", g.runtime).Msg("generator ready")
	return nil
}

// Close stops admitting requests and releases the generator.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.state == StateClosed {
		g.mu.Unlock()
		return nil
	}
	g.state = StateClosed
	g.mu.Unlock()
	g.events.Publish(Event{Name: EventStateChanged, Fields: map[string]any{"state": string(StateClosed)}})
	return g.gen.Close()
}

func (g *Gateway) setState(s State, errMsg string) {
	g.mu.Lock()
	if g.state == StateClosed {
		g.mu.Unlock()
		return
	}
	changed := g.state != s
	g.state = s
	if errMsg != "" {
		g.err = errMsg
	}
	g.mu.Unlock()
	if changed {
		g.events.Publish(Event{Name: EventStateChanged, Fields: map[string]any{"state": string(s)}})
	}
}

func (g *Gateway) recordError(err error) {
	g.mu.Lock()
	g.err = err.Error()
	g.mu.Unlock()
}

// Chat serves one turn end to end. The returned error is one of the typed
// gateway errors, a context error, or a wrapped internal failure.
func (g *Gateway) Chat(ctx context.Context, req InferenceRequest) (ChatResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		chatRequestsTotal.WithLabelValues(Resolve(req).String(), outcomeBadRequest).Inc()
		return ChatResult{}, ErrPromptRequired
	}
	mode := Resolve(req)
	log := zerolog.Ctx(ctx)
	if log.GetLevel() == zerolog.Disabled {
		log = &g.log
	}
	g.requests.Add(1)
	g.events.Publish(Event{Name: EventChatStart, Mode: mode.String()})

	env, err := g.builder.Build(mode, req)
	if err != nil {
		return ChatResult{Mode: mode}, g.fail(mode, err, log)
	}

	release, waited, err := g.beginGeneration(ctx)
	queueWaitSeconds.Observe(waited.Seconds())
	if err != nil {
		return ChatResult{Mode: mode}, g.fail(mode, err, log)
	}
	defer release()

	genCtx := ctx
	if g.generateTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, g.generateTimeout)
		defer cancel()
	}
	start := time.Now()
	out, err := g.invoker.Generate(genCtx, env)
	generationDuration.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
	if out.Fallback {
		g.fallbacks.Add(1)
		g.events.Publish(Event{Name: EventFallback, Mode: mode.String(), Fields: map[string]any{"attempts": out.Attempts}})
		if err != nil {
			fallbackTotal.WithLabelValues(outcomeFatal).Inc()
		} else {
			fallbackTotal.WithLabelValues(outcomeOK).Inc()
		}
		log.Info().Str("mode", mode.String()).Int("attempts", out.Attempts).Msg("noise-image fallback")
	}
	if err != nil {
		return ChatResult{Mode: mode, Fallback: out.Fallback, Attempts: out.Attempts}, g.fail(mode, err, log)
	}

	response, stripped := sanitize(out.Raw, req.Prompt)
	if stripped {
		hallucinationStripsTotal.Inc()
		g.events.Publish(Event{Name: EventStripped, Mode: mode.String()})
		log.Debug().Str("mode", mode.String()).Msg("removed hallucinated opening sentence")
	}
	if mode == Vision {
		g.vision.Add(1)
	} else {
		g.text.Add(1)
	}
	chatRequestsTotal.WithLabelValues(mode.String(), outcomeOK).Inc()
	g.events.Publish(Event{Name: EventChatEnd, Mode: mode.String(), Fields: map[string]any{
		"attempts": out.Attempts,
		"fallback": out.Fallback,
		"stripped": stripped,
	}})
	log.Debug().
		Str("mode", mode.String()).
		Int("input_tokens", len(env.InputIDs)).
		Dur("duration", time.Since(start)).
		Msg("chat served")
	return ChatResult{
		Response: response,
		Mode:     mode,
		Fallback: out.Fallback,
		Attempts: out.Attempts,
		Stripped: stripped,
	}, nil
}

// fail records err against the counters and returns it unchanged.
func (g *Gateway) fail(mode Mode, err error, log *zerolog.Logger) error {
	outcome := outcomeError
	switch {
	case IsImageDecode(err):
		outcome = outcomeDecodeError
	case IsTooBusy(err):
		outcome = outcomeBusy
	case errors.Is(err, context.DeadlineExceeded):
		outcome = outcomeTimeout
	case errors.Is(err, context.Canceled):
		outcome = outcomeCanceled
	case IsDependencyUnavailable(err):
		outcome = outcomeUnavailable
		g.recordError(err)
	case IsGenerationFatal(err):
		outcome = outcomeFatal
		g.fatal.Add(1)
		g.recordError(err)
	default:
		g.recordError(err)
	}
	chatRequestsTotal.WithLabelValues(mode.String(), outcome).Inc()
	g.events.Publish(Event{Name: EventChatFailed, Mode: mode.String(), Fields: map[string]any{"outcome": outcome}})
	ev := log.Warn()
	if outcome == outcomeFatal || outcome == outcomeError || outcome == outcomeUnavailable {
		ev = log.Error()
	}
	ev.Err(err).Str("mode", mode.String()).Str("outcome", outcome).Msg("chat failed")
	return err
}
