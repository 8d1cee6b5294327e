package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"medgate/internal/assets"
	"medgate/internal/config"
	"medgate/internal/gateway"
	"medgate/internal/vlm"
)

// components owns the collaborators built for a running gateway.
type components struct {
	gateway   *gateway.Gateway
	tokenizer *vlm.Tokenizer
}

func (c *components) Close() error {
	err := c.gateway.Close()
	if cerr := c.tokenizer.Close(); err == nil {
		err = cerr
	}
	return err
}

// buildGateway loads model assets and wires the gateway collaborators.
func buildGateway(ctx context.Context, cfg config.Config, log zerolog.Logger) (*components, error) {
	tokLoc, err := assets.Resolve(cfg.AssetsDir, cfg.Tokenizer)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}
	data, err := assets.Read(ctx, tokLoc)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}
	tok, err := vlm.NewTokenizer(data)
	if err != nil {
		return nil, fmt.Errorf("tokenizer %s: %w", tokLoc, err)
	}

	var tmplSrc string
	if cfg.ChatTemplate != "" {
		loc, err := assets.Resolve(cfg.AssetsDir, cfg.ChatTemplate)
		if err != nil {
			_ = tok.Close()
			return nil, fmt.Errorf("chat template: %w", err)
		}
		b, err := assets.Read(ctx, loc)
		if err != nil {
			_ = tok.Close()
			return nil, fmt.Errorf("chat template: %w", err)
		}
		tmplSrc = string(b)
	}
	tmpl, err := vlm.NewTemplate(tmplSrc, cfg.SystemPrompt, cfg.Generation.EOSToken)
	if err != nil {
		_ = tok.Close()
		return nil, err
	}

	params, err := generationParams(cfg.Generation, tok)
	if err != nil {
		_ = tok.Close()
		return nil, err
	}

	var gen gateway.Generator
	runtime := "unconfigured"
	if cfg.RuntimeURL == "" {
		gen = gateway.Unavailable("runtime_url not configured")
		log.Warn().Msg("no runtime_url configured; chat requests will fail with 503")
	} else {
		gen = vlm.NewRuntimeClient(cfg.RuntimeURL, cfg.RuntimeAPIKey, cfg.ConnectTimeout())
		runtime = cfg.RuntimeURL
	}

	gw, err := gateway.New(gateway.Config{
		Template:           tmpl,
		Tokenizer:          tok,
		Preprocessor:       vlm.NewCLIPPreprocessor(cfg.ImageSize),
		Generator:          gen,
		Params:             params,
		ImageMarker:        cfg.ImageMarker,
		TextOnlyTemplate:   cfg.TextOnlyTemplate,
		MaxSeqLen:          cfg.Generation.MaxSeqLen,
		MaxImagePixels:     cfg.MaxImagePixels,
		MaxQueueDepth:      cfg.MaxQueueDepth,
		MaxWait:            cfg.MaxWait(),
		GenerateTimeout:    cfg.GenerateTimeout(),
		RuntimeDescription: runtime,
		Events:             gateway.NewLogPublisher(log),
		Logger:             &log,
	})
	if err != nil {
		_ = gen.Close()
		_ = tok.Close()
		return nil, err
	}
	log.Info().
		Str("tokenizer", tokLoc).
		Str("tokenizer_runtime", vlm.TokenizerRuntime).
		Str("runtime", runtime).
		Int("pad_token_id", params.PadTokenID).
		Int("eos_token_id", params.EOSTokenID).
		Msg("gateway configured")
	return &components{gateway: gw, tokenizer: tok}, nil
}

// generationParams converts config sampling values, resolving pad and eos
// token ids through the tokenizer unless they are pinned.
func generationParams(g config.Generation, tok gateway.Tokenizer) (gateway.GenerationParams, error) {
	p := gateway.GenerationParams{
		Temperature:       float32(g.Temperature),
		TopP:              float32(g.TopP),
		RepetitionPenalty: float32(g.RepetitionPenalty),
		MaxNewTokens:      g.MaxNewTokens,
		DoSample:          g.DoSample == nil || *g.DoSample,
	}
	var err error
	if p.PadTokenID, err = tokenID(tok, g.PadToken, g.PadTokenID); err != nil {
		return p, fmt.Errorf("pad token: %w", err)
	}
	if p.EOSTokenID, err = tokenID(tok, g.EOSToken, g.EOSTokenID); err != nil {
		return p, fmt.Errorf("eos token: %w", err)
	}
	return p, nil
}

func tokenID(tok gateway.Tokenizer, token string, pinned *int) (int, error) {
	if pinned != nil {
		return *pinned, nil
	}
	id, ok := tok.TokenID(token)
	if !ok {
		return 0, fmt.Errorf("%q not in tokenizer vocabulary", token)
	}
	return id, nil
}
