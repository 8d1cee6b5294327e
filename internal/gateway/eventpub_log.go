package gateway

import "github.com/rs/zerolog"

// LogPublisher writes each event as a debug-level log line.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(l zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: l.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(e Event) {
	ev := p.log.Debug().Str("event", e.Name)
	if e.Mode != "" {
		ev = ev.Str("mode", e.Mode)
	}
	ev.Fields(e.Fields).Msg("gateway event")
}
