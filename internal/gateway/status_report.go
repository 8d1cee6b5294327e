package gateway

import (
	"time"

	"medgate/pkg/types"
)

// Status builds a detailed status response for /status.
func (g *Gateway) Status() types.StatusResponse {
	g.mu.RLock()
	state, lastErr := g.state, g.err
	g.mu.RUnlock()
	inflight := len(g.genCh)
	queued := len(g.queueCh) - inflight
	if queued < 0 {
		queued = 0
	}
	now := time.Now()
	return types.StatusResponse{
		State:          string(state),
		Runtime:        g.runtime,
		QueueLen:       queued,
		Inflight:       inflight,
		MaxQueueDepth:  cap(g.queueCh),
		RequestsTotal:  g.requests.Load(),
		VisionTotal:    g.vision.Load(),
		TextTotal:      g.text.Load(),
		FallbacksTotal: g.fallbacks.Load(),
		FatalTotal:     g.fatal.Load(),
		LastError:      lastErr,
		UptimeSeconds:  int64(now.Sub(g.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}
