package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pinger sends a liveness probe and reports the elapsed round-trip or an
// error (e.g. wsframe control-frame ping/pong, or h2.Session.Ping).
type Pinger func(ctx context.Context) (time.Duration, error)

// RunPingLoop issues ping on a jittered interval until ctx is cancelled,
// per §4.6 "ping loop". A ping failure is logged but does not itself
// terminate the loop — the caller's transport is expected to surface
// connection loss as a Submit-time EventConnError instead.
func RunPingLoop(ctx context.Context, cfg *Config, log *zap.Logger, ping Pinger) {
	if log == nil {
		log = zap.NewNop()
	}
	jitter := minDur(cfg.PingInterval/4, time.Second)
	for {
		wait := applyJitter(cfg.PingInterval, jitter)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
		rtt, err := ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn("ping failed", zap.Error(err))
			continue
		}
		observePingRTT(rtt)
	}
}
