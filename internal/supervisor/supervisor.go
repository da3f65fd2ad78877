// Package supervisor owns the Agent's top-level run loop: starting the
// configured MTP(s), restarting them on failure, and driving the
// status-heartbeat ticker that feeds ValueChange notifies back out over
// whichever MTP is currently connected.
package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/optimacs/usp-agent/internal/health"
	"github.com/optimacs/usp-agent/internal/usp/engine"
)

var errMTPExited = errors.New("supervisor: mtp run loop exited unexpectedly")

// MTPClient is implemented by wsmtp.Client and mqttmtp.Client. Run serves
// the connect/reconnect loop until ctx is cancelled; SendNotify pushes an
// unsolicited outbound message over whatever session is currently up.
type MTPClient interface {
	Run(ctx context.Context)
	SendNotify(msgBytes []byte) error
	Name() string
}

// EventSink is implemented by debugserver.Hub. It is optional — a nil
// Supervisor.EventSink means the debug console isn't running and outbound
// heartbeat traffic isn't mirrored anywhere.
type EventSink interface {
	Publish(data []byte)
}

// Supervisor runs one or more MTP clients side by side and a heartbeat
// ticker that turns status changes into outbound Notify records.
type Supervisor struct {
	MTPs            []MTPClient
	Engine          *engine.Engine
	StatusInterval  time.Duration
	Log             zerolog.Logger

	// EventSink, when set, receives a copy of every outbound heartbeat
	// Notify for the debug console's /ws stream.
	EventSink EventSink

	// RestartDelay is the pause between an MTP's Run returning and it
	// being started again. Run only returns on ctx cancellation in normal
	// operation since wsmtp/mqttmtp each run their own internal
	// reconnect loop; this is the outer safety net for a goroutine that
	// panics or exits unexpectedly.
	RestartDelay time.Duration

	// Health, when set, is updated with per-MTP component status and
	// outbound message/error counters for the debug console's /status.
	Health *health.HealthCheck
}

// New builds a Supervisor. statusInterval of zero disables the heartbeat
// ticker entirely (no status subscription configured).
func New(mtps []MTPClient, eng *engine.Engine, statusInterval time.Duration, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		MTPs:           mtps,
		Engine:         eng,
		StatusInterval: statusInterval,
		Log:            log.With().Str("component", "supervisor").Logger(),
		RestartDelay:   30 * time.Second,
	}
}

// Run starts every configured MTP and the heartbeat loop, and blocks until
// ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, mtp := range s.MTPs {
		wg.Add(1)
		go func(c MTPClient) {
			defer wg.Done()
			s.runWithRestart(ctx, c)
		}(mtp)
	}

	if s.StatusInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.heartbeatLoop(ctx)
		}()
	}

	wg.Wait()
}

// runWithRestart keeps an MTP client's Run loop alive, restarting it with
// a constant backoff if it ever returns early (it normally only returns
// when ctx is cancelled).
func (s *Supervisor) runWithRestart(ctx context.Context, c MTPClient) {
	if s.Health != nil {
		s.Health.UpdateComponentStatus(c.Name(), true, "running")
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(s.RestartDelay), ctx)
	_ = backoff.Retry(func() error {
		c.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.Log.Warn().Dur("restart_delay", s.RestartDelay).Msg("mtp run loop exited, restarting")
		if s.Health != nil {
			s.Health.UpdateComponentStatus(c.Name(), false, "run loop exited, restarting")
			s.Health.RecordError(errMTPExited)
		}
		return errMTPExited
	}, b)
}

// heartbeatLoop ticks at StatusInterval, builds any ValueChange notifies
// produced since the last tick, and pushes them out over every MTP that is
// currently connected.
func (s *Supervisor) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			notifies := s.Engine.BuildStatusValueChanges()
			for _, n := range notifies {
				s.broadcast(n)
			}
		}
	}
}

// broadcast pushes one encoded Notify message to every MTP with a live
// session. A send failure on one MTP (e.g. it's mid-reconnect) doesn't
// block delivery over the others.
func (s *Supervisor) broadcast(msgBytes []byte) {
	for _, mtp := range s.MTPs {
		if err := mtp.SendNotify(msgBytes); err != nil {
			s.Log.Debug().Err(err).Msg("heartbeat notify not delivered")
			if s.Health != nil {
				s.Health.RecordError(err)
			}
			continue
		}
		if s.Health != nil {
			s.Health.RecordMessage()
		}
	}
	if s.EventSink != nil {
		s.EventSink.Publish(msgBytes)
	}
}
