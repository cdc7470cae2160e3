// Package killlistener turns the first broadcast risk.KillSwitch signal
// into process termination. Only the first signal matters: every guard
// keeps running and publishing independently, but this listener latches
// on its first receive and ignores the rest.
package killlistener

import (
	"context"
	"log/slog"
	"os"
	"time"

	"launchexec/internal/risk"
)

// Sink increments the killswitch counter. Exported from internal/metrics.
type Sink interface {
	IncKillSwitch(kind string)
}

// Exit abstracts process termination so tests don't have to kill the
// test binary itself.
type Exit func(code int)

// Listener subscribes to a risk.Broadcaster and exits the process on the
// first signal it observes.
type Listener struct {
	sub    <-chan risk.KillSwitch
	sink   Sink
	logger *slog.Logger
	exit   Exit
	delay  time.Duration
}

// New builds a Listener over a fresh subscription to b.
func New(b *risk.Broadcaster, sink Sink, logger *slog.Logger) *Listener {
	return &Listener{
		sub:    b.Subscribe(),
		sink:   sink,
		logger: logger.With("component", "killlistener"),
		exit:   os.Exit,
		delay:  100 * time.Millisecond,
	}
}

// WithExit overrides the termination hook, for tests.
func (l *Listener) WithExit(exit Exit) *Listener {
	l.exit = exit
	return l
}

// Run blocks until either ctx is cancelled or the first kill signal
// arrives. On a kill signal it logs, increments the counter, gives
// in-flight log writes a moment to flush, then exits with status 1.
func (l *Listener) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case kind := <-l.sub:
		l.logger.Error("kill switch triggered, shutting down", "kind", kind)
		l.sink.IncKillSwitch(string(kind))
		time.Sleep(l.delay)
		l.exit(1)
	}
}
