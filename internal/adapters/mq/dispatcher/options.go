// Package dispatcher drains the input event queue into the timer state
// machine.
package dispatcher

import (
	"context"
	"time"

	"github.com/okian/klepsydra/internal/domain/model"
	"github.com/okian/klepsydra/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithScrambler sets the scramble provider attached to new attempts.
func WithScrambler(s Scrambler) Option {
	return func(d *Dispatcher) {
		d.scrambler = s
	}
}

// WithOnAppend sets a hook invoked after each persisted attempt.
func WithOnAppend(fn func(ctx context.Context, a model.Attempt)) Option {
	return func(d *Dispatcher) {
		d.onAppend = fn
	}
}

// WithPollInterval sets the inspection timeout poll interval.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}
