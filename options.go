// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import "time"

// reactorOptions holds configuration resolved at New time.
type reactorOptions struct {
	priorityLevels int
	logger         Logger
	metricsEnabled bool
	backendFactory func() (Backend, error)
	clock          func() time.Time
}

// Option configures a Reactor at construction time.
type Option interface {
	applyReactor(*reactorOptions) error
}

type optionFunc func(*reactorOptions) error

func (f optionFunc) applyReactor(opts *reactorOptions) error { return f(opts) }

// WithPriorityLevels sets the number of priority queues the reactor
// maintains. Events default to the middle priority. Must be >= 1.
func WithPriorityLevels(n int) Option {
	return optionFunc(func(opts *reactorOptions) error {
		if n < 1 {
			return WrapError("WithPriorityLevels", ErrPriorityOutOfRange)
		}
		opts.priorityLevels = n
		return nil
	})
}

// WithLogger installs a structured logger. When omitted, a no-op
// logger is used and logging calls are effectively free.
func WithLogger(logger Logger) Option {
	return optionFunc(func(opts *reactorOptions) error {
		if logger != nil {
			opts.logger = logger
		}
		return nil
	})
}

// WithMetrics enables latency and queue-depth sampling on the reactor,
// retrievable via Reactor.Metrics.
func WithMetrics(enabled bool) Option {
	return optionFunc(func(opts *reactorOptions) error {
		opts.metricsEnabled = enabled
		return nil
	})
}

// WithBackend overrides backend auto-selection with a specific factory.
// Mainly useful for tests that want a deterministic backend, or for
// forcing the portable poll(2) backend over epoll/kqueue.
func WithBackend(factory func() (Backend, error)) Option {
	return optionFunc(func(opts *reactorOptions) error {
		if factory != nil {
			opts.backendFactory = factory
		}
		return nil
	})
}

// withClock overrides time.Now for deterministic timer-heap tests. It
// is unexported because no production caller should need it.
func withClock(clock func() time.Time) Option {
	return optionFunc(func(opts *reactorOptions) error {
		if clock != nil {
			opts.clock = clock
		}
		return nil
	})
}

// resolveOptions applies opts over the default configuration.
func resolveOptions(opts []Option) (*reactorOptions, error) {
	cfg := &reactorOptions{
		priorityLevels: 1,
		logger:         NewNoOpLogger(),
		clock:          time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyReactor(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
