package app

import "github.com/benbjohnson/clock"

type options struct {
	clock clock.Clock
}

// Option configures the services of this package.
type Option func(*options)

// WithClock replaces the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
