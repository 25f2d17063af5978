package retry

import "time"

type Options struct {
	retryCount          int
	backoffMultiplier   int
	backoffDurationType time.Duration
	message             string
	exponential         bool
	backoffFactor       float64
	maxBackoff          time.Duration
	retryIf             func(error) bool
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		retryCount:          3,
		backoffMultiplier:   2,
		backoffDurationType: time.Second,
		message:             "retrying",
		backoffFactor:       2.0,
		maxBackoff:          30 * time.Second,
	}
}

func WithRetryCount(count int) Option {
	return func(o *Options) {
		o.retryCount = count
	}
}

func WithBackoffMultiplier(multiplier int) Option {
	return func(o *Options) {
		o.backoffMultiplier = multiplier
	}
}

func WithBackoffDurationType(d time.Duration) Option {
	return func(o *Options) {
		o.backoffDurationType = d
	}
}

// WithFixedBackoff waits exactly d between attempts.
func WithFixedBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.backoffMultiplier = 0
		o.backoffDurationType = d
		o.exponential = false
	}
}

func WithMessage(message string) Option {
	return func(o *Options) {
		o.message = message
	}
}

func WithExponentialBackoff() Option {
	return func(o *Options) {
		o.exponential = true
	}
}

func WithBackoffFactor(factor float64) Option {
	return func(o *Options) {
		o.backoffFactor = factor
	}
}

func WithMaxBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.maxBackoff = d
	}
}

// WithRetryIf restricts retries to errors matching the predicate; other errors return immediately.
func WithRetryIf(fn func(error) bool) Option {
	return func(o *Options) {
		o.retryIf = fn
	}
}
