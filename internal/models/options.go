package models

import "time"

// Option customises construction of vehicles and maintenance records.
type Option func(*options)

type options struct {
	id  string
	now func() time.Time
}

// WithID fixes the identifier instead of generating one. An empty id is ignored.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithClock replaces time.Now when validating the manufacture year. Useful for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
