package resource

type (
	Options struct {
		windowSize int64
	}

	Option func(o *Options)
)

// WithWindowSize sets the number of slots the usage counters decay over.
func WithWindowSize(slots int64) Option {
	return func(o *Options) {
		o.windowSize = slots
	}
}

func loadOptions(opts ...Option) *Options {
	options := &Options{
		windowSize: WindowSize,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
