package index

// Option configures Build.
type Option func(*config)

type config struct {
	name    string
	policy  OverlapPolicy
	noEdits bool
	noSync  bool
}

func defaultConfig() config {
	return config{name: "index", policy: LastRunWins}
}

// WithName sets the name the index logs under.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithOverlapPolicy selects how overlapping sample-to-chunk runs are resolved.
func WithOverlapPolicy(p OverlapPolicy) Option {
	return func(c *config) {
		c.policy = p
	}
}

// WithoutEditList ignores the track's edit list: presentation follows the
// track timeline.
func WithoutEditList() Option {
	return func(c *config) {
		c.noEdits = true
	}
}

// WithoutSyncTable treats every sample as a sync sample.
func WithoutSyncTable() Option {
	return func(c *config) {
		c.noSync = true
	}
}
