package fluxmcp

import "time"

// Config holds ingestion timing and sizing knobs shared by the engine.
type Config struct {
	// PollTimeout is the upper bound on a single blocking journal poll.
	PollTimeout time.Duration

	// IdleBackoff is how long the poller sleeps after a quiet poll.
	IdleBackoff time.Duration

	// ErrorBackoff is how long the poller waits after an unexpected
	// transport failure before retrying.
	ErrorBackoff time.Duration

	// StopGrace is the maximum time Stop waits for in-flight events to
	// drain before giving up on the worker.
	StopGrace time.Duration

	// Buffer is the capacity of the poller-to-consumer channel. Sends
	// block once it fills, applying backpressure to the poll loop.
	Buffer int

	// SearchLimit is the default result cap for job searches that do not
	// set their own limit.
	SearchLimit int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollTimeout:  100 * time.Millisecond,
		IdleBackoff:  10 * time.Millisecond,
		ErrorBackoff: 1 * time.Second,
		StopGrace:    2 * time.Second,
		Buffer:       256,
		SearchLimit:  10,
	}
}
