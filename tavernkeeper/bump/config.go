package bump

import "time"

// Config holds every tuning knob of the bump engine. Use DefaultConfig as a
// base and override individual fields; the engine does not re-apply defaults
// to zero values, so a zero Jitter really means no jitter.
type Config struct {
	// DefaultIntervalMinutes is stored for registrations created without an
	// explicit interval. 10080 = weekly.
	DefaultIntervalMinutes int
	// MinIntervalMinutes is the floor enforced on user-supplied intervals.
	MinIntervalMinutes int
	// GuardMinutes is subtracted from a thread's auto-archive window so a
	// bump always lands before the platform archives the thread.
	GuardMinutes int
	// MinDelay is the shortest delay ever armed, including for overdue
	// threads. Prevents zero-delay timer storms.
	MinDelay time.Duration
	// MaxRetryDelay caps the exponential backoff after transient failures.
	MaxRetryDelay time.Duration
	// BackoffBase is the first retry delay; doubled per consecutive failure.
	BackoffBase time.Duration
	// Jitter is the half-width of the random offset applied to armed delays
	// so thousands of timers don't fire in lockstep.
	Jitter time.Duration
	// PollPeriod is the reconciliation sweep cadence.
	PollPeriod time.Duration
	// PollCooldown keeps the sweep away from a thread after it failed there.
	PollCooldown time.Duration
	// SendConcurrency caps simultaneous outbound bump sends process-wide.
	SendConcurrency int
	// KeepBumpMessage leaves the bump message visible instead of deleting it
	// after the send was acknowledged.
	KeepBumpMessage bool
	// DeleteDelay is how long a bump message stays up before cleanup.
	DeleteDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultIntervalMinutes: 10080,
		MinIntervalMinutes:     10,
		GuardMinutes:           30,
		MinDelay:               30 * time.Second,
		MaxRetryDelay:          15 * time.Minute,
		BackoffBase:            time.Second,
		Jitter:                 15 * time.Second,
		PollPeriod:             30 * time.Second,
		PollCooldown:           5 * time.Minute,
		SendConcurrency:        3,
	}
}
