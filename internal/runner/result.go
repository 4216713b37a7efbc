package runner

import "time"

// Result holds the outcome of one child invocation.
type Result struct {
	RunID    string        // unique identifier for this invocation
	ExitCode int           // child exit status; 0 on success
	Duration time.Duration // wall time from start to termination
	TimedOut bool          // child was killed by the run timeout
}
