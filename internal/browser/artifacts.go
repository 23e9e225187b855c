package browser

import "fmt"

// Policy decides when an artifact is recorded and whether it is kept.
type Policy string

const (
	PolicyOff             Policy = "off"
	PolicyOn              Policy = "on"
	PolicyRetainOnFailure Policy = "retain-on-failure"
	PolicyOnFirstRetry    Policy = "on-first-retry"
	PolicyOnlyOnFailure   Policy = "only-on-failure"
)

// ParseTracePolicy validates a trace or video policy.
func ParseTracePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyOff, PolicyOn, PolicyRetainOnFailure, PolicyOnFirstRetry:
		return p, nil
	}
	return "", fmt.Errorf("invalid policy %q: expected off, on, retain-on-failure or on-first-retry", s)
}

// ParseScreenshotPolicy validates a screenshot policy.
func ParseScreenshotPolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyOff, PolicyOn, PolicyOnlyOnFailure:
		return p, nil
	}
	return "", fmt.Errorf("invalid screenshot policy %q: expected off, on or only-on-failure", s)
}

// ShouldRecord reports whether recording is needed for an attempt. Attempts are numbered from 0.
func (p Policy) ShouldRecord(attempt int) bool {
	switch p {
	case PolicyOn, PolicyRetainOnFailure, PolicyOnlyOnFailure:
		return true
	case PolicyOnFirstRetry:
		return attempt == 1
	}
	return false
}

// ShouldKeep reports whether a recorded artifact survives the attempt's outcome.
func (p Policy) ShouldKeep(attempt int, failed bool) bool {
	switch p {
	case PolicyOn:
		return true
	case PolicyRetainOnFailure, PolicyOnlyOnFailure:
		return failed
	case PolicyOnFirstRetry:
		return attempt == 1
	}
	return false
}
