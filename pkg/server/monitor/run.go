package monitor

import (
	"sync"
	"time"
)

// RunMonitor tracks scheduled aggregation run health and failures.
type RunMonitor struct {
	mu                sync.RWMutex
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string
}

// RecordSuccess records a successful scheduled run.
func (rm *RunMonitor) RecordSuccess() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.lastSuccess = time.Now()
	rm.lastAttempt = time.Now()
	rm.consecutiveErrors = 0
	rm.lastError = ""
}

// RecordFailure records a failed scheduled run.
func (rm *RunMonitor) RecordFailure(err error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.lastAttempt = time.Now()
	rm.consecutiveErrors++
	if err != nil {
		rm.lastError = err.Error()
	}
}

// IsHealthy returns true if scheduled runs are working properly.
// Unhealthy conditions:
//   - Attempts have been made but none ever succeeded
//   - No success for over two hours (two missed hourly runs)
//   - More than 3 consecutive failures
//
// A freshly started server with no attempts yet is healthy; the first
// scheduled run only happens at the top of the next hour.
func (rm *RunMonitor) IsHealthy() bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.isHealthyLocked()
}

// RunStatus is the run health summary for health checks.
type RunStatus struct {
	Healthy           bool   `json:"healthy"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns current run health for health checks.
func (rm *RunMonitor) Status() RunStatus {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	status := RunStatus{
		Healthy: rm.isHealthyLocked(),
	}

	if !rm.lastSuccess.IsZero() {
		status.LastSuccess = rm.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(rm.lastSuccess).String()
	}

	if !rm.lastAttempt.IsZero() {
		status.LastAttempt = rm.lastAttempt.Format(time.RFC3339)
	}

	if rm.consecutiveErrors > 0 {
		status.ConsecutiveErrors = rm.consecutiveErrors
		status.LastError = rm.lastError
	}

	return status
}

func (rm *RunMonitor) isHealthyLocked() bool {
	if rm.lastAttempt.IsZero() {
		return true
	}
	if rm.lastSuccess.IsZero() {
		return false
	}
	if time.Since(rm.lastSuccess) > 2*time.Hour {
		return false
	}
	if rm.consecutiveErrors > 3 {
		return false
	}
	return true
}
