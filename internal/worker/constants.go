package worker

// ============================================================================
// Log Messages - Worker Pool
// ============================================================================

// Log messages for pool operations
const (
	// LogMsgWorkerJobFailed is logged when a worker fails to process a job
	LogMsgWorkerJobFailed = "Worker job failed"

	// LogMsgJobDroppedStopped is logged when a job is submitted after Stop
	LogMsgJobDroppedStopped = "Worker pool stopped, job dropped"
)

// ============================================================================
// Default Configuration
// ============================================================================

// Default pool sizing used by cmd/app when not configured
const (
	DefaultWorkerCount = 4
	DefaultQueueSize   = 256
)

// ============================================================================
// Test Configuration
// ============================================================================

// Test pool configuration values used in pool_test.go
const (
	TestWorkerCount           = 2
	TestQueueSize             = 10
	TestExpectedJobCount      = 2
	TestWorkerProcessWaitTime = 100 // milliseconds
)
