package bootstrap

import "time"

// =============================================================================
// File System Permissions
// =============================================================================

const (
	// DirPermission is the standard permission for creating directories
	DirPermission = 0755

	// LogFilePermission is the permission for log files (read/write for owner, read for group/others)
	LogFilePermission = 0666
)

// =============================================================================
// Logger Configuration
// =============================================================================

const (
	// LogFileTimestampFormat is the timestamp format for log filenames (YYYY-MM-DD_HH-MM-SS)
	LogFileTimestampFormat = "2006-01-02_15-04-05"

	// LogFileNamePattern is the format string for log filenames
	LogFileNamePattern = "session_%s.log"

	// LogFileExtension is the file extension for log files
	LogFileExtension = ".log"

	// LogFileRetentionCount is the number of older log files kept next to the new one
	LogFileRetentionCount = 9
)

// Log messages for logger initialization
const (
	LogMsgLoggingInitialized  = "Logging initialized"
	LogMsgStartingService     = "Starting adlink"
	LogMsgConfigurationLoaded = "Configuration loaded"
	LogMsgFailedCreateLogsDir = "failed to create logs directory"
	LogMsgFailedOpenLogFile   = "failed to open log file"
	LogMsgFailedDeleteOldLog  = "Failed to delete old log file"
)

// =============================================================================
// Storage
// =============================================================================

const (
	LogMsgUsingMemoryStore   = "Using in-memory integration store; links are lost on restart"
	LogMsgUsingPostgresStore = "Using postgres integration store"
	LogMsgRunningMigrations  = "Applying database migrations"

	ErrMsgFailedConnectDatabase = "failed to connect to database"
	ErrMsgFailedMigrate         = "failed to apply migrations"
)

// =============================================================================
// Providers
// =============================================================================

const (
	LogMsgProvidersLoaded = "Provider registry loaded"

	ErrMsgFailedLoadProviders = "failed to load provider registry"
)

// =============================================================================
// Event System
// =============================================================================

const (
	LogMsgEventSystemInitialized     = "Event system initialized"
	LogMsgMetricsCollectorRegistered = "Metrics collector registered"
	LogMsgSSESubscriberAttached      = "SSE subscriber attached to event bus"
)

// =============================================================================
// Background Jobs
// =============================================================================

const (
	LogMsgBackgroundJobsStarted = "Background jobs started"
)

// =============================================================================
// Shutdown Messages
// =============================================================================

const (
	LogMsgShuttingDownServer    = "Shutting down server..."
	LogMsgServerStopped         = "Server stopped"
	LogMsgServerForcedShutdown  = "Server forced to shutdown"
	LogMsgLinkingShutdownFailed = "Linking service shutdown failed"
	LogMsgStoppingJobs          = "Stopping background jobs..."

	// DefaultShutdownTimeout bounds graceful shutdown when the config leaves it unset
	DefaultShutdownTimeout = 10 * time.Second
)
