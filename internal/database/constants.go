package database

// Database Connection Pool Constants
const (
	// DefaultMinConnections is the minimum number of connections to maintain in the pool
	DefaultMinConnections = 2
)

// Migration directions accepted by Migrate
const (
	DirectionUp     = "up"
	DirectionDown   = "down"
	DirectionStatus = "status"
)

// Error Messages - Database Operations
const (
	ErrMsgFailedToParseConnString = "failed to parse connection string"
	ErrMsgFailedToCreatePool      = "failed to create connection pool"
	ErrMsgFailedToPingDatabase    = "failed to ping database"
	ErrMsgFailedToOpenMigrations  = "failed to open migrations"
	ErrMsgFailedToMigrate         = "failed to run migrations"
	ErrMsgUnknownDirection        = "unknown migration direction"
)

// Log Messages
const (
	LogMsgSuccessfullyConnectedToDatabase = "Successfully connected to the database"
	LogMsgMigrationApplied                = "Migration applied"
	LogMsgMigrationsUpToDate              = "Database schema is up to date"
)
