package postgres

// Error Messages - Integration Operations
const (
	ErrMsgFailedToFindIntegration   = "failed to find integration"
	ErrMsgFailedToUpsertIntegration = "failed to upsert integration"
	ErrMsgFailedToDeleteIntegration = "failed to delete integration"
	ErrMsgInvalidIntegrationID      = "invalid integration id"
)
