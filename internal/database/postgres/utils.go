package postgres

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/osse101/adlink/internal/domain"
)

// parseIntegrationUUID parses an integration ID. A malformed ID cannot match any row.
func parseIntegrationUUID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s: %v", domain.ErrIntegrationNotFound, ErrMsgInvalidIntegrationID, err)
	}
	return u, nil
}

// dbError wraps a driver error so callers can match domain.ErrDatabaseError
func dbError(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrDatabaseError, msg, err)
}
