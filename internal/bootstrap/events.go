package bootstrap

import (
	"log/slog"

	"github.com/osse101/adlink/internal/event"
)

// InitializeEventSystem creates the in-process event bus carrying relay
// callbacks and dialog updates
func InitializeEventSystem() *event.MemoryBus {
	eventBus := event.NewMemoryBus()
	slog.Info(LogMsgEventSystemInitialized)
	return eventBus
}
