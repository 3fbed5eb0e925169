package bootstrap

import (
	"context"
	"log/slog"

	"github.com/osse101/adlink/internal/linking"
	"github.com/osse101/adlink/internal/scheduler"
	"github.com/osse101/adlink/internal/server"
	"github.com/osse101/adlink/internal/sse"
	"github.com/osse101/adlink/internal/worker"
)

// ShutdownComponents holds all components that need graceful shutdown.
type ShutdownComponents struct {
	Server        *server.Server
	Linking       linking.Service
	Scheduler     *scheduler.Scheduler
	WorkerPool    *worker.Pool
	SSESubscriber *sse.Subscriber
	SSEHub        *sse.Hub
	Repositories  *Repositories
}

// GracefulShutdown performs graceful shutdown of all application components.
// It shuts down in order:
// 1. HTTP server (stop accepting new requests)
// 2. Scheduler (no new reaper runs)
// 3. Linking service (dispose live sessions, close dialogs)
// 4. Worker pool (finish in-flight exchanges)
// 5. SSE subscriber and hub (close browser streams)
// 6. Database pool
//
// Errors during shutdown are logged but do not stop the shutdown sequence.
func GracefulShutdown(ctx context.Context, components ShutdownComponents) {
	slog.Info(LogMsgShuttingDownServer)

	if components.Server != nil {
		if err := components.Server.Stop(ctx); err != nil {
			slog.Error(LogMsgServerForcedShutdown, "error", err)
		}
	}

	slog.Info(LogMsgStoppingJobs)
	if components.Scheduler != nil {
		components.Scheduler.Stop()
	}

	if components.Linking != nil {
		if err := components.Linking.Shutdown(ctx); err != nil {
			slog.Error(LogMsgLinkingShutdownFailed, "error", err)
		}
	}

	if components.WorkerPool != nil {
		components.WorkerPool.Stop()
	}

	if components.SSESubscriber != nil {
		components.SSESubscriber.Close()
	}
	if components.SSEHub != nil {
		components.SSEHub.Stop()
	}

	if components.Repositories != nil {
		components.Repositories.Close()
	}

	slog.Info(LogMsgServerStopped)
}
