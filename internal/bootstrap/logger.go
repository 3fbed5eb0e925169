package bootstrap

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/osse101/adlink/internal/config"
	"github.com/osse101/adlink/internal/logger"
)

// SetupLogger initializes the application logger. Output always goes to
// stdout; when cfg.LogDir is set it is also written to a timestamped file and
// older files beyond the retention count are removed.
// Returns the log file handle (caller must close; nil without LogDir).
func SetupLogger(cfg *config.Config) (*os.File, error) {
	addSource := cfg.Environment == "dev" || cfg.Environment == "development"
	loggerConfig := logger.NewConfig(
		cfg.LogLevel,
		cfg.LogFormat,
		cfg.ServiceName,
		cfg.Version,
		cfg.Environment,
		addSource,
	)

	var out io.Writer = os.Stdout
	var logFile *os.File
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, DirPermission); err != nil {
			return nil, fmt.Errorf("%s: %w", LogMsgFailedCreateLogsDir, err)
		}

		cleanupLogs(cfg.LogDir, LogFileRetentionCount)

		timestamp := time.Now().Format(LogFileTimestampFormat)
		logFileName := filepath.Join(cfg.LogDir, fmt.Sprintf(LogFileNamePattern, timestamp))

		f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermission)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", LogMsgFailedOpenLogFile, err)
		}
		logFile = f
		out = io.MultiWriter(os.Stdout, logFile)
	}

	logger.InitLoggerWithWriter(loggerConfig, out)

	slog.Info(LogMsgLoggingInitialized, "level", loggerConfig.LogLevel())
	slog.Info(LogMsgStartingService,
		"environment", cfg.Environment,
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat,
		"version", cfg.Version)

	slog.Debug(LogMsgConfigurationLoaded,
		"store_driver", cfg.StoreDriver,
		"relay_origin", cfg.RelayOrigin,
		"app_origin", cfg.AppOrigin,
		"backend_url", cfg.BackendURL,
		"port", cfg.Port)

	return logFile, nil
}

// cleanupLogs removes the oldest log files so that at most keep remain.
// File names embed a sortable timestamp.
func cleanupLogs(logDir string, keep int) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	var logFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), LogFileExtension) {
			logFiles = append(logFiles, entry.Name())
		}
	}
	if len(logFiles) <= keep {
		return
	}

	sort.Strings(logFiles)
	for _, name := range logFiles[:len(logFiles)-keep] {
		if err := os.Remove(filepath.Join(logDir, name)); err != nil {
			slog.Warn(LogMsgFailedDeleteOldLog, "file", name, "error", err)
		}
	}
}
