// Package logger provides a levelled, scoped logging facility backed by zerolog.
//
// The logger supports four levels: Debug, Info, Warn, and Error.
// Each entry carries a timestamp, level, optional scope (a worker or
// component name) and a printf-style message.
//
// # Basic Usage
//
// Using the default logger:
//
//	logger.Info("", "pool started")
//	logger.Debug("worker-0", "got a job")
//	logger.Error("server", "accept failed: %v", err)
//
// Creating a custom logger:
//
//	l := logger.New(os.Stderr, logger.LevelDebug)     // JSON lines
//	c := logger.NewConsole(os.Stdout, logger.LevelInfo) // human readable
//
// # Log Levels
//
// Messages below the configured level are filtered:
//   - LevelDebug: all messages
//   - LevelInfo: Info, Warn, Error
//   - LevelWarn: Warn, Error
//   - LevelError: Error only
//
// # Thread Safety
//
// All logging operations are safe for concurrent use.
package logger
