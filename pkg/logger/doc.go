// Package logger builds slog loggers for applications embedding the engine,
// plus typed attribute helpers for the domain's common log fields.
//
//	log := logger.New(
//		logger.WithLevel(slog.LevelDebug),
//		logger.WithAttr(slog.String("component", "queue")),
//	)
//	logger.SetAsDefault(log)
package logger
