// Package log provides the leveled logging interface used across coachrag.
//
// Components accept a Logger and fall back to the package-level logger when
// given nil (see OrDefault). The default implementation wraps
// github.com/kataras/golog:
//
//	logger := log.New(log.LogLevelDebug)
//	logger.Info("ingested %d chunks", n)
//
// An existing golog.Logger can be wrapped with NewGologLogger, and NoOpLogger
// silences a component entirely. ParseLevel maps the LOG_LEVEL setting
// ("debug", "info", "warn", "error", "none") to a LogLevel.
package log
