package main

import (
	"os"

	"github.com/acnlabs/agentmigrate"
)

// ExitHandler lets tests intercept program termination.
type ExitHandler interface {
	Exit(code int)
	LogFatalError(err error, msg string, keyvals ...any)
}

// DefaultExitHandler logs through the default logger and calls os.Exit.
type DefaultExitHandler struct{}

func NewDefaultExitHandler() *DefaultExitHandler {
	return &DefaultExitHandler{}
}

func (h *DefaultExitHandler) Exit(code int) {
	os.Exit(code)
}

// LogFatalError logs err and exits with status 1.
func (h *DefaultExitHandler) LogFatalError(err error, msg string, keyvals ...any) {
	// Resolved at call time so a logger configured by the run is used.
	logger := agentmigrate.GetLogger().WithComponent("main")
	logger.Error(msg, append([]any{"error", err}, keyvals...)...)
	h.Exit(1)
}

var exitHandler ExitHandler = NewDefaultExitHandler()
