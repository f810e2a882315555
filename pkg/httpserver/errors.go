package httpserver

import "errors"

var (
	// ErrStart wraps failures to bring the server up or keep it serving.
	ErrStart = errors.New("httpserver.start_failed")

	// ErrShutdown wraps failures during graceful shutdown.
	ErrShutdown = errors.New("httpserver.shutdown_failed")
)
