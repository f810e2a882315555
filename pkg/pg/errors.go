package pg

import "errors"

var (
	ErrInvalidConfig     = errors.New("failed to parse postgres config")
	ErrConnectionFailed  = errors.New("failed to open postgres connection")
	ErrHealthcheckFailed = errors.New("postgres healthcheck failed")
	ErrMigrationFailed   = errors.New("failed to apply migrations")
)
