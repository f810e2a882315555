package session

import "errors"

var (
	// ErrStoreUnavailable indicates the store tier could not be reached.
	// It is transient and triggers the fallback path; it is never the
	// same condition as a legitimate miss.
	ErrStoreUnavailable = errors.New("session.store_unavailable")

	// ErrNotFound covers absent, expired and revoked credentials alike,
	// so callers cannot probe which check failed.
	ErrNotFound = errors.New("session.not_found")

	// ErrRememberTokenFailed aborts a login whose remember-me companion
	// could not be persisted. A session is never issued without it.
	ErrRememberTokenFailed = errors.New("session.remember_token_failed")

	// ErrFallbackWriteFailed means neither tier accepted the write;
	// fatal for the request.
	ErrFallbackWriteFailed = errors.New("session.fallback_write_failed")

	// ErrIndexConflict reports a lost per-user index mutation; the
	// manager re-acquires the user lock and retries once.
	ErrIndexConflict = errors.New("session.index_conflict")

	// ErrManagerClosed is returned once shutdown has begun.
	ErrManagerClosed = errors.New("session.manager_closed")

	// ErrTokenGeneration indicates identifier generation failed.
	ErrTokenGeneration = errors.New("session.token_generation_failed")
)
