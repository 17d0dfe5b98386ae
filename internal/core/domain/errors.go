package domain

import "go.trai.ch/zerr"

var (
	// ErrEngineBusy is returned when a build or clean is started while
	// another operation is still running.
	ErrEngineBusy = zerr.New("an operation is already running")

	// ErrNoOperation is returned when Cancel is called with no operation
	// outstanding.
	ErrNoOperation = zerr.New("no operation is running")

	// ErrBuildFailed is returned when one or more items failed to build.
	ErrBuildFailed = zerr.New("build failed")

	// ErrCancelled is returned when an operation was stopped by Cancel.
	ErrCancelled = zerr.New("operation cancelled")

	// ErrSourceMissing is recorded when an item's source file does not exist.
	ErrSourceMissing = zerr.New("source file missing")

	// ErrUnknownContentType is returned when no stages are registered for an
	// item's declared content type.
	ErrUnknownContentType = zerr.New("unknown content type")

	// ErrContentTypeExists is returned when registering a content type twice.
	ErrContentTypeExists = zerr.New("content type already registered")

	// ErrLoaderHashCollision is returned when two distinct loader names map
	// to the same 32-bit hash at registration time.
	ErrLoaderHashCollision = zerr.New("loader name hash collision")

	// ErrItemTooLarge is returned when an item's payload exceeds the pack
	// size limit; the job cannot proceed.
	ErrItemTooLarge = zerr.New("item exceeds pack size limit")

	// ErrDuplicateItem is returned when a project declares the same logical
	// item name twice.
	ErrDuplicateItem = zerr.New("duplicate item name")
)
