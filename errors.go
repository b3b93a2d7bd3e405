package fluxmcp

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("fluxmcp: no store configured")
	ErrStoreClosed = errors.New("fluxmcp: store closed")

	// Not found errors.
	ErrJobNotFound     = errors.New("fluxmcp: job not found")
	ErrClusterNotFound = errors.New("fluxmcp: cluster not found")

	// Registration errors.
	ErrClusterExists      = errors.New("fluxmcp: cluster already registered")
	ErrUnknownClusterType = errors.New("fluxmcp: unknown cluster type")
	ErrConnect            = errors.New("fluxmcp: cluster connection failed")

	// Authorization errors.
	ErrUnauthorized = errors.New("fluxmcp: not authorized")

	// Event errors.
	ErrMissingJobID   = errors.New("fluxmcp: event has no job id")
	ErrMalformedEvent = errors.New("fluxmcp: malformed event")

	// Engine errors.
	ErrEngineRunning    = errors.New("fluxmcp: engine already running")
	ErrEngineNotRunning = errors.New("fluxmcp: engine not running")
)
