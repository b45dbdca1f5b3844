package routing

import "errors"

var (
	// ErrUpstreamNotFound means a lookup referenced an unregistered
	// upstream name, a programming or configuration error.
	ErrUpstreamNotFound = errors.New("routing: upstream not found")

	ErrEndpointNotFound = errors.New("routing: endpoint not found")

	// ErrNoHealthyEndpoint is transient, every member of the upstream is
	// currently excluded. Callers should answer service-unavailable and
	// may retry after the cooldown window.
	ErrNoHealthyEndpoint = errors.New("routing: no healthy endpoint")

	// ErrNoRoute means no pattern matched and no root catch-all is
	// installed.
	ErrNoRoute = errors.New("routing: no matching route")

	ErrDuplicateUpstream = errors.New("routing: upstream already registered")
	ErrDuplicateRoute    = errors.New("routing: route already registered")
	ErrInvalidPattern    = errors.New("routing: invalid route pattern")
)
