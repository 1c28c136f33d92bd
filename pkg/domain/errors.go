package domain

import (
	"errors"
	"fmt"
)

// ErrMissingURL is returned when a remote reference has no options.url.
var ErrMissingURL = errors.New("remote description missing url")

// ErrNodeTypeNotRegistered is returned when a description names a type unknown to the node registry.
var ErrNodeTypeNotRegistered = errors.New("node type not registered")

// ErrMalformedDescription is returned when a description is not a keyed object or lacks a type.
var ErrMalformedDescription = errors.New("malformed description")

// ErrNeedLogin is returned for HTTP 401 responses.
var ErrNeedLogin = errors.New("need login")

// ErrInsufficientPrivilege is returned for HTTP 403 responses.
var ErrInsufficientPrivilege = errors.New("insufficient privilege")

// ErrTargetNotFound is returned when an identifier path does not resolve to a node.
var ErrTargetNotFound = errors.New("target node not found")

// ErrMissingEvent is returned when a bind spec has no event name.
var ErrMissingEvent = errors.New("bind missing event")

// ErrFunctionNotFound is returned when a registered function name is unknown.
var ErrFunctionNotFound = errors.New("registered function not found")

// ErrMethodNotFound is returned when a node exposes no method with the requested name.
var ErrMethodNotFound = errors.New("method not found")

// ErrUnknownAction is returned for an actiontype missing from the dispatch table.
var ErrUnknownAction = errors.New("unknown actiontype")

// ErrRemoteChainTooLong is returned when remote references chain beyond the configured hop limit.
var ErrRemoteChainTooLong = errors.New("remote reference chain too long")

// ErrSessionNotFound is returned by session stores when no record exists for a host.
var ErrSessionNotFound = errors.New("session not found")

// HTTPError reports a non-200 response other than 401/403.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %d: %s", e.Status, e.URL)
}

// BuildError wraps a failure that happened while building a node of a given type.
type BuildError struct {
	Type string
	ID   string
	Err  error
}

func (e *BuildError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("build %s(%s): %v", e.Type, e.ID, e.Err)
	}
	return fmt.Sprintf("build %s: %v", e.Type, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// ErrDescriptionNotFound is returned by description libraries for unknown ids.
var ErrDescriptionNotFound = errors.New("description not found")

// ErrNoBaseURL is returned when an app-relative address is resolved without a base URL.
var ErrNoBaseURL = errors.New("no base url configured for relative address")
