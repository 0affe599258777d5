// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotRegistered indicates a topic has no assigned model. The orchestrator
// never guesses a model; callers must register one first.
var ErrNotRegistered = errors.New("topic has no registered model")

// ErrConnectivity indicates the model inference or tool execution service is
// unreachable or returned a transport-level failure.
var ErrConnectivity = errors.New("external service unreachable")

// ErrToolExecution indicates a tool was found but its execution failed.
var ErrToolExecution = errors.New("tool execution failed")

// ErrIdentityProvisioning indicates credential setup for a synthetic identity
// failed; a response cannot be attributed without one.
var ErrIdentityProvisioning = errors.New("identity provisioning failed")
