package workflow

import (
	"errors"
	"fmt"
)

// Banner texts shown to the editor user.
const (
	msgInvalidConnection    = "Invalid connection. Input → LLM → Output only."
	msgMissingConfiguration = "Please provide input and configure the LLM node."
)

// Stable codes returned by ErrorCode.
const (
	CodeUnknownKind          = "unknown_kind"
	CodeDuplicateKind        = "duplicate_kind"
	CodeInvalidConnection    = "invalid_connection"
	CodeInvalidPatch         = "invalid_patch"
	CodeMissingConfiguration = "missing_configuration"
	CodeRequestFailed        = "request_failed"
	CodeRunSuperseded        = "run_superseded"
	CodeInternal             = "internal"
)

// ErrMissingConfiguration is returned by Executor.Run when the Input node has
// no text or the LLM node has no API key. No request is issued.
var ErrMissingConfiguration = errors.New("missing input text or llm api key")

// ErrRunSuperseded is returned by a run that was cancelled because a newer
// run started. A superseded run never writes the Output node.
var ErrRunSuperseded = errors.New("run superseded by a newer run")

// UnknownKindError is returned when a type name is not a registered kind.
type UnknownKindError struct {
	Name string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown node kind %q", e.Name)
}

func (e *UnknownKindError) UserMessage() string {
	return fmt.Sprintf("Unknown node type %q.", e.Name)
}

// DuplicateKindError is returned when a node of the same kind already exists.
type DuplicateKindError struct {
	Kind NodeKind
}

func (e *DuplicateKindError) Error() string {
	return fmt.Sprintf("a %s node already exists", e.Kind)
}

func (e *DuplicateKindError) UserMessage() string {
	return e.Kind.Label() + " Node is already added."
}

// InvalidConnectionError is returned for an edge outside the fixed
// Input → LLM → Output topology.
type InvalidConnectionError struct {
	SourceKind NodeKind
	TargetKind NodeKind
	Reason     string
}

func (e *InvalidConnectionError) Error() string {
	if e.Reason != "" {
		return "invalid connection: " + e.Reason
	}
	return fmt.Sprintf("invalid connection %s -> %s", e.SourceKind, e.TargetKind)
}

func (e *InvalidConnectionError) UserMessage() string { return msgInvalidConnection }

// InvalidPatchError is returned when a data patch cannot be merged.
type InvalidPatchError struct {
	NodeID string
	Field  string
	Reason string
}

func (e *InvalidPatchError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("node %q: field %q %s", e.NodeID, e.Field, e.Reason)
	}
	return fmt.Sprintf("node %q: %s", e.NodeID, e.Reason)
}

func (e *InvalidPatchError) UserMessage() string {
	if e.Field != "" {
		return fmt.Sprintf("Invalid value for %s: %s.", e.Field, e.Reason)
	}
	return fmt.Sprintf("Invalid node data: %s.", e.Reason)
}

// RequestFailedError wraps a network, HTTP or decoding failure of the
// completion call.
type RequestFailedError struct {
	Cause error
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("completion request failed: %v", e.Cause)
}

func (e *RequestFailedError) Unwrap() error { return e.Cause }

func (e *RequestFailedError) UserMessage() string {
	return "Error: " + e.Cause.Error()
}

// UserMessage returns the banner text for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	switch {
	case errors.Is(err, ErrMissingConfiguration):
		return msgMissingConfiguration
	case errors.Is(err, ErrRunSuperseded):
		return "This run was replaced by a newer run."
	}
	return "Error: " + err.Error()
}

// ErrorCode returns a stable machine-readable code for err.
func ErrorCode(err error) string {
	var (
		uk *UnknownKindError
		dk *DuplicateKindError
		ic *InvalidConnectionError
		ip *InvalidPatchError
		rf *RequestFailedError
	)
	switch {
	case errors.As(err, &uk):
		return CodeUnknownKind
	case errors.As(err, &dk):
		return CodeDuplicateKind
	case errors.As(err, &ic):
		return CodeInvalidConnection
	case errors.As(err, &ip):
		return CodeInvalidPatch
	case errors.Is(err, ErrMissingConfiguration):
		return CodeMissingConfiguration
	case errors.Is(err, ErrRunSuperseded):
		return CodeRunSuperseded
	case errors.As(err, &rf):
		return CodeRequestFailed
	}
	return CodeInternal
}
