package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// DependencyCycle indicates inspector prerequisites form a cycle
	DependencyCycle ErrorCode = "DEPENDENCY_CYCLE"
	// MissingProduces indicates a named prerequisite declares no produced tags
	MissingProduces ErrorCode = "MISSING_PRODUCES"
	// UnknownPrerequisite indicates a prerequisite names an unregistered inspector
	UnknownPrerequisite ErrorCode = "UNKNOWN_PREREQUISITE"
	// DuplicateInspector indicates two inspectors share an identity
	DuplicateInspector ErrorCode = "DUPLICATE_INSPECTOR"
	// MalformedDescriptor indicates an invalid dependency descriptor
	MalformedDescriptor ErrorCode = "MALFORMED_DESCRIPTOR"
	// InspectorFault indicates an inspector returned an error for a node
	InspectorFault ErrorCode = "INSPECTOR_FAULT"
	// InspectorPanic indicates an inspector panicked while inspecting a node
	InspectorPanic ErrorCode = "INSPECTOR_PANIC"
	// InvocationTimeout indicates an inspector exceeded its invocation budget
	InvocationTimeout ErrorCode = "INVOCATION_TIMEOUT"
	// NonConvergence indicates the pass safety valve was reached
	NonConvergence ErrorCode = "NON_CONVERGENCE"
	// InvalidValue indicates a property value of an unsupported type
	InvalidValue ErrorCode = "INVALID_VALUE"
	// NodeNotFound indicates an unknown node id
	NodeNotFound ErrorCode = "NODE_NOT_FOUND"
	// DuplicateNode indicates a node id was registered twice
	DuplicateNode ErrorCode = "DUPLICATE_NODE"
	// StorageError indicates the snapshot store failed
	StorageError ErrorCode = "STORAGE_ERROR"
	// ConfigInvalid indicates invalid configuration or rule files
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditDescriptor suggests changing an inspector's declared dependencies
	EditDescriptor FixActionType = "edit-descriptor"
	// EditConfig suggests changing the configuration file
	EditConfig FixActionType = "edit-config"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
}

// ScanError represents an archscan error with code, message, and suggestions
type ScanError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// NewScanError creates a new ScanError
func NewScanError(code ErrorCode, message string, cause error, suggestedFixes []FixAction) *ScanError {
	return &ScanError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
	}
}

// Newf creates a ScanError with a formatted message and the default fixes for the code.
func Newf(code ErrorCode, format string, args ...interface{}) *ScanError {
	return NewScanError(code, fmt.Sprintf(format, args...), nil, GetSuggestedFixes(code))
}

// Wrap creates a ScanError around cause. A nil cause yields nil.
func Wrap(code ErrorCode, message string, cause error) error {
	if cause == nil {
		return nil
	}
	return NewScanError(code, message, cause, GetSuggestedFixes(code))
}

// Error implements the error interface
func (e *ScanError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ScanError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *ScanError) WithDetails(details interface{}) *ScanError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first ScanError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var se *ScanError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsConfiguration reports whether err is a configuration error that must abort a run
// before any analysis begins.
func IsConfiguration(err error) bool {
	switch CodeOf(err) {
	case DependencyCycle, MissingProduces, UnknownPrerequisite, DuplicateInspector,
		MalformedDescriptor, ConfigInvalid:
		return true
	}
	return false
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	DependencyCycle: {
		{
			Type:        EditDescriptor,
			Description: "Remove one of the prerequisites that closes the cycle",
		},
		{
			Type:        RunCommand,
			Command:     "archscan inspectors",
			Safe:        true,
			Description: "List inspectors with their resolved requirements",
		},
	},
	MissingProduces: {
		{
			Type:        EditDescriptor,
			Description: "Declare the tags the prerequisite inspector produces",
		},
	},
	UnknownPrerequisite: {
		{
			Type:        RunCommand,
			Command:     "archscan inspectors",
			Safe:        true,
			Description: "List registered inspector identities",
		},
	},
	NonConvergence: {
		{
			Type:        EditConfig,
			Description: "Raise engine.maxPasses or break the tag cycle between inspectors",
		},
	},
	ConfigInvalid: {
		{
			Type:        EditConfig,
			Description: "Fix .archscan/config.json",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
