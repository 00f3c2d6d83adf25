package p2plink

import (
	"errors"
	"fmt"
)

// ErrorCode is a platform connect/discovery error code.
type ErrorCode int

const (
	// CodeInternal is a generic framework-internal failure.
	CodeInternal ErrorCode = 0
	// CodeUnsupported means P2P is not supported on this device.
	CodeUnsupported ErrorCode = 1
	// CodeBusy means the framework is busy servicing a previous request.
	CodeBusy ErrorCode = 2
)

// Message returns a short human-readable description of the code.
func (c ErrorCode) Message() string {
	switch c {
	case CodeInternal:
		return "internal error"
	case CodeUnsupported:
		return "P2P unsupported on this device"
	case CodeBusy:
		return "framework busy"
	default:
		return fmt.Sprintf("error code %d", int(c))
	}
}

// ConnectError is a transport-layer connect or discovery failure carrying the
// platform error code. Connect errors are retried up to the configured budget
// before being surfaced.
type ConnectError struct {
	Code ErrorCode
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect failed: %s", e.Code.Message())
}

// NewConnectError creates a ConnectError for a platform code.
func NewConnectError(code ErrorCode) *ConnectError {
	return &ConnectError{Code: code}
}

// Kind categorizes link-flow failures.
type Kind int

const (
	// KindConnect indicates the connect retry budget was exhausted.
	KindConnect Kind = iota
	// KindGroupInfoUnavailable indicates the group never became available
	// within the poll budget.
	KindGroupInfoUnavailable
	// KindClientNotFound indicates the requested peer is not among the
	// group's clients. Immediate, never retried.
	KindClientNotFound
	// KindAddressResolution indicates every resolution stage exhausted.
	KindAddressResolution
	// KindInFlight indicates a connect flow for the peer is already running.
	KindInFlight
)

// String returns a human-readable name for the kind
func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "Connect Error"
	case KindGroupInfoUnavailable:
		return "Group Info Unavailable"
	case KindClientNotFound:
		return "Client Not Found"
	case KindAddressResolution:
		return "Address Resolution Failed"
	case KindInFlight:
		return "Connection In Flight"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// LinkError represents a failure of the link-establishment flow.
type LinkError struct {
	Kind    Kind   // Category of failure
	Message string // Human-readable message, suitable for the failure callback
	Err     error  // Underlying error (if any)
	Peer    string // Peer device address (for context)
}

// Error implements the error interface
func (e *LinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *LinkError) Unwrap() error {
	return e.Err
}

// NewConnectExhaustedError creates the terminal error after the connect retry
// budget ran out. The message is derived from the last platform error.
func NewConnectExhaustedError(peer string, attempts int, last error) *LinkError {
	msg := fmt.Sprintf("failed to connect after %d attempts", attempts)
	var cerr *ConnectError
	if errors.As(last, &cerr) {
		msg = fmt.Sprintf("failed to connect after %d attempts: %s", attempts, cerr.Code.Message())
	}
	return &LinkError{Kind: KindConnect, Message: msg, Err: last, Peer: peer}
}

// NewGroupInfoUnavailableError creates the terminal error when the group
// never became available within the poll budget.
func NewGroupInfoUnavailableError(peer string, attempts int) *LinkError {
	return &LinkError{
		Kind:    KindGroupInfoUnavailable,
		Message: fmt.Sprintf("group info unavailable after %d attempts", attempts),
		Peer:    peer,
	}
}

// NewClientNotFoundError creates the error for a peer missing from the group.
func NewClientNotFoundError(peer string) *LinkError {
	return &LinkError{
		Kind:    KindClientNotFound,
		Message: fmt.Sprintf("no client with device address %s in group", peer),
		Peer:    peer,
	}
}

// NewAddressResolutionError creates the error for exhausted resolution stages.
func NewAddressResolutionError(peer string, err error) *LinkError {
	return &LinkError{
		Kind:    KindAddressResolution,
		Message: "Could not resolve client IP",
		Err:     err,
		Peer:    peer,
	}
}

// NewInFlightError creates the error for a duplicate concurrent connect.
func NewInFlightError(peer string) *LinkError {
	return &LinkError{
		Kind:    KindInFlight,
		Message: fmt.Sprintf("connection to %s already in flight", peer),
		Peer:    peer,
	}
}

// IsClientNotFound checks if an error is a client-not-found failure
func IsClientNotFound(err error) bool {
	var lerr *LinkError
	return errors.As(err, &lerr) && lerr.Kind == KindClientNotFound
}

// IsAddressResolution checks if an error is an exhausted-resolution failure
func IsAddressResolution(err error) bool {
	var lerr *LinkError
	return errors.As(err, &lerr) && lerr.Kind == KindAddressResolution
}

// IsInFlight checks if an error is a duplicate-connect rejection
func IsInFlight(err error) bool {
	var lerr *LinkError
	return errors.As(err, &lerr) && lerr.Kind == KindInFlight
}
