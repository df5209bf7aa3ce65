package openwebif

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeInvalidAddress indicates an empty address or one that cannot form a URL
	ErrTypeInvalidAddress ErrorType = iota
	// ErrTypeHostUnreachable indicates DNS failure, refused or unreachable host, or timeout
	ErrTypeHostUnreachable
	// ErrTypeTransport indicates any other transport-level failure
	ErrTypeTransport
	// ErrTypeServer indicates the device answered with a non-200 status
	ErrTypeServer
	// ErrTypeDecode indicates a screen grab that is not a decodable image
	ErrTypeDecode
	// ErrTypeNotConnected indicates a command issued without an established session
	ErrTypeNotConnected
	// ErrTypeReconnectExhausted indicates the bounded reconnect helper gave up
	ErrTypeReconnectExhausted
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeInvalidAddress:
		return "Invalid Address"
	case ErrTypeHostUnreachable:
		return "Host Unreachable"
	case ErrTypeTransport:
		return "Transport Error"
	case ErrTypeServer:
		return "Server Error"
	case ErrTypeDecode:
		return "Decode Error"
	case ErrTypeNotConnected:
		return "Not Connected"
	case ErrTypeReconnectExhausted:
		return "Reconnect Exhausted"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred while talking to a set-top box
type DeviceError struct {
	Type       ErrorType // Category of error
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (ErrTypeServer only)
	Address    string    // Device address (for context)
	Err        error     // Underlying error (if any)
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError maps a transport error onto HostUnreachable or
// TransportError. Returns nil for a nil error.
func ClassifyNetworkError(err error, address string) *DeviceError {
	if err == nil {
		return nil
	}

	if isHostUnreachable(err) {
		return &DeviceError{
			Type:    ErrTypeHostUnreachable,
			Message: unreachableReason(err),
			Address: address,
			Err:     err,
		}
	}

	return &DeviceError{
		Type:    ErrTypeTransport,
		Message: transportDetail(err),
		Address: address,
		Err:     err,
	}
}

func isHostUnreachable(err error) bool {
	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTDOWN)
}

func unreachableReason(err error) string {
	var dnsErr *net.DNSError
	switch {
	case os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.As(err, &dnsErr):
		return fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name)
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.Is(err, syscall.ENETUNREACH):
		return "network unreachable"
	default:
		return "host unreachable"
	}
}

// transportDetail strips the url.Error prefix ("Get \"http://...\": ") so the
// message carries only the cause.
func transportDetail(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}

// NewInvalidAddressError creates an invalid-address error
func NewInvalidAddressError(address string, err error) *DeviceError {
	msg := "device address is empty"
	if address != "" {
		msg = fmt.Sprintf("cannot build request URL for %q", address)
	}
	return &DeviceError{
		Type:    ErrTypeInvalidAddress,
		Message: msg,
		Address: address,
		Err:     err,
	}
}

// NewTimeoutError creates the HostUnreachable error reported when the probe
// timer fires before the device answers.
func NewTimeoutError(address string) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeHostUnreachable,
		Message: "request timed out",
		Address: address,
		Err:     context.DeadlineExceeded,
	}
}

// NewServerError creates an error for a non-200 response
func NewServerError(address string, statusCode int) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeServer,
		Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		StatusCode: statusCode,
		Address:    address,
	}
}

// NewDecodeError creates an error for a grab that is not a valid image
func NewDecodeError(address string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeDecode,
		Message: "screen grab is not a valid image",
		Address: address,
		Err:     err,
	}
}

// NewNotConnectedError creates an error for commands sent without a session
func NewNotConnectedError(address string) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeNotConnected,
		Message: "not connected to a device",
		Address: address,
	}
}

// NewReconnectExhaustedError wraps the last probe failure after the
// reconnect helper used all its attempts.
func NewReconnectExhaustedError(address string, attempts int, last error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeReconnectExhausted,
		Message: fmt.Sprintf("gave up after %d attempts", attempts),
		Address: address,
		Err:     last,
	}
}

// TypeOf returns the ErrorType of the first DeviceError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Type, true
	}
	return 0, false
}

func isType(err error, t ErrorType) bool {
	got, ok := TypeOf(err)
	return ok && got == t
}

// IsInvalidAddress checks if an error is an invalid-address error
func IsInvalidAddress(err error) bool { return isType(err, ErrTypeInvalidAddress) }

// IsHostUnreachable checks if an error is a host-unreachable error
func IsHostUnreachable(err error) bool { return isType(err, ErrTypeHostUnreachable) }

// IsTransportError checks if an error is a generic transport error
func IsTransportError(err error) bool { return isType(err, ErrTypeTransport) }

// IsServerError checks if an error is a non-200 response
func IsServerError(err error) bool { return isType(err, ErrTypeServer) }

// IsDecodeError checks if an error is an image decode failure
func IsDecodeError(err error) bool { return isType(err, ErrTypeDecode) }

// IsNotConnected checks if an error is a not-connected error
func IsNotConnected(err error) bool { return isType(err, ErrTypeNotConnected) }

// IsReconnectExhausted checks if an error is a reconnect-exhausted error
func IsReconnectExhausted(err error) bool { return isType(err, ErrTypeReconnectExhausted) }

// StatusCode returns the HTTP status of a server error, or 0.
func StatusCode(err error) int {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.StatusCode
	}
	return 0
}

// ShortMessage returns a concise, user-facing reason for err.
func ShortMessage(err error) string {
	if err == nil {
		return ""
	}
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeInvalidAddress:
		return "Enter the receiver's IP address"
	case ErrTypeHostUnreachable:
		return "Receiver unreachable (" + devErr.Message + ")"
	case ErrTypeTransport:
		return "Network error: " + devErr.Message
	case ErrTypeServer:
		return fmt.Sprintf("Receiver error (HTTP %d)", devErr.StatusCode)
	case ErrTypeDecode:
		return "Screen grab could not be decoded"
	case ErrTypeNotConnected:
		return "Not connected"
	case ErrTypeReconnectExhausted:
		return "Could not reconnect to the receiver"
	default:
		return devErr.Message
	}
}

// TroubleshootingHint returns multi-line advice for err.
func TroubleshootingHint(err error) string {
	t, ok := TypeOf(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch t {
	case ErrTypeInvalidAddress:
		return "Use the receiver's bare IPv4 address, e.g. 192.168.1.20 (no http:// and no port)."
	case ErrTypeHostUnreachable, ErrTypeReconnectExhausted:
		return strings.Join([]string{
			"The receiver did not answer.",
			"Troubleshooting:",
			"  • Check that the receiver is powered on (not in deep standby)",
			"  • Verify the IP address in the receiver's network settings",
			"  • Make sure this computer is on the same network",
			"  • Run 'e2remote scan' to look for receivers",
		}, "\n")
	case ErrTypeServer:
		return strings.Join([]string{
			fmt.Sprintf("The receiver returned HTTP %d.", StatusCode(err)),
			"Troubleshooting:",
			"  • Check that the OpenWebif plugin is installed and enabled",
			"  • Disable OpenWebif authentication for local clients",
		}, "\n")
	case ErrTypeDecode:
		return "The receiver returned something other than an image. Some images need the grab plugin installed."
	case ErrTypeNotConnected:
		return "Connect to a receiver first with 'e2remote probe --device <ip>'."
	default:
		return "A network error occurred. Check your connection and try again."
	}
}
