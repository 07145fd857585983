package errors

import (
	"fmt"
	"strings"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapBindError wraps listener bind failures with user-friendly context
func WrapBindError(err error, proto, ip string, port int) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to start the %s simulator on %s:%d", proto, ip, port),
		Reason:  extractBindReason(err, port),
		Hint:    "Another process may hold the port, or the port may need elevated privileges",
		Try:     fmt.Sprintf("fieldsim %s --port %d", strings.ToLower(proto), port+10000),
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Run print-default-config to see a complete working example",
		Try:     fmt.Sprintf("fieldsim validate-config --config %s", configPath),
		Err:     err,
	}
}

// WrapCaptureError wraps pcap output failures with user-friendly context
func WrapCaptureError(err error, path string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to open capture file %s", path),
		Reason:  err.Error(),
		Hint:    "The directory must exist and be writable",
		Try:     "fieldsim fins --pcap ./fins.pcap",
		Err:     err,
	}
}

func extractBindReason(err error, port int) string {
	errStr := err.Error()

	if strings.Contains(errStr, "address already in use") {
		return "Port already in use - another simulator or service is listening"
	}
	if strings.Contains(errStr, "permission denied") && port < 1024 {
		return fmt.Sprintf("Port %d is privileged - binding requires elevated rights", port)
	}
	if strings.Contains(errStr, "cannot assign requested address") {
		return "Listen address is not configured on any local interface"
	}

	return "Could not bind the listen socket"
}
