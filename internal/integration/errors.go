// Ultrawide - Home Lab Dashboard Integration Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ultrawide

package integration

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ConfigurationError reports missing or invalid settings. It is raised before
// any network call and is never retried automatically.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// AuthenticationError reports rejected credentials (HTTP 401/403, an
// auth_invalid frame, a failed login).
type AuthenticationError struct {
	StatusCode int
	Msg        string
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Msg, e.StatusCode)
	}
	return e.Msg
}

// NetworkError wraps transport failures: refused connections, timeouts,
// closed sockets, gateway errors. The connection is treated as lost.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MalformedResponseError reports a response with an unexpected shape, such as
// an HTML login page where JSON was expected. It usually means a wrong URL.
type MalformedResponseError struct {
	Msg     string
	Snippet string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Snippet != "" {
		msg += fmt.Sprintf(" (body: %q)", e.Snippet)
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// PartialFailure reports sub-fetches that failed inside one refresh cycle
// while their siblings succeeded. A snapshot returned alongside a
// PartialFailure is still applied.
type PartialFailure struct {
	Sections map[string]error
}

func (e *PartialFailure) Error() string {
	names := make([]string, 0, len(e.Sections))
	for name := range e.Sections {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Sections[name].Error())
	}
	return "partial refresh failure: " + strings.Join(parts, "; ")
}

// Failed reports whether the named section failed.
func (e *PartialFailure) Failed(section string) bool {
	_, ok := e.Sections[section]
	return ok
}

// Configurationf builds a ConfigurationError.
func Configurationf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// Authenticationf builds an AuthenticationError without a status code.
func Authenticationf(format string, args ...any) error {
	return &AuthenticationError{Msg: fmt.Sprintf(format, args...)}
}

// Network wraps err as a NetworkError unless it already is one.
func Network(op string, err error) error {
	if err == nil {
		return nil
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return err
	}
	return &NetworkError{Op: op, Err: err}
}

// Kind names the taxonomy bucket of err for status payloads and metrics.
func Kind(err error) string {
	var (
		cfgErr  *ConfigurationError
		authErr *AuthenticationError
		netErr  *NetworkError
		malErr  *MalformedResponseError
		partial *PartialFailure
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.As(err, &authErr):
		return "authentication"
	case errors.As(err, &netErr):
		return "network"
	case errors.As(err, &malErr):
		return "malformed_response"
	case errors.As(err, &partial):
		return "partial_failure"
	default:
		return "unknown"
	}
}

// IsConnectionLost reports whether err means the remote side is unreachable.
func IsConnectionLost(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
