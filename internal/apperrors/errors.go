// Package apperrors provides the structured error taxonomy shared by the
// websocket protocol and the REST surface.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the category of a protocol error. The set is closed: every error a
// handler can surface to a client carries exactly one of these.
type Code string

const (
	// CodeInvalidUser indicates a referenced user id does not exist.
	CodeInvalidUser Code = "invalid_user"
	// CodeNotFound indicates a referenced lobby or resource does not exist.
	CodeNotFound Code = "not_found"
	// CodeAlreadyMember indicates a join by an existing member.
	CodeAlreadyMember Code = "already_member"
	// CodeNotMember indicates an operation by a user outside the lobby.
	CodeNotMember Code = "not_member"
	// CodeNotAuthorized indicates a non-host attempting a host-only mutation.
	CodeNotAuthorized Code = "not_authorized"
	// CodeMalformed indicates a payload with a missing or mistyped field.
	CodeMalformed Code = "malformed_request"
	// CodeInternal indicates a server-side failure.
	CodeInternal Code = "internal"
)

// Error is a structured error with a protocol code and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error code to a status for the REST surface.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeMalformed:
		return http.StatusBadRequest
	case CodeInvalidUser, CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyMember, CodeNotMember:
		return http.StatusConflict
	case CodeNotAuthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func InvalidUser(userID string) *Error {
	return &Error{Code: CodeInvalidUser, Message: fmt.Sprintf("invalid user id: %s", userID)}
}

func LobbyNotFound(lobbyID string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("invalid lobby id: %s", lobbyID)}
}

func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

func AlreadyMember(userID, lobbyID string) *Error {
	return &Error{Code: CodeAlreadyMember, Message: fmt.Sprintf("user %s is already in lobby %s", userID, lobbyID)}
}

func NotMember(userID, lobbyID string) *Error {
	return &Error{Code: CodeNotMember, Message: fmt.Sprintf("user %s is not a member of lobby %s", userID, lobbyID)}
}

func NotAuthorized(userID, lobbyID string) *Error {
	return &Error{Code: CodeNotAuthorized, Message: fmt.Sprintf("user %s is not the host of lobby %s", userID, lobbyID)}
}

func Malformed(message string) *Error {
	return &Error{Code: CodeMalformed, Message: message}
}

func MissingField(field string) *Error {
	return &Error{Code: CodeMalformed, Message: fmt.Sprintf("%q field is missing", field)}
}

func Internal(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: message, Cause: cause}
}

// AsError converts any error into a structured *Error. Non-structured errors
// are wrapped as internal so their details never leak to clients verbatim.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}
	return Internal("internal server error", err)
}
