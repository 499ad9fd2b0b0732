package service

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeInvalidParticipants ErrorCode = "INVALID_PARTICIPANTS"
	CodeForbidden           ErrorCode = "FORBIDDEN"
	CodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	CodeUnauthenticated     ErrorCode = "UNAUTHENTICATED"
	CodeConflict            ErrorCode = "CONFLICT"
)

// Error is a failure that is safe to show to the actor who caused it.
// Error() returns Message unchanged; clients branch on the blocking texts.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf returns the code of the first *Error in err's chain, or "" when err
// is not a service error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

const (
	msgInvalidData         = "Invalid data passed into request."
	msgChatNotFound        = "Chat not found."
	msgInvalidParticipants = "Invalid chat participants."
	msgUserNotFound        = "User not found."
)

var (
	ErrInvalidData         = newError(CodeInvalidRequest, msgInvalidData)
	ErrChatNotFound        = newError(CodeNotFound, msgChatNotFound)
	ErrInvalidParticipants = newError(CodeInvalidParticipants, msgInvalidParticipants)
	ErrUserNotFound        = newError(CodeNotFound, msgUserNotFound)
	ErrInvalidCreds        = newError(CodeUnauthenticated, "Invalid Email or Password")
	ErrInvalidToken        = newError(CodeUnauthenticated, "Not authorized, token failed.")
	ErrEmailTaken          = newError(CodeConflict, "User already exists")
	ErrNotParticipant      = newError(CodeForbidden, "You are not a participant of this chat.")
	ErrCannotBlockSelf     = newError(CodeInvalidRequest, "You cannot block/unblock yourself")
	ErrMediaKind           = newError(CodeInvalidRequest, "Unsupported media type.")
	ErrUserIDRequired      = newError(CodeInvalidRequest, "User ID is required")
	ErrGroupTooSmall       = newError(CodeInvalidRequest, "More than 2 users are required to form a group chat")
	ErrCannotChatSelf      = newError(CodeInvalidRequest, "You cannot start a chat with yourself")
	ErrOTPAlreadySent      = newError(CodeConflict, "OTP is already sent to your email. Please check your inbox.")
	ErrOTPInvalid          = newError(CodeInvalidRequest, "Invalid OTP.")
	ErrOTPExpired          = newError(CodeInvalidRequest, "OTP has expired. Please request a new one.")
)

func errYouBlocked(name string) *Error {
	return newError(CodeForbidden, fmt.Sprintf("You have blocked %s.", name))
}

func errBlockedYou(name string) *Error {
	return newError(CodeForbidden, fmt.Sprintf("%s blocked you.", name))
}
