package services

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/twidder/internal/client/client"
)

// Error kinds. Every error returned by this package matches exactly one of
// them with errors.Is.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrTransport          = errors.New("transport failure")
	ErrSessionInvalid     = errors.New("session invalid")
	ErrNotAuthenticated   = errors.New("not authenticated")
)

var kinds = []error{
	ErrInvalidCredentials,
	ErrValidation,
	ErrForbidden,
	ErrNotFound,
	ErrTransport,
	ErrSessionInvalid,
	ErrNotAuthenticated,
}

// Error pairs a kind with the short message shown to the user.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func validationError(msg string) error {
	return newError(ErrValidation, msg, nil)
}

// KindOf returns the kind sentinel err matches, or nil for errors that did
// not come from this package.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Message returns the human-readable text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	switch KindOf(err) {
	case ErrInvalidCredentials:
		return msgInvalidCredentials
	case ErrNotAuthenticated:
		return "You are not logged in."
	case ErrTransport:
		return msgUnreachable
	default:
		return "Something went wrong."
	}
}

const (
	msgInvalidCredentials = "Invalid username or password."
	msgLoggedOut          = "You have been logged out."
	msgLogoutDone         = "You have successfully logged out."
	msgUnreachable        = "Can't reach the server, try again later."
	msgPasswordsMismatch  = "Passwords don't match!"
	msgInvalidGender      = "Invalid gender!"
	msgSamePassword       = "New password can't be the same!"
	msgInvalidPassword    = "Invalid password."
	msgUserNotFound       = "User not found."
	msgAccountDeleted     = "Your account has been deleted."
)

// translate maps a gateway error onto the error kinds. msgs overrides the
// default message per gateway sentinel.
func translate(err error, msgs map[error]string) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	pick := func(sentinel error, def string) string {
		if m, ok := msgs[sentinel]; ok {
			return m
		}
		return def
	}

	switch {
	case errors.Is(err, client.ErrUnauthorized):
		return newError(ErrSessionInvalid, pick(client.ErrUnauthorized, msgLoggedOut), err)
	case errors.Is(err, client.ErrForbidden):
		return newError(ErrForbidden, pick(client.ErrForbidden, "You are not allowed to do that."), err)
	case errors.Is(err, client.ErrConflict):
		return newError(ErrForbidden, pick(client.ErrConflict, "It already exists."), err)
	case errors.Is(err, client.ErrNotFound):
		return newError(ErrNotFound, pick(client.ErrNotFound, "Not found."), err)
	case errors.Is(err, client.ErrUnavailable):
		return newError(ErrTransport, pick(client.ErrUnavailable, msgUnreachable), err)
	default:
		return newError(ErrTransport, pick(nil, "The server could not handle the request."), err)
	}
}
