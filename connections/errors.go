package connections

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	CodeInvalidUserID       = "connection/invalid-user-id"
	CodeInvalidConnectionID = "connection/invalid-connection-id"
	CodeSelfRequest         = "connection/self-request"
	CodeSelfDisconnect      = "connection/self-disconnect"
	CodeSelfCheck           = "connection/self-check"
	CodeUserNotFound        = "connection/user-not-found"
	CodeRequestPending      = "connection/request-pending"
	CodeAlreadyConnected    = "connection/already-connected"
	CodeRequestDeclined     = "connection/request-declined"
	CodeNotFound            = "connection/not-found"
	CodeUnauthorized        = "connection/unauthorized"
	CodeServerError         = "connection/server-error"
)

func connectionError(category goerrors.Category, status int, code string, message string) error {
	return goerrors.New(message, category).
		WithCode(status).
		WithTextCode(code)
}

func badInput(code string, message string) error {
	return connectionError(goerrors.CategoryBadInput, http.StatusBadRequest, code, message)
}

func notFound(code string, message string) error {
	return connectionError(goerrors.CategoryNotFound, http.StatusNotFound, code, message)
}

func conflict(code string, message string) error {
	return connectionError(goerrors.CategoryConflict, http.StatusConflict, code, message)
}

func unauthorized(message string) error {
	return connectionError(goerrors.CategoryAuthz, http.StatusForbidden, CodeUnauthorized, message)
}

func internal(err error, message string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(CodeServerError)
}

// Code extracts the connection/<reason> text code from err, if any.
func Code(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode
	}
	return ""
}
