package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	HookgateErrorBadInput              = "HOOKGATE_BAD_INPUT"
	HookgateErrorWebhookRejected       = "HOOKGATE_WEBHOOK_REJECTED"
	HookgateErrorWebhookMisconfigured  = "HOOKGATE_WEBHOOK_MISCONFIGURED"
	HookgateErrorWebhookDispatchFailed = "HOOKGATE_WEBHOOK_DISPATCH_FAILED"
	HookgateErrorNotFound              = "HOOKGATE_NOT_FOUND"
	HookgateErrorPermissionDenied      = "HOOKGATE_PERMISSION_DENIED"
	HookgateErrorConflict              = "HOOKGATE_CONFLICT"
	HookgateErrorInternal              = "HOOKGATE_INTERNAL_ERROR"
)

// MisconfiguredEndpointMessage is returned when a project sets a webhook URL
// without the shared secret needed to sign it.
const MisconfiguredEndpointMessage = "Webhook URL or secret not configured"

// MapError converts arbitrary errors into go-errors envelopes carrying an
// HTTP status and a text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrConnectionNotFound):
		return newHookgateError(err.Error(), goerrors.CategoryNotFound, HookgateErrorNotFound)
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrProjectNotFound):
		return newHookgateError(err.Error(), goerrors.CategoryNotFound, HookgateErrorNotFound)
	case errors.Is(err, ErrConnectionExists):
		return newHookgateError(err.Error(), goerrors.CategoryConflict, HookgateErrorConflict)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "secret not configured"):
		return newHookgateError(err.Error(), goerrors.CategoryValidation, HookgateErrorWebhookMisconfigured)
	case strings.Contains(msg, "webhook request failed"),
		strings.Contains(msg, "response signature"):
		return newHookgateError(err.Error(), goerrors.CategoryExternal, HookgateErrorWebhookDispatchFailed)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "unsupported"):
		return newHookgateError(err.Error(), goerrors.CategoryBadInput, HookgateErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newHookgateError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = HTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return HookgateErrorBadInput
	case goerrors.CategoryNotFound:
		return HookgateErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return HookgateErrorPermissionDenied
	case goerrors.CategoryConflict:
		return HookgateErrorConflict
	case goerrors.CategoryExternal:
		return HookgateErrorWebhookDispatchFailed
	default:
		return HookgateErrorInternal
	}
}

// HTTPStatus maps an error category to the status code a transport should use.
func HTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
