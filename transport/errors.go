package transport

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-hookgate/core"
)

func transportError(message string, category goerrors.Category, code int, metadata map[string]any) *goerrors.Error {
	return decorate(goerrors.New(message, category), category, code, metadata)
}

// transportWrapError keeps source as the cause so callers can still match
// net and context errors with errors.Is.
func transportWrapError(source error, category goerrors.Category, message string, code int, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	return decorate(goerrors.Wrap(source, category, message), category, code, metadata)
}

func decorate(err *goerrors.Error, category goerrors.Category, code int, metadata map[string]any) *goerrors.Error {
	err = err.WithCode(code)
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		err = err.WithTextCode(core.HookgateErrorBadInput)
	case goerrors.CategoryExternal:
		err = err.WithTextCode(core.HookgateErrorWebhookDispatchFailed)
	default:
		err = err.WithTextCode(core.HookgateErrorInternal)
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}
