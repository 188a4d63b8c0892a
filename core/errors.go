package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	EngineErrorBadInput            = "WEBHOOK_BAD_INPUT"
	EngineErrorVerificationFailed  = "WEBHOOK_VERIFICATION_FAILED"
	EngineErrorEventNotFound       = "WEBHOOK_EVENT_NOT_FOUND"
	EngineErrorDuplicateEvent      = "WEBHOOK_DUPLICATE_EVENT"
	EngineErrorProcessingFailed    = "WEBHOOK_PROCESSING_FAILED"
	EngineErrorRetryExhausted      = "WEBHOOK_RETRY_EXHAUSTED"
	EngineErrorStoreFailure        = "WEBHOOK_STORE_FAILURE"
	EngineErrorRateLimited         = "WEBHOOK_RATE_LIMITED"
	EngineErrorUpstreamUnavailable = "WEBHOOK_UPSTREAM_UNAVAILABLE"
	EngineErrorConflict            = "WEBHOOK_CONFLICT"
	EngineErrorUnauthorized        = "WEBHOOK_UNAUTHORIZED"
	EngineErrorDependencyMissing   = "WEBHOOK_DEPENDENCY_MISSING"
	EngineErrorInternal            = "WEBHOOK_INTERNAL_ERROR"
)

func engineErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureEngineErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "signature") || strings.Contains(msg, "verification"):
		return newEngineError(err.Error(), goerrors.CategoryAuth, EngineErrorVerificationFailed)
	case strings.Contains(msg, "not found"):
		return newEngineError(err.Error(), goerrors.CategoryNotFound, EngineErrorEventNotFound)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newEngineError(err.Error(), goerrors.CategoryRateLimit, EngineErrorRateLimited)
	case strings.Contains(msg, "conflict"), strings.Contains(msg, "deadlock"):
		return newEngineError(err.Error(), goerrors.CategoryConflict, EngineErrorConflict)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newEngineError(err.Error(), goerrors.CategoryBadInput, EngineErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureEngineErrorEnvelope(mapped)
}

func newEngineError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureEngineErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureEngineErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = engineHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultEngineTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultEngineTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return EngineErrorBadInput
	case goerrors.CategoryNotFound:
		return EngineErrorEventNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return EngineErrorUnauthorized
	case goerrors.CategoryConflict:
		return EngineErrorConflict
	case goerrors.CategoryRateLimit:
		return EngineErrorRateLimited
	case goerrors.CategoryExternal:
		return EngineErrorUpstreamUnavailable
	case goerrors.CategoryOperation:
		return EngineErrorProcessingFailed
	default:
		return EngineErrorInternal
	}
}

func engineHTTPStatus(category goerrors.Category) int {
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
