package core

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// IsRetryable reports whether a processing failure is transient enough to
// schedule another delivery attempt. The verdict is total: nil is never
// retryable, and errors the engine cannot recognize classify as permanent.
//
// Classification reads the engine's own error envelope (category and text
// code), stdlib sentinels, and transport error shapes. It never inspects
// downstream SDK error hierarchies.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryRateLimit, goerrors.CategoryExternal, goerrors.CategoryConflict:
			return true
		case goerrors.CategoryAuth, goerrors.CategoryAuthz,
			goerrors.CategoryBadInput, goerrors.CategoryValidation,
			goerrors.CategoryNotFound:
			return false
		}
		switch strings.TrimSpace(strings.ToUpper(richErr.TextCode)) {
		case EngineErrorRateLimited, EngineErrorUpstreamUnavailable, EngineErrorConflict, EngineErrorStoreFailure:
			return true
		case EngineErrorBadInput, EngineErrorUnauthorized, EngineErrorVerificationFailed, EngineErrorEventNotFound:
			return false
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	for _, marker := range retryableErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// retryableErrorMarkers catches transient transport and storage failures that
// surface as plain errors without an envelope.
var retryableErrorMarkers = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"temporarily unavailable",
	"service unavailable",
	"too many requests",
	"rate limit",
	"throttl",
	"deadlock",
	"write conflict",
	"serialization failure",
	"database is locked",
	"bad gateway",
	"gateway timeout",
}
