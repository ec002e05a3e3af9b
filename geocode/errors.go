// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ServiceError represents a classified failure from one of the Google web
// services (geocoding or distance matrix).
type ServiceError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// ErrorKind defines the failure categories of the external services.
type ErrorKind int

const (
	// KindUnknown unclassified error, treated as transient.
	KindUnknown ErrorKind = iota
	// KindRateLimit the per-second rate limit was hit.
	KindRateLimit
	// KindQuotaExceeded the daily quota is exhausted.
	KindQuotaExceeded
	// KindTimeout the request timed out.
	KindTimeout
	// KindNotFound the service returned no result for the address.
	KindNotFound
	// KindInvalidRequest the request shape was rejected.
	KindInvalidRequest
	// KindDenied the credential was rejected.
	KindDenied
	// KindNetwork transport-level failure or 5xx response.
	KindNetwork
)

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether the error is worth retrying: rate limits,
// timeouts, transport failures and 5xx-equivalents.
func IsTransient(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		switch svcErr.Kind {
		case KindRateLimit, KindTimeout, KindNetwork, KindUnknown:
			return true
		default:
			return false
		}
	}

	// Detect by common error messages
	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection refused")
}

// IsPermanent reports whether the error makes any further request pointless:
// rejected credential, exhausted quota, malformed request shape.
func IsPermanent(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		switch svcErr.Kind {
		case KindDenied, KindQuotaExceeded, KindInvalidRequest:
			return true
		default:
			return false
		}
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "request_denied") ||
		strings.Contains(errStr, "over_daily_limit") ||
		strings.Contains(errStr, "quota exceeded")
}

// IsNotFound reports whether the error is a zero-result answer. Not retried,
// but it only fails the one address, not the run.
func IsNotFound(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Kind == KindNotFound
	}

	return false
}

// ClassifyHTTPStatus classifies a non-200 HTTP response.
func ClassifyHTTPStatus(statusCode int) *ServiceError {
	switch statusCode {
	case http.StatusTooManyRequests: // 429
		return &ServiceError{
			Kind:    KindRateLimit,
			Message: "rate limit reached",
		}
	case http.StatusForbidden: // 403
		return &ServiceError{
			Kind:    KindDenied,
			Message: "access denied",
		}
	case http.StatusBadRequest: // 400
		return &ServiceError{
			Kind:    KindInvalidRequest,
			Message: "invalid request",
		}
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusInternalServerError:
		return &ServiceError{
			Kind:    KindNetwork,
			Message: fmt.Sprintf("service unavailable (status %d)", statusCode),
		}
	default:
		return &ServiceError{
			Kind:    KindUnknown,
			Message: fmt.Sprintf("HTTP error %d", statusCode),
		}
	}
}

// ClassifyGoogleStatus classifies the status field of a Google web service
// response body. "OK" is the caller's business and never reaches here.
func ClassifyGoogleStatus(status, errorMessage string) *ServiceError {
	msg := status
	if errorMessage != "" {
		msg = fmt.Sprintf("%s: %s", status, errorMessage)
	}

	switch status {
	case "ZERO_RESULTS", "NOT_FOUND":
		return &ServiceError{Kind: KindNotFound, Message: msg}
	case "OVER_QUERY_LIMIT":
		return &ServiceError{Kind: KindRateLimit, Message: msg}
	case "OVER_DAILY_LIMIT":
		return &ServiceError{Kind: KindQuotaExceeded, Message: msg}
	case "REQUEST_DENIED":
		return &ServiceError{Kind: KindDenied, Message: msg}
	case "INVALID_REQUEST", "MAX_ELEMENTS_EXCEEDED", "MAX_DIMENSIONS_EXCEEDED":
		return &ServiceError{Kind: KindInvalidRequest, Message: msg}
	case "UNKNOWN_ERROR":
		// documented as retryable
		return &ServiceError{Kind: KindNetwork, Message: msg}
	default:
		return &ServiceError{Kind: KindUnknown, Message: msg}
	}
}
