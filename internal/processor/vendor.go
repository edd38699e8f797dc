package processor

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/half-paul/donations2.0-sub001/internal/pkg/httpclient"
)

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

// transportError translates a transport-level failure (no HTTP response) into
// the agnostic taxonomy. Context cancellation is passed through so callers
// can distinguish a caller-side abort from a vendor fault; a timed-out
// money-moving call is unknown-outcome and must be reconciled by idempotency
// key, never by a fresh non-idempotent request.
func transportError(proc, op string, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return WrapError(proc, ErrCodeTimeout, op+" cancelled before completion", err)
	}
	if httpclient.IsTimeout(err) {
		return WrapError(proc, ErrCodeTimeout, op+" timed out", err)
	}
	return WrapError(proc, ErrCodeNetwork, op+" failed", err)
}

// statusCode buckets an HTTP status with no finer vendor mapping available.
func statusCode(status int) ErrorCode {
	switch {
	case status == 401 || status == 403:
		return ErrCodeAuthenticationFailed
	case status == 429 || status >= 500:
		return ErrCodeAPIError
	default:
		return ErrCodeValidation
	}
}

// Raw-map decoding helpers for the loosely-shaped vendor payloads.

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

func getInt64(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	}
	return 0
}
