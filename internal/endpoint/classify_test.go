package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"cancelled", context.Canceled, KindCancelled},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"slow_down", apiError("SlowDown"), KindThrottling},
		{"throttling", apiError("Throttling"), KindThrottling},
		{"request_timeout", apiError("RequestTimeout"), KindTimeout},
		{"internal_error", apiError("InternalError"), KindServerError},
		{"service_unavailable", apiError("ServiceUnavailable"), KindServerError},
		{"not_implemented", apiError("NotImplemented"), KindNotImplemented},
		{"access_denied", apiError("AccessDenied"), KindAccessDenied},
		{"bad_signature", apiError("SignatureDoesNotMatch"), KindAccessDenied},
		{"malformed_xml", apiError("MalformedXML"), KindMalformedRequest},
		{"invalid_bucket", apiError("InvalidBucketName"), KindMalformedRequest},
		{"no_such_bucket", apiError("NoSuchBucket"), KindNotFound},
		{"no_such_key", apiError("NoSuchKey"), KindNotFound},
		{"no_lock_config", apiError("ObjectLockConfigurationNotFoundError"), KindNotFound},
		{"no_lock_config_minio", apiError("ObjectLockConfigurationNotFound"), KindNotFound},
		{"wrapped_api_error", fmt.Errorf("op failed: %w", apiError("SlowDown")), KindThrottling},
		{"conn_refused", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, KindConnectivity},
		{"opaque", errors.New("something else"), KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestKindRetryable(t *testing.T) {
	retryable := []Kind{KindTimeout, KindThrottling, KindServerError, KindConnectivity}
	for _, k := range retryable {
		assert.True(t, k.Retryable(), "kind %s should be retryable", k)
	}

	terminal := []Kind{KindNone, KindAccessDenied, KindMalformedRequest, KindNotFound,
		KindNotImplemented, KindCancelled, KindOther}
	for _, k := range terminal {
		assert.False(t, k.Retryable(), "kind %s should not be retryable", k)
	}
}

func TestCapabilitiesSupports(t *testing.T) {
	caps := Capabilities{CapVersioning: true, CapMultipart: true, CapEncryption: false}

	assert.True(t, caps.Supports())
	assert.True(t, caps.Supports(CapVersioning, CapMultipart))
	assert.False(t, caps.Supports(CapEncryption))
	assert.False(t, caps.Supports(CapVersioning, CapLifecycle))
	assert.Equal(t, []string{"multipart", "versioning"}, caps.Supported())
}
