package endpoint

import (
	"context"
	"errors"
	"net"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Kind is the canonical classification of an error raised by the endpoint.
type Kind string

const (
	KindNone             Kind = ""
	KindTimeout          Kind = "timeout"
	KindThrottling       Kind = "throttling"
	KindServerError      Kind = "server_error"
	KindConnectivity     Kind = "connectivity"
	KindAccessDenied     Kind = "access_denied"
	KindMalformedRequest Kind = "malformed_request"
	KindNotFound         Kind = "not_found"
	KindNotImplemented   Kind = "not_implemented"
	KindCancelled        Kind = "cancelled"
	KindOther            Kind = "other"
)

// Retryable reports whether an error of this kind is worth retrying.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindThrottling, KindServerError, KindConnectivity:
		return true
	}
	return false
}

// throttleCodes are the vendor spellings of "slow down" seen in the wild.
var throttleCodes = map[string]bool{
	"SlowDown":             true,
	"Throttling":           true,
	"ThrottlingException":  true,
	"TooManyRequests":      true,
	"RequestLimitExceeded": true,
}

var notImplementedCodes = map[string]bool{
	"NotImplemented":        true,
	"NotSupported":          true,
	"OperationNotSupported": true,
	"XNotImplemented":       true,
}

var accessDeniedCodes = map[string]bool{
	"AccessDenied":          true,
	"AccessDeniedException": true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"AllAccessDisabled":     true,
	"AccountProblem":        true,
	"InvalidSecurity":       true,
	"NotSignedUp":           true,
	"UnauthorizedAccess":    true,
}

var malformedCodes = map[string]bool{
	"MalformedXML":         true,
	"MalformedACLError":    true,
	"MalformedPolicy":      true,
	"InvalidArgument":      true,
	"InvalidRequest":       true,
	"InvalidBucketName":    true,
	"InvalidPart":          true,
	"InvalidPartOrder":     true,
	"InvalidRange":         true,
	"MissingContentLength": true,
}

var notFoundCodes = map[string]bool{
	"NoSuchBucket":                         true,
	"NoSuchKey":                            true,
	"NoSuchUpload":                         true,
	"NoSuchVersion":                        true,
	"NoSuchLifecycleConfiguration":         true,
	"NoSuchTagSet":                         true,
	"NotFound":                             true,
	"ObjectLockConfigurationNotFound":      true,
	"ObjectLockConfigurationNotFoundError": true,
}

// Classify maps a raw error from the endpoint onto the canonical taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case throttleCodes[code]:
			return KindThrottling
		case notImplementedCodes[code]:
			return KindNotImplemented
		case accessDeniedCodes[code]:
			return KindAccessDenied
		case malformedCodes[code]:
			return KindMalformedRequest
		case notFoundCodes[code]:
			return KindNotFound
		case code == "RequestTimeout":
			return KindTimeout
		case code == "InternalError", code == "ServiceUnavailable":
			return KindServerError
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		switch {
		case status == 429:
			return KindThrottling
		case status >= 500:
			return KindServerError
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnectivity
	}

	return KindOther
}
