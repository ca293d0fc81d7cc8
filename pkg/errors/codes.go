package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are grouped into families by module prefix: COMMON for cross-cutting
// conditions, REC for the record domain, GRP for the grouping engine, ANN for
// the annotation client, NRM for concept normalization, STO for grouping
// persistence.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeValidation         ErrorCode = "COMMON_006"
	ErrCodeSerialization      ErrorCode = "COMMON_007"
	ErrCodeDatabaseError      ErrorCode = "COMMON_008"
	ErrCodeCacheError         ErrorCode = "COMMON_009"
	ErrCodeExternalService    ErrorCode = "COMMON_010"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_011"
	ErrCodeNotImplemented     ErrorCode = "COMMON_012"

	ErrCodeOK      ErrorCode = "OK"
	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// Record module error codes.
const (
	ErrCodeRecordNotFound      ErrorCode = "REC_001"
	ErrCodeRecordDuplicateID   ErrorCode = "REC_002"
	ErrCodeRecordSourceInvalid ErrorCode = "REC_003"
)

// Grouping module error codes.
const (
	// ErrCodeGroupingUnknownMetric is raised at Grouping construction when the
	// metric name is not one of the accepted values; never deferred to
	// computation time.
	ErrCodeGroupingUnknownMetric ErrorCode = "GRP_001"

	// ErrCodeGroupingMemoryExceeded signals that the full pairwise computation
	// would exceed the configured working-memory budget.  Callers fall back to
	// the chunked path exactly once on this code.
	ErrCodeGroupingMemoryExceeded ErrorCode = "GRP_002"

	// ErrCodeGroupingChunkMemoryExceeded signals that even a single chunk row
	// exceeds the working-memory budget.  This is fatal; chunk size is the
	// only lever and it is caller-controlled.
	ErrCodeGroupingChunkMemoryExceeded ErrorCode = "GRP_003"

	// ErrCodeGroupingMissingData is raised when groups or supergroups are
	// requested on a Grouping whose raw dataset is not attached (for example
	// after a load without reattachment).
	ErrCodeGroupingMissingData ErrorCode = "GRP_004"

	ErrCodeGroupingNotFound      ErrorCode = "GRP_005"
	ErrCodeGroupingShapeMismatch ErrorCode = "GRP_006"
	ErrCodeGroupingDenseRequired ErrorCode = "GRP_007"
)

// Annotation module error codes.
const (
	ErrCodeAnnotationRequestFailed ErrorCode = "ANN_001"
	ErrCodeAnnotationDecodeFailed  ErrorCode = "ANN_002"
	ErrCodeAnnotationFailLimit     ErrorCode = "ANN_003"
	ErrCodeAnnotationInvalidSpan   ErrorCode = "ANN_004"
)

// Normalization module error codes.
const (
	ErrCodeNormalizerNoVocabulary ErrorCode = "NRM_001"
	ErrCodeNormalizerBadSemType   ErrorCode = "NRM_002"
)

// Storage module error codes.
const (
	ErrCodeStorageError       ErrorCode = "STO_001"
	ErrCodeSnapshotNotFound   ErrorCode = "STO_002"
	ErrCodeSnapshotCorrupted  ErrorCode = "STO_003"
	ErrCodeSnapshotKeyInvalid ErrorCode = "STO_004"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes for the read-side
// API.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeRecordNotFound:      http.StatusNotFound,
	ErrCodeRecordDuplicateID:   http.StatusConflict,
	ErrCodeRecordSourceInvalid: http.StatusBadRequest,

	ErrCodeGroupingUnknownMetric:       http.StatusBadRequest,
	ErrCodeGroupingMemoryExceeded:      http.StatusInsufficientStorage,
	ErrCodeGroupingChunkMemoryExceeded: http.StatusInsufficientStorage,
	ErrCodeGroupingMissingData:         http.StatusConflict,
	ErrCodeGroupingNotFound:            http.StatusNotFound,
	ErrCodeGroupingShapeMismatch:       http.StatusInternalServerError,
	ErrCodeGroupingDenseRequired:       http.StatusBadRequest,

	ErrCodeAnnotationRequestFailed: http.StatusBadGateway,
	ErrCodeAnnotationDecodeFailed:  http.StatusBadGateway,
	ErrCodeAnnotationFailLimit:     http.StatusBadGateway,
	ErrCodeAnnotationInvalidSpan:   http.StatusUnprocessableEntity,

	ErrCodeNormalizerNoVocabulary: http.StatusInternalServerError,
	ErrCodeNormalizerBadSemType:   http.StatusBadRequest,

	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeSnapshotNotFound:   http.StatusNotFound,
	ErrCodeSnapshotCorrupted:  http.StatusInternalServerError,
	ErrCodeSnapshotKeyInvalid: http.StatusBadRequest,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeRecordNotFound:      "record not found",
	ErrCodeRecordDuplicateID:   "duplicate record identifier",
	ErrCodeRecordSourceInvalid: "invalid record source",

	ErrCodeGroupingUnknownMetric:       "unrecognized distance metric",
	ErrCodeGroupingMemoryExceeded:      "pairwise distance matrix exceeds working-memory budget",
	ErrCodeGroupingChunkMemoryExceeded: "chunked pairwise computation exceeds working-memory budget",
	ErrCodeGroupingMissingData:         "grouping has no dataset attached",
	ErrCodeGroupingNotFound:            "grouping not found",
	ErrCodeGroupingShapeMismatch:       "similarity matrices have mismatched shapes",
	ErrCodeGroupingDenseRequired:       "metric requires dense incidence matrix",

	ErrCodeAnnotationRequestFailed: "annotation request failed",
	ErrCodeAnnotationDecodeFailed:  "failed to decode annotation response",
	ErrCodeAnnotationFailLimit:     "consecutive annotation failure limit reached",
	ErrCodeAnnotationInvalidSpan:   "annotation span outside document text",

	ErrCodeNormalizerNoVocabulary: "no vocabulary loaded",
	ErrCodeNormalizerBadSemType:   "unknown semantic type",

	ErrCodeStorageError:       "grouping storage error",
	ErrCodeSnapshotNotFound:   "grouping snapshot not found",
	ErrCodeSnapshotCorrupted:  "grouping snapshot corrupted",
	ErrCodeSnapshotKeyInvalid: "invalid grouping snapshot key",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError reports whether the ErrorCode maps to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether the ErrorCode maps to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.SplitN(string(code), "_", 2)
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
