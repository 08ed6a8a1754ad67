package errors

import (
	"net/http"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_005"
	ErrCodeTimeout            ErrorCode = "COMMON_006"
	ErrCodeValidation         ErrorCode = "COMMON_007"
	ErrCodeSerialization      ErrorCode = "COMMON_008"
	ErrCodeDatabaseError      ErrorCode = "COMMON_009"
	ErrCodeCacheError         ErrorCode = "COMMON_010"
	ErrCodeNotImplemented     ErrorCode = "COMMON_011"
)

// Short aliases used at most call sites.
const (
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeOK           = ErrorCode("OK")
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
)

// Formulation Key Error Codes
const (
	// ErrCodeStrengthCardinality signals that a strength string could not be
	// segmented into one token per ingredient. The offending raw record is
	// carried in the error detail; the run must surface it, not recover.
	ErrCodeStrengthCardinality ErrorCode = "FORM_001"
	ErrCodeKeyFieldEmpty       ErrorCode = "FORM_002"
)

// Equivalence Registry Error Codes
const (
	// ErrCodeRegistryIntegrity signals that a formulation or application key
	// was found claimed by two distinct classes outside the sanctioned merge
	// path. This is a bug signal, never a data-quality condition.
	ErrCodeRegistryIntegrity ErrorCode = "REG_001"
	ErrCodeRegistryFrozen    ErrorCode = "REG_002"
	ErrCodeClassNotFound     ErrorCode = "REG_003"
	ErrCodeSnapshotCorrupt   ErrorCode = "REG_004"
	ErrCodeSnapshotDuplicate ErrorCode = "REG_005"
)

// Matcher Error Codes
const (
	ErrCodeMatchInvalidRecord ErrorCode = "MATCH_001"
)

// Dataset Ingestion Error Codes
const (
	ErrCodeDatasetOpenFailed  ErrorCode = "SET_001"
	ErrCodeDatasetParseError  ErrorCode = "SET_002"
	ErrCodeDatasetHeaderError ErrorCode = "SET_003"
)

// Infrastructure aliases kept for readability at infrastructure call sites.
const (
	CodeDatabaseError     = ErrCodeDatabaseError
	CodeCacheError        = ErrCodeCacheError
	CodeMessageQueueError = ErrCodeServiceUnavailable
	CodeStorageError      = ErrCodeInternal
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes for the query API.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeStrengthCardinality: http.StatusUnprocessableEntity,
	ErrCodeKeyFieldEmpty:       http.StatusBadRequest,

	ErrCodeRegistryIntegrity: http.StatusInternalServerError,
	ErrCodeRegistryFrozen:    http.StatusConflict,
	ErrCodeClassNotFound:     http.StatusNotFound,
	ErrCodeSnapshotCorrupt:   http.StatusInternalServerError,
	ErrCodeSnapshotDuplicate: http.StatusInternalServerError,

	ErrCodeMatchInvalidRecord: http.StatusBadRequest,

	ErrCodeDatasetOpenFailed:  http.StatusInternalServerError,
	ErrCodeDatasetParseError:  http.StatusUnprocessableEntity,
	ErrCodeDatasetHeaderError: http.StatusUnprocessableEntity,
}

// HTTPStatus returns the HTTP status code mapped to c, defaulting to 500 for
// unmapped codes so that no failure is ever reported as a success.
func HTTPStatus(c ErrorCode) int {
	if s, ok := ErrorCodeHTTPStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}
