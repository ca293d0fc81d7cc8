package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := New(ErrCodeGroupingUnknownMetric, "metric 'hamming' not recognized")
	assert.Equal(t, "[GRP_001] metric 'hamming' not recognized", err.Error())

	withDetail := err.WithDetail("accepted values are 'cosine' or 'jaccard'")
	assert.Equal(t, "[GRP_001] metric 'hamming' not recognized: accepted values are 'cosine' or 'jaccard'", withDetail.Error())
	// Original must not be mutated.
	assert.Empty(t, err.Detail)
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(cause, ErrCodeStorageError, "save failed")
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, cause, err.Unwrap())
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeStorageError, "save failed"))
}

func TestWrap_PreservesCodeOnUnknown(t *testing.T) {
	inner := New(ErrCodeGroupingMemoryExceeded, "too big")
	wrapped := Wrap(inner, ErrCodeUnknown, "group creation failed")
	assert.Equal(t, ErrCodeGroupingMemoryExceeded, wrapped.Code)
}

func TestIsCode(t *testing.T) {
	inner := New(ErrCodeGroupingMemoryExceeded, "too big")
	wrapped := fmt.Errorf("outer: %w", Wrap(inner, ErrCodeInternal, "group creation failed"))

	assert.True(t, IsCode(wrapped, ErrCodeGroupingMemoryExceeded))
	assert.True(t, IsCode(wrapped, ErrCodeInternal))
	assert.False(t, IsCode(wrapped, ErrCodeGroupingMissingData))
	assert.False(t, IsCode(nil, ErrCodeInternal))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeOK, GetCode(nil))
	assert.Equal(t, ErrCodeUnknown, GetCode(stderrors.New("plain")))
	assert.Equal(t, ErrCodeSnapshotNotFound, GetCode(New(ErrCodeSnapshotNotFound, "missing")))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("gone")))
	assert.True(t, IsNotFound(New(ErrCodeRecordNotFound, "no record")))
	assert.True(t, IsNotFound(New(ErrCodeGroupingNotFound, "no grouping")))
	assert.False(t, IsNotFound(New(ErrCodeInternal, "boom")))
	assert.False(t, IsNotFound(nil))
}

func TestWithCause(t *testing.T) {
	cause := stderrors.New("root")
	err := New(ErrCodeCacheError, "cache write failed").WithCause(cause)
	assert.True(t, stderrors.Is(err, cause))

	var nilErr *AppError
	assert.Nil(t, nilErr.WithCause(cause))
	assert.Nil(t, nilErr.WithDetail("x"))
}

func TestHTTPStatusForCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatusForCode(ErrCodeGroupingUnknownMetric))
	assert.Equal(t, http.StatusNotFound, HTTPStatusForCode(ErrCodeSnapshotNotFound))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusForCode(ErrorCode("NOPE_999")))
}

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "GRP", ModuleForCode(ErrCodeGroupingMissingData))
	assert.Equal(t, "COMMON", ModuleForCode(ErrCodeInternal))
	assert.Equal(t, "OK", ModuleForCode(ErrCodeOK))
}

func TestClientServerClassification(t *testing.T) {
	assert.True(t, IsClientError(ErrCodeBadRequest))
	assert.False(t, IsServerError(ErrCodeBadRequest))
	assert.True(t, IsServerError(ErrCodeGroupingChunkMemoryExceeded))
}
