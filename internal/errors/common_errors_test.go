package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name: "error without cause",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "record type is required",
			},
			wantMessage: "[VALIDATION] record type is required",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeSourceUnreadable,
				Message: "cannot read export file export.xml",
				Cause:   fmt.Errorf("permission denied"),
			},
			wantMessage: "[SOURCE_UNREADABLE] cannot read export file export.xml: permission denied",
		},
		{
			name: "malformed source with cause",
			appError: &AppError{
				Type:    ErrTypeMalformedSource,
				Message: "malformed export file export.xml",
				Cause:   errors.New("XML syntax error on line 12"),
			},
			wantMessage: "[MALFORMED_SOURCE] malformed export file export.xml: XML syntax error on line 12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := NewSourceUnreadableError("export.xml", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Unwrap())
}

func TestAppError_WithContext(t *testing.T) {
	err := NewStorageError("failed to write dataset", nil).
		WithContext("path", "out/StepCount.csv").
		WithContext("rows", 42)

	assert.Equal(t, "out/StepCount.csv", err.Context["path"])
	assert.Equal(t, 42, err.Context["rows"])
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		sourceUnreadable bool
		malformedSource  bool
		notFound         bool
	}{
		{
			name:             "source unreadable",
			err:              NewSourceUnreadableError("export.xml", errors.New("no such file")),
			sourceUnreadable: true,
		},
		{
			name:            "malformed source",
			err:             NewMalformedSourceError("export.xml", errors.New("unexpected EOF")),
			malformedSource: true,
		},
		{
			name:     "not found",
			err:      NewNotFoundError("session"),
			notFound: true,
		},
		{
			name: "wrapped malformed source",
			err: fmt.Errorf("processing failed: %w",
				NewMalformedSourceError("export.xml", errors.New("bad token"))),
			malformedSource: true,
		},
		{
			name: "plain error matches nothing",
			err:  errors.New("boom"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.sourceUnreadable, IsSourceUnreadable(tt.err))
			assert.Equal(t, tt.malformedSource, IsMalformedSource(tt.err))
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
		})
	}
}

func TestNewNotFoundError_Message(t *testing.T) {
	err := NewNotFoundError("dataset")
	assert.Equal(t, "[NOT_FOUND] dataset not found", err.Error())
}
