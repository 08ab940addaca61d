package platformerrors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewErrorCarriesRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "turn-42")
	err := NewError(ctx, LayerDomain, ErrorTypeExternal, "completion failed", errors.New("boom"))

	assert.Equal(t, "turn-42", err.RequestID)
	assert.NotEmpty(t, err.UUID)
	assert.Contains(t, err.Error(), "domain/external: completion failed: boom")
	assert.Contains(t, err.Error(), err.UUID)
}

func TestRequestIDFromContextWithoutValue(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestTypeOf(t *testing.T) {
	inner := NewError(context.Background(), LayerInfrastructure, ErrorTypeValidation, "bad input", nil)

	assert.Equal(t, ErrorTypeValidation, TypeOf(fmt.Errorf("decode: %w", inner)))
	assert.Equal(t, ErrorTypeTimeout, TypeOf(fmt.Errorf("call: %w", context.DeadlineExceeded)))
	assert.Equal(t, ErrorTypeInternal, TypeOf(errors.New("plain")))
}

func TestContextFieldsAreCopied(t *testing.T) {
	fields := map[string]any{"phase": "initial"}
	err := NewErrorWithContext(context.Background(), LayerDomain, ErrorTypeExternal, "x", nil, fields)
	fields["phase"] = "changed"

	assert.Equal(t, "initial", err.Context["phase"])
}

func TestErrorTypeToHTTPStatus(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		want      int
	}{
		{ErrorTypeValidation, http.StatusBadRequest},
		{ErrorTypeConflict, http.StatusConflict},
		{ErrorTypeExternal, http.StatusBadGateway},
		{ErrorTypeTimeout, http.StatusGatewayTimeout},
		{ErrorType("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorTypeToHTTPStatus(tt.errorType))
		})
	}
}

func TestLogErrorExpandsMetadata(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	ctx := WithRequestID(context.Background(), "turn-7")
	err := NewErrorWithContext(ctx, LayerDomain, ErrorTypeTimeout, "completion request failed",
		context.DeadlineExceeded, map[string]any{"phase": "followup"})
	LogError(log, fmt.Errorf("turn: %w", err), "turn aborted")

	out := buf.String()
	assert.Contains(t, out, `"error_type":"TIMEOUT"`)
	assert.Contains(t, out, `"request_id":"turn-7"`)
	assert.Contains(t, out, `"phase":"followup"`)
	assert.Contains(t, out, "turn aborted: completion request failed")

	buf.Reset()
	LogError(log, nil, "ignored")
	assert.Empty(t, buf.String())
}
