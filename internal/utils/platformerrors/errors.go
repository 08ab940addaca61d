package platformerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type requestIDKey struct{}

// WithRequestID stores the request or turn id used to correlate errors and logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ErrorType classifies a failure independently of the transport that reports it.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeExternal     ErrorType = "EXTERNAL"
	ErrorTypeTimeout      ErrorType = "TIMEOUT"
	ErrorTypeInternal     ErrorType = "INTERNAL"
)

var httpStatusByType = map[ErrorType]int{
	ErrorTypeValidation:   http.StatusBadRequest,
	ErrorTypeUnauthorized: http.StatusUnauthorized,
	ErrorTypeConflict:     http.StatusConflict,
	ErrorTypeExternal:     http.StatusBadGateway,
	ErrorTypeTimeout:      http.StatusGatewayTimeout,
}

// ErrorTypeToHTTPStatus returns the status code for an error type, 500 when unknown.
func ErrorTypeToHTTPStatus(errorType ErrorType) int {
	if status, ok := httpStatusByType[errorType]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Layer names where in the service an error was raised.
type Layer string

const (
	LayerDomain         Layer = "domain"
	LayerRoute          Layer = "route"
	LayerInfrastructure Layer = "infrastructure"
	LayerTransport      Layer = "transport"
)

// PlatformError is a classified error with correlation metadata. It unwraps to Err.
type PlatformError struct {
	UUID      string
	Type      ErrorType
	Message   string
	Err       error
	Context   map[string]any
	RequestID string
	Layer     Layer
	Timestamp time.Time
}

func (e *PlatformError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s: %s", e.Layer, strings.ToLower(string(e.Type)), e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	fmt.Fprintf(&b, " (error_id=%s)", e.UUID)
	return b.String()
}

func (e *PlatformError) Unwrap() error { return e.Err }

func (e *PlatformError) GetErrorType() ErrorType { return e.Type }

func NewError(ctx context.Context, layer Layer, errorType ErrorType, message string, err error) *PlatformError {
	return NewErrorWithContext(ctx, layer, errorType, message, err, nil)
}

// NewErrorWithContext is NewError with extra fields that LogError expands.
// The fields map is copied.
func NewErrorWithContext(ctx context.Context, layer Layer, errorType ErrorType, message string, err error, fields map[string]any) *PlatformError {
	pe := &PlatformError{
		UUID:      uuid.NewString(),
		Type:      errorType,
		Message:   message,
		Err:       err,
		RequestID: RequestIDFromContext(ctx),
		Layer:     layer,
		Timestamp: time.Now().UTC(),
		Context:   make(map[string]any, len(fields)),
	}
	for k, v := range fields {
		pe.Context[k] = v
	}
	return pe
}

// TypeOf returns the type of the outermost PlatformError in err's chain.
// Deadline errors without one count as timeouts, anything else as internal.
func TypeOf(err error) ErrorType {
	var pe *PlatformError
	switch {
	case errors.As(err, &pe):
		return pe.Type
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	default:
		return ErrorTypeInternal
	}
}

// LogError logs err at error level, adding PlatformError metadata when present.
func LogError(logger zerolog.Logger, err error, msg string) {
	if err == nil {
		return
	}

	var pe *PlatformError
	if !errors.As(err, &pe) {
		logger.Error().Err(err).Msg(msg)
		return
	}

	event := logger.Error().
		Str("error_uuid", pe.UUID).
		Str("error_type", string(pe.Type)).
		Str("layer", string(pe.Layer))
	if pe.RequestID != "" {
		event = event.Str("request_id", pe.RequestID)
	}
	if len(pe.Context) > 0 {
		event = event.Fields(pe.Context)
	}
	if pe.Err != nil {
		event = event.Err(pe.Err)
	}
	event.Msg(msg + ": " + pe.Message)
}
