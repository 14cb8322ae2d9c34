package handlers

import (
	"errors"

	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const internalErrorMessage = "internal server error"

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Key     string `json:"key,omitempty"`
	Step    string `json:"step,omitempty"`
}

// mapServiceError converts a service error into a gRPC status. Unknown
// errors are logged and hidden behind codes.Internal.
func mapServiceError(err error, logger *zap.Logger) *status.Status {
	switch {
	case errors.Is(err, e.ErrNotFound):
		return status.New(codes.NotFound, err.Error())
	case errors.Is(err, e.ErrDuplicateKey), errors.Is(err, e.ErrDuplicateApplication):
		return status.New(codes.AlreadyExists, err.Error())
	case errors.Is(err, e.ErrInvalidInput):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, e.ErrInvalidTransition):
		return status.New(codes.FailedPrecondition, err.Error())
	case errors.Is(err, e.ErrConflict):
		return status.New(codes.Aborted, err.Error())
	case errors.Is(err, e.ErrForbidden):
		return status.New(codes.PermissionDenied, err.Error())
	case errors.Is(err, e.ErrUnauthenticated):
		return status.New(codes.Unauthenticated, err.Error())
	case errors.Is(err, e.ErrTimeout):
		return status.New(codes.Unavailable, err.Error())
	default:
		logger.Error("Internal server error", zap.Error(err))
		return status.New(codes.Internal, internalErrorMessage)
	}
}

// newErrorBody describes err for the client, naming the offending field,
// duplicate key or failed recipe step when known.
func newErrorBody(st *status.Status, err error) errorBody {
	body := errorBody{Code: st.Code().String(), Message: st.Message()}
	var ve *e.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	var de *e.DuplicateError
	if errors.As(err, &de) {
		body.Key = de.Key
	}
	var re *e.RecipeError
	if errors.As(err, &re) {
		body.Step = re.Step
	}
	return body
}
