package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrTaskNotFound is returned when a task id is not present in a store or origin.
var ErrTaskNotFound = stderrors.New("task not found")

// CapabilityError reports an operation the origin does not support.
// It is never retried and no network call precedes it.
type CapabilityError struct {
	Origin string
	Kind   string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Origin, e.Kind)
}

// DispatchReason classifies a remote write failure.
type DispatchReason string

const (
	ReasonNetwork    DispatchReason = "network"
	ReasonValidation DispatchReason = "validation"
	ReasonPermission DispatchReason = "permission"
	ReasonNotFound   DispatchReason = "not_found"
	ReasonRemote     DispatchReason = "remote"
)

// DispatchError is a failed remote operation against an origin.
type DispatchError struct {
	Origin     string
	Op         string
	TaskID     string
	Reason     DispatchReason
	StatusCode int
	Err        error
}

func (e *DispatchError) Error() string {
	target := e.Op
	if e.TaskID != "" {
		target = e.Op + " " + e.TaskID
	}
	msg := fmt.Sprintf("%s: %s failed (%s)", e.Origin, target, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// ReasonForStatus maps an HTTP status code from a remote origin to a DispatchReason.
func ReasonForStatus(code int) DispatchReason {
	switch {
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return ReasonValidation
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ReasonPermission
	case code == http.StatusNotFound || code == http.StatusGone:
		return ReasonNotFound
	default:
		return ReasonRemote
	}
}

// Violation is a single broken canonical-model invariant.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// ValidationError blocks a mutation before anything is sent to the network.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "invalid task: " + strings.Join(parts, "; ")
}

// NewValidationError returns nil when there are no violations.
func NewValidationError(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

// RespondWithSyncError maps the synchronization error taxonomy onto API responses.
func RespondWithSyncError(c *gin.Context, err error) {
	var capErr *CapabilityError
	var valErr *ValidationError
	var dispErr *DispatchError

	switch {
	case stderrors.As(err, &capErr):
		RespondWithError(c, http.StatusUnprocessableEntity, NewAPIError(ErrCodeUnsupportedOperation, capErr.Error()))
	case stderrors.As(err, &valErr):
		BadRequestWithDetails(c, valErr.Error(), valErr.Violations)
	case stderrors.As(err, &dispErr):
		if dispErr.Reason == ReasonNotFound {
			NotFound(c, dispErr.Error())
			return
		}
		RespondWithError(c, http.StatusBadGateway, NewAPIErrorWithDetails(ErrCodeDispatchFailed, dispErr.Error(), gin.H{
			"origin": dispErr.Origin,
			"reason": dispErr.Reason,
		}))
	case stderrors.Is(err, ErrTaskNotFound):
		NotFound(c, "Task not found")
	default:
		InternalError(c, "")
	}
}
