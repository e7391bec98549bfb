// Package apperr defines the tagged application error used across every
// layer of the scheduling core, so the CLI, the control service's HTTP
// surface, and internal callers all speak the same error vocabulary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes. These are the error *kinds* from SPEC_FULL.md §7, not Go
// type names: every non-transient failure in the core maps onto one of
// these.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "RESOURCE_NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout            = "TIMEOUT"
	CodeInfeasible         = "INFEASIBLE"
	CodeSolverBudget       = "SOLVER_BUDGET_EXHAUSTED"
)

// AppError is an application error carrying an HTTP status and a stable code.
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func NotFound(resource, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound).WithDetail("id", id)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict)
}

func Internal(message string) *AppError {
	if message == "" {
		message = "an internal error occurred"
	}
	return New(CodeInternal, message, http.StatusInternalServerError)
}

func ServiceUnavailable(service string) *AppError {
	return New(CodeServiceUnavailable, fmt.Sprintf("%s is temporarily unavailable", service), http.StatusServiceUnavailable)
}

func Timeout(operation string) *AppError {
	return New(CodeTimeout, fmt.Sprintf("%s timed out", operation), http.StatusGatewayTimeout)
}

// Infeasible reports that the optimizer could not satisfy the constraint set
// within budget (spec §4.5/§7: "Infeasible constraints").
func Infeasible(reason string) *AppError {
	return New(CodeInfeasible, reason, http.StatusConflict)
}

// SolverBudgetExhausted reports that the solver returned best-so-far under
// its wall-clock cap (spec §7: "Solver budget exhausted").
func SolverBudgetExhausted(elapsedMs int64) *AppError {
	return New(CodeSolverBudget, "solver exceeded its time budget", http.StatusOK).
		WithDetail("elapsedMs", fmt.Sprintf("%d", elapsedMs))
}

// As is a thin wrapper over errors.As for *AppError.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FromError converts any error into an AppError, wrapping it as internal
// when it isn't already tagged.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}
	return Internal("").Wrap(err)
}
