package core

import (
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Sentinel errors of the optimizer. Callers match with errors.Is.
var (
	ErrInvalidProblem    = errors.New("invalid problem")
	ErrInfeasibleProblem = errors.New("infeasible problem")
	ErrTimeout           = errors.New("solver timeout")
	ErrInternalSolver    = errors.New("internal solver error")
)

// ProblemError carries the individual faults found while validating or solving a problem.
type ProblemError struct {
	// Kind is one of the sentinel errors.
	Kind error
	Errs field.ErrorList
	// Detail is a free-form diagnostic used when Errs is empty.
	Detail string
}

func (e *ProblemError) Error() string {
	switch {
	case len(e.Errs) > 0:
		return fmt.Sprintf("%v: %s", e.Kind, e.Errs.ToAggregate().Error())
	case e.Detail != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes the sentinel kind to errors.Is.
func (e *ProblemError) Unwrap() error {
	return e.Kind
}

// NewInvalidProblem wraps a validation error list.
func NewInvalidProblem(errs field.ErrorList) error {
	return &ProblemError{Kind: ErrInvalidProblem, Errs: errs}
}

// NewInfeasibleProblem returns an infeasibility diagnostic.
func NewInfeasibleProblem(format string, args ...any) error {
	return &ProblemError{Kind: ErrInfeasibleProblem, Detail: fmt.Sprintf(format, args...)}
}

// NewInternalSolverError returns an internal failure diagnostic.
func NewInternalSolverError(format string, args ...any) error {
	return &ProblemError{Kind: ErrInternalSolver, Detail: fmt.Sprintf(format, args...)}
}
