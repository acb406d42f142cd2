// Package validation gates every generation call: pre-flight checks state
// and budget sanity before the external call, post-flight checks the
// response's format and consistency after it. Errors abort the turn;
// warnings are recorded and never block.
package validation

import (
	"fmt"

	"questloom/internal/consistency"
)

// Code classifies a validation problem. The codes mirror the engine's
// failure taxonomy.
type Code string

const (
	CodeStateCorruption      Code = "state_corruption"
	CodeMissingContext       Code = "missing_context"
	CodeTokenOverflow        Code = "token_overflow"
	CodeFormatViolation      Code = "format_violation"
	CodeConsistencyViolation Code = "consistency_violation"
)

// Problem is one typed validation finding. It is used for both errors and
// warnings; the containing list decides which it is.
type Problem struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (p Problem) Error() string {
	return fmt.Sprintf("%s: %s", p.Code, p.Message)
}

// Result is the outcome of one validation pass.
type Result struct {
	Errors      []Problem          `json:"errors,omitempty"`
	Warnings    []Problem          `json:"warnings,omitempty"`
	Consistency *consistency.Score `json:"consistency,omitempty"`
}

// IsValid reports whether no errors were found. Warnings do not count.
func (r Result) IsValid() bool {
	return len(r.Errors) == 0
}

// FirstError returns the first error, if any.
func (r Result) FirstError() (Problem, bool) {
	if len(r.Errors) == 0 {
		return Problem{}, false
	}
	return r.Errors[0], true
}

func (r *Result) addError(code Code, format string, args ...interface{}) {
	r.Errors = append(r.Errors, Problem{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) addWarning(code Code, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, Problem{Code: code, Message: fmt.Sprintf(format, args...)})
}
