package mongoracle

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyFilter reports an empty filter document. Translate does not
	// return it: an empty $match fails as a *TranslationError with code
	// InvalidPipelineStructure.
	ErrEmptyFilter = errors.New("mongoracle: empty filter")

	// ErrEmptyUpdate reports an empty update document. No function in this
	// module returns it.
	ErrEmptyUpdate = errors.New("mongoracle: empty update document")

	// ErrEmptyPipeline is returned when an empty pipeline is passed.
	ErrEmptyPipeline = errors.New("mongoracle: empty pipeline")

	// ErrNoCollection is returned when a bare stage array is translated without
	// a collection name supplied through options or the request document.
	ErrNoCollection = errors.New("mongoracle: collection name required")
)

// ErrorCode is the error taxonomy reported in TranslationError.Code. Labels,
// not Go types, per the propagation policy: the parser is the only component
// that raises these.
type ErrorCode string

const (
	// UnsupportedOperator means the operator is not allowed. Translate
	// returns it, in strict mode, for a stage outside AllowedOperators; an
	// unknown stage or operator that the parser rejects in strict mode is
	// reported as InvalidPipelineStructure.
	UnsupportedOperator ErrorCode = "UnsupportedOperator"

	// InvalidInput means the document shape violates the stage's or
	// operator's documented contract. Always fatal.
	InvalidInput ErrorCode = "InvalidInput"

	// InvalidPipelineStructure means the pipeline/array/object wrapper
	// itself is malformed (not a stage-shaped document, wrong wrapper key).
	InvalidPipelineStructure ErrorCode = "InvalidPipelineStructure"

	// UnsupportedCombination means two individually supported constructs
	// cannot be combined (e.g. $reduce nested somewhere that cannot be
	// rendered even as a NULL sentinel).
	UnsupportedCombination ErrorCode = "UnsupportedCombination"

	// ValidationError labels input that violates a documented contract.
	// Translate does not produce it: an empty pipeline returns
	// ErrEmptyPipeline, and parser rejections such as an empty $match or a
	// non-positive $limit are reported as InvalidPipelineStructure.
	ValidationError ErrorCode = "ValidationError"
)

// TranslationError is the structured error type returned by Translate and by
// the parser components it orchestrates. It carries enough context - stage
// name, operator name, field path - to be actionable, per the propagation
// policy: parsers are the only components allowed to raise one.
type TranslationError struct {
	Code     ErrorCode
	Stage    string // e.g. "$group", empty if not stage-specific
	Operator string // e.g. "$reduce", empty if not operator-specific
	Field    string // field path involved, empty if not applicable
	Message  string
}

func (e *TranslationError) Error() string {
	parts := make([]string, 0, 4)
	if e.Stage != "" {
		parts = append(parts, fmt.Sprintf("stage=%s", e.Stage))
	}
	if e.Operator != "" {
		parts = append(parts, fmt.Sprintf("operator=%s", e.Operator))
	}
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("mongoracle: %s: %s", e.Code, e.Message)
	}
	ctx := parts[0]
	for _, p := range parts[1:] {
		ctx += " " + p
	}
	return fmt.Sprintf("mongoracle: %s (%s): %s", e.Code, ctx, e.Message)
}

// newError builds a *TranslationError. stage/operator/field may be empty.
func newError(code ErrorCode, stage, operator, field, format string, args ...any) *TranslationError {
	return &TranslationError{
		Code:     code,
		Stage:    stage,
		Operator: operator,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	}
}
