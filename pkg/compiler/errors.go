package compiler

import (
	"fmt"
)

// ParseError represents malformed markup detected while parsing a template.
type ParseError struct {
	Line   int
	Column int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Column, e.Reason)
	} else if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("parse error: %s", e.Reason)
}

// NewParseError creates a new parse error with position information.
func NewParseError(reason string, line, column int) error {
	return &ParseError{
		Line:   line,
		Column: column,
		Reason: reason,
	}
}

// DirectiveErrorKind identifies the class of a structural or semantic
// error in directive usage.
type DirectiveErrorKind int

const (
	// ErrUnknownDirective reports an attribute in a directive namespace
	// that does not name a supported directive.
	ErrUnknownDirective DirectiveErrorKind = iota
	// ErrUnsupportedDirective reports a directive that is recognized but
	// cannot be compiled (py:match, xi:include, xi:fallback).
	ErrUnsupportedDirective
	// ErrDuplicateDirective reports the same directive appearing more
	// than once on a single element.
	ErrDuplicateDirective
	// ErrOrphanWhen reports a when or otherwise directive without an
	// enclosing choose.
	ErrOrphanWhen
	// ErrUnbalancedExpressionDelimiter reports a ${ span without its
	// closing brace, or an empty expression.
	ErrUnbalancedExpressionDelimiter
	// ErrDuplicateFunctionName reports two template functions compiled
	// under the same name in one module.
	ErrDuplicateFunctionName
	// ErrMisplacedDirective reports a directive that requires a markup
	// element to apply to, used where no such element exists.
	ErrMisplacedDirective
	// ErrMarkupInMessage reports child elements inside a translatable
	// message, which cannot be represented in the extracted format string.
	ErrMarkupInMessage
	// ErrMissingParameter reports an element-form directive without its
	// required parameter attribute.
	ErrMissingParameter
)

func (k DirectiveErrorKind) String() string {
	switch k {
	case ErrUnknownDirective:
		return "UnknownDirective"
	case ErrUnsupportedDirective:
		return "UnsupportedDirective"
	case ErrDuplicateDirective:
		return "DuplicateDirective"
	case ErrOrphanWhen:
		return "OrphanWhen"
	case ErrUnbalancedExpressionDelimiter:
		return "UnbalancedExpressionDelimiter"
	case ErrDuplicateFunctionName:
		return "DuplicateFunctionName"
	case ErrMisplacedDirective:
		return "MisplacedDirective"
	case ErrMarkupInMessage:
		return "MarkupInMessage"
	case ErrMissingParameter:
		return "MissingParameter"
	default:
		return "UnknownError"
	}
}

// DirectiveError represents a structural or semantic error in the use of
// template directives. It is fatal to the compile call that produced it.
type DirectiveError struct {
	Kind    DirectiveErrorKind
	Line    int
	Message string
}

func (e *DirectiveError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("template error at line %d: %s: %s", e.Line, e.Kind, e.Message)
	}
	return fmt.Sprintf("template error: %s: %s", e.Kind, e.Message)
}

// NewDirectiveError creates a new directive error.
func NewDirectiveError(kind DirectiveErrorKind, message string, line int) error {
	return &DirectiveError{
		Kind:    kind,
		Line:    line,
		Message: message,
	}
}
