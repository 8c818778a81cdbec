package icdcheck

import (
	"errors"
	"fmt"
)

// Kind classifies the errors raised while loading an ICD or validating data.
// Errors are grouped by the layer they originate from:
//   - ICD interpretation: KindIcdSyntax
//   - data format declaration: KindDataFormatSyntax, KindDataFormatValue, KindDataFormatLookup
//   - field declarations and values: KindFieldSyntax, KindFieldLookup, KindFieldValue
//   - range grammar and membership: KindRangeSyntax, KindRangeValue
//   - checks: KindCheckSyntax, KindCheck
//   - tokenizer and decoder: KindParserSyntax
type Kind int

const (
	// KindIcdSyntax indicates a malformed ICD row.
	KindIcdSyntax Kind = iota + 1
	// KindDataFormatSyntax indicates an unknown, forbidden or missing data format key.
	KindDataFormatSyntax
	// KindDataFormatValue indicates a data format value that is syntactically
	// valid but semantically broken, such as an unknown encoding.
	KindDataFormatValue
	// KindDataFormatLookup indicates a required data format section is missing.
	KindDataFormatLookup
	// KindFieldSyntax indicates a malformed field rule.
	KindFieldSyntax
	// KindFieldLookup indicates an unknown field name or a duplicate declaration.
	KindFieldLookup
	// KindFieldValue indicates a value rejected by a field format.
	KindFieldValue
	// KindRangeSyntax indicates a broken range declaration.
	KindRangeSyntax
	// KindRangeValue indicates a value outside a declared range.
	KindRangeValue
	// KindCheckSyntax indicates a broken check declaration.
	KindCheckSyntax
	// KindCheck indicates a failed check assertion.
	KindCheck
	// KindParserSyntax indicates a tokenizer or decoder level error.
	KindParserSyntax
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindIcdSyntax:
		return "ICD syntax error"
	case KindDataFormatSyntax:
		return "data format syntax error"
	case KindDataFormatValue:
		return "data format value error"
	case KindDataFormatLookup:
		return "data format lookup error"
	case KindFieldSyntax:
		return "field syntax error"
	case KindFieldLookup:
		return "field lookup error"
	case KindFieldValue:
		return "field value error"
	case KindRangeSyntax:
		return "range syntax error"
	case KindRangeValue:
		return "range value error"
	case KindCheckSyntax:
		return "check syntax error"
	case KindCheck:
		return "check error"
	case KindParserSyntax:
		return "parser syntax error"
	default:
		return "unknown error"
	}
}

// Error is a classified validation error with an optional source location.
//
// Line and Column are 1-based, Item counts items within the line starting
// at 0. A zero Line means the location is unknown.
type Error struct {
	Kind    Kind
	Message string
	Line    int
	Item    int
	Column  int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d, item %d, column %d): %s", e.Kind, e.Line, e.Item, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// newError creates a classified error without location information.
func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// newErrorAt creates a classified error located at (line, item, column).
func newErrorAt(kind Kind, line, item, column int, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
		Item:    item,
		Column:  column,
	}
}

// IsKind reports whether err is a classified error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}
