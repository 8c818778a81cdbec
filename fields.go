package icdcheck

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// FieldFormat validates the value of one column. Every format applies the
// same three step contract: an empty value is checked against the empty
// mark, a non empty value against the length range, and finally against the
// variant specific rule, which yields the value in its native type.
type FieldFormat interface {
	// Name returns the field name; names are unique within an ICD.
	Name() string
	// AllowEmpty reports whether an empty value is acceptable.
	AllowEmpty() bool
	// Length returns the character count range, possibly unconstrained.
	Length() *Range
	// Rule returns the variant specific rule text as declared in the ICD.
	Rule() string
	// ValidateValue checks a non empty raw value against the rule and
	// returns its typed form.
	ValidateValue(value string) (any, error)
}

// FieldFormatFactory builds a field format from its ICD declaration.
// Construction problems are reported as field syntax errors.
type FieldFormatFactory func(name string, allowEmpty bool, length *Range, rule string) (FieldFormat, error)

var fieldFormatRegistry = struct {
	sync.RWMutex
	factories map[string]FieldFormatFactory
}{factories: map[string]FieldFormatFactory{}}

// RegisterFieldFormat makes a field format type available under the given
// type token, replacing any previous registration. Type tokens are matched
// case insensitively when an ICD is loaded.
func RegisterFieldFormat(typeToken string, factory FieldFormatFactory) {
	fieldFormatRegistry.Lock()
	defer fieldFormatRegistry.Unlock()
	fieldFormatRegistry.factories[strings.ToLower(typeToken)] = factory
}

// newFieldFormat resolves the type token and builds the field format.
func newFieldFormat(typeToken, name string, allowEmpty bool, length *Range, rule string) (FieldFormat, error) {
	fieldFormatRegistry.RLock()
	factory, ok := fieldFormatRegistry.factories[strings.ToLower(strings.TrimSpace(typeToken))]
	fieldFormatRegistry.RUnlock()
	if !ok {
		return nil, newError(KindFieldSyntax, "field %q has unknown type: %q", name, typeToken)
	}
	return factory(name, allowEmpty, length, rule)
}

func init() {
	RegisterFieldFormat("Text", newTextFieldFormat)
	RegisterFieldFormat("Choice", newChoiceFieldFormat)
	RegisterFieldFormat("Integer", newIntegerFieldFormat)
	RegisterFieldFormat("Decimal", newDecimalFieldFormat)
	RegisterFieldFormat("DateTime", newDateTimeFieldFormat)
	RegisterFieldFormat("RegEx", newRegExFieldFormat)
	RegisterFieldFormat("Pattern", newPatternFieldFormat)
}

// validateFieldValue runs the full three step validation of one raw value.
// For an acceptable empty value the typed result is the empty string and the
// rule is not consulted.
func validateFieldValue(f FieldFormat, value string) (any, error) {
	if value == "" {
		if !f.AllowEmpty() {
			return nil, newError(KindFieldValue, "value must not be empty")
		}
		return "", nil
	}
	if err := f.Length().Validate("length", int64(utf8.RuneCountInString(value))); err != nil {
		return nil, newError(KindFieldValue, "%s", err.(*Error).Message)
	}
	return f.ValidateValue(value)
}

// fieldBase carries the attributes every field format shares.
type fieldBase struct {
	name       string
	allowEmpty bool
	length     *Range
	rule       string
}

func (f *fieldBase) Name() string     { return f.name }
func (f *fieldBase) AllowEmpty() bool { return f.allowEmpty }
func (f *fieldBase) Length() *Range   { return f.length }
func (f *fieldBase) Rule() string     { return f.rule }

// textFieldFormat accepts any value.
type textFieldFormat struct {
	fieldBase
}

func newTextFieldFormat(name string, allowEmpty bool, length *Range, rule string) (FieldFormat, error) {
	return &textFieldFormat{fieldBase{name, allowEmpty, length, rule}}, nil
}

func (f *textFieldFormat) ValidateValue(value string) (any, error) {
	return value, nil
}

// choiceFieldFormat accepts one of a fixed list of alternatives, compared
// case insensitively with ASCII folding.
type choiceFieldFormat struct {
	fieldBase
	choices []string
}

func newChoiceFieldFormat(name string, allowEmpty bool, length *Range, rule string) (FieldFormat, error) {
	if strings.TrimSpace(rule) == "" {
		return nil, newError(KindFieldSyntax, "at least one choice must be specified for field %q", name)
	}
	f := &choiceFieldFormat{fieldBase: fieldBase{name, allowEmpty, length, rule}}
	for _, choice := range strings.Split(rule, ",") {
		choice = strings.TrimSpace(choice)
		if choice == "" {
			return nil, newError(KindFieldSyntax, "choices for field %q must not be empty: %q", name, rule)
		}
		f.choices = append(f.choices, asciiLower(choice))
	}
	return f, nil
}

func (f *choiceFieldFormat) ValidateValue(value string) (any, error) {
	folded := asciiLower(value)
	for _, choice := range f.choices {
		if folded == choice {
			return value, nil
		}
	}
	return nil, newError(KindFieldValue, "value is %q but must be one of: %s", value, strings.Join(f.choices, ", "))
}

// asciiLower folds A-Z to a-z and leaves everything else alone.
func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

// defaultIntegerRange is the 32 bit range applied when an Integer field
// declares no rule of its own.
const defaultIntegerRange = "-2147483648:2147483647"

// integerFieldFormat accepts signed integers within a range.
type integerFieldFormat struct {
	fieldBase
	valueRange *Range
}

func newIntegerFieldFormat(name string, allowEmpty bool, length *Range, rule string) (FieldFormat, error) {
	valueRange, err := ParseRange(rule, defaultIntegerRange)
	if err != nil {
		return nil, newError(KindFieldSyntax, "broken range for field %q: %s", name, err.(*Error).Message)
	}
	return &integerFieldFormat{fieldBase{name, allowEmpty, length, rule}, valueRange}, nil
}

func (f *integerFieldFormat) ValidateValue(value string) (any, error) {
	number, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, newError(KindFieldValue, "value must be an integer number: %q", value)
	}
	if err := f.valueRange.Validate("value", number); err != nil {
		return nil, newError(KindFieldValue, "%s", err.(*Error).Message)
	}
	return number, nil
}

// decimalPattern is the locale insensitive shape of a decimal value: an
// optional sign, digits, and an optional point fraction.
var decimalPattern = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

// decimalFieldFormat accepts decimal numbers; the rule restricts the
// integer part.
type decimalFieldFormat struct {
	fieldBase
	integerRange *Range
}

func newDecimalFieldFormat(name string, allowEmpty bool, length *Range, rule string) (FieldFormat, error) {
	integerRange, err := ParseRange(rule, "")
	if err != nil {
		return nil, newError(KindFieldSyntax, "broken range for field %q: %s", name, err.(*Error).Message)
	}
	return &decimalFieldFormat{fieldBase{name, allowEmpty, length, rule}, integerRange}, nil
}

func (f *decimalFieldFormat) ValidateValue(value string) (any, error) {
	if !decimalPattern.MatchString(value) {
		return nil, newError(KindFieldValue, "value must be a decimal number: %q", value)
	}
	number, err := decimal.NewFromString(value)
	if err != nil {
		return nil, newError(KindFieldValue, "value must be a decimal number: %q", value)
	}
	if err := f.integerRange.Validate("integer part", number.IntPart()); err != nil {
		return nil, newError(KindFieldValue, "%s", err.(*Error).Message)
	}
	return number, nil
}

// dateTimeToken is one element of a date/time pattern: either a numeric
// component of fixed digit count or a literal rune.
type dateTimeToken struct {
	component string // "DD", "MM", "YYYY", "YY", "hh", "mm", "ss"; empty for a literal
	literal   rune
}

// dateTimeComponents lists the numeric pattern components. Order matters:
// YYYY must be tried before YY.
var dateTimeComponents = []string{"YYYY", "DD", "MM", "YY", "hh", "mm", "ss"}

// dateTimeFieldFormat accepts date/time values matching a human readable
// pattern such as "DD.MM.YYYY". Parsing is strict: every numeric component
// requires its exact digit count and broken calendar dates are rejected.
type dateTimeFieldFormat struct {
	fieldBase
	tokens []dateTimeToken
}

func newDateTimeFieldFormat(name string, allowEmpty bool, length *Range, rule string) (FieldFormat, error) {
	f := &dateTimeFieldFormat{fieldBase: fieldBase{name, allowEmpty, length, rule}}
	remainder := rule
scan:
	for remainder != "" {
		for _, component := range dateTimeComponents {
			if strings.HasPrefix(remainder, component) {
				f.tokens = append(f.tokens, dateTimeToken{component: component})
				remainder = remainder[len(component):]
				continue scan
			}
		}
		literal, size := utf8.DecodeRuneInString(remainder)
		f.tokens = append(f.tokens, dateTimeToken{literal: literal})
		remainder = remainder[size:]
	}
	if len(f.tokens) == 0 {
		return nil, newError(KindFieldSyntax, "date/time pattern for field %q must not be empty", name)
	}
	return f, nil
}

func (f *dateTimeFieldFormat) ValidateValue(value string) (any, error) {
	year, month, day := 1900, 1, 1
	hour, minute, second := 0, 0, 0
	hasDate := false
	remainder := value
	for _, token := range f.tokens {
		if token.component == "" {
			literal, size := utf8.DecodeRuneInString(remainder)
			if remainder == "" || literal != token.literal {
				return nil, f.valueError(value)
			}
			remainder = remainder[size:]
			continue
		}
		digitCount := len(token.component)
		if len(remainder) < digitCount {
			return nil, f.valueError(value)
		}
		number, err := strconv.Atoi(remainder[:digitCount])
		if err != nil || strings.ContainsAny(remainder[:digitCount], "+- ") {
			return nil, f.valueError(value)
		}
		remainder = remainder[digitCount:]
		switch token.component {
		case "DD":
			day = number
			hasDate = true
		case "MM":
			month = number
			hasDate = true
		case "YYYY":
			year = number
			hasDate = true
		case "YY":
			// Same pivot as strptime: 69-99 mean the 1900s.
			if number >= 69 {
				year = 1900 + number
			} else {
				year = 2000 + number
			}
			hasDate = true
		case "hh":
			hour = number
		case "mm":
			minute = number
		case "ss":
			second = number
		}
	}
	if remainder != "" {
		return nil, f.valueError(value)
	}
	if hour > 23 || minute > 59 || second > 59 {
		return nil, f.valueError(value)
	}
	result := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if hasDate {
		// time.Date normalizes broken dates such as Feb 30, so an exact
		// round trip is the calendar validity check.
		if result.Year() != year || result.Month() != time.Month(month) || result.Day() != day {
			return nil, f.valueError(value)
		}
	}
	return result, nil
}

func (f *dateTimeFieldFormat) valueError(value string) error {
	return newError(KindFieldValue, "date/time must match format %q but is: %q", f.rule, value)
}

// regExFieldFormat accepts values matching a regular expression, compiled
// case insensitively and in multi line mode, anchored at the start.
type regExFieldFormat struct {
	fieldBase
	regex *regexp.Regexp
}

func newRegExFieldFormat(name string, allowEmpty bool, length *Range, rule string) (FieldFormat, error) {
	regex, err := regexp.Compile(`(?im)\A(?:` + rule + `)`)
	if err != nil {
		return nil, newError(KindFieldSyntax, "broken regular expression for field %q: %v", name, err)
	}
	return &regExFieldFormat{fieldBase{name, allowEmpty, length, rule}, regex}, nil
}

func (f *regExFieldFormat) ValidateValue(value string) (any, error) {
	if !f.regex.MatchString(value) {
		return nil, newError(KindFieldValue, "value %q must match regular expression: %q", value, f.rule)
	}
	return value, nil
}

// patternFieldFormat accepts values matching a glob pattern where "?" is any
// single character and "*" any sequence of characters.
type patternFieldFormat struct {
	fieldBase
	regex *regexp.Regexp
}

func newPatternFieldFormat(name string, allowEmpty bool, length *Range, rule string) (FieldFormat, error) {
	var pattern strings.Builder
	for _, r := range rule {
		switch r {
		case '?':
			pattern.WriteString(".")
		case '*':
			pattern.WriteString(".*")
		default:
			pattern.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	regex, err := regexp.Compile(`(?im)\A(?:` + pattern.String() + `)`)
	if err != nil {
		return nil, newError(KindFieldSyntax, "broken pattern for field %q: %v", name, err)
	}
	return &patternFieldFormat{fieldBase{name, allowEmpty, length, rule}, regex}, nil
}

func (f *patternFieldFormat) ValidateValue(value string) (any, error) {
	if !f.regex.MatchString(value) {
		return nil, newError(KindFieldValue, "value %q must match pattern: %q", value, f.rule)
	}
	return value, nil
}
