package icdcheck

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// mustFieldFormat builds a field format or fails the test.
func mustFieldFormat(t *testing.T, typeToken, name string, allowEmpty bool, lengthText, rule string) FieldFormat {
	t.Helper()
	length, err := ParseRange(lengthText, "")
	if err != nil {
		t.Fatalf("ParseRange(%q) error = %v", lengthText, err)
	}
	f, err := newFieldFormat(typeToken, name, allowEmpty, length, rule)
	if err != nil {
		t.Fatalf("newFieldFormat(%q) error = %v", typeToken, err)
	}
	return f
}

func TestValidateFieldValue_emptyAndLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		allowEmpty bool
		length     string
		value      string
		wantErr    bool
	}{
		{name: "empty allowed", allowEmpty: true, value: ""},
		{name: "empty forbidden", allowEmpty: false, value: "", wantErr: true},
		{name: "empty skips length", allowEmpty: true, length: "3:5", value: ""},
		{name: "length within", length: "3:5", value: "abcd"},
		{name: "too short", length: "3:5", value: "ab", wantErr: true},
		{name: "too long", length: "3:5", value: "abcdef", wantErr: true},
		{name: "length counts characters not bytes", length: "3:3", value: "äöü"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := mustFieldFormat(t, "Text", "some_field", tt.allowEmpty, tt.length, "")
			_, err := validateFieldValue(f, tt.value)
			if tt.wantErr {
				if !IsKind(err, KindFieldValue) {
					t.Errorf("validateFieldValue(%q) error = %v, want field value error", tt.value, err)
				}
				return
			}
			if err != nil {
				t.Errorf("validateFieldValue(%q) error = %v, want nil", tt.value, err)
			}
		})
	}
}

func TestTextFieldFormat(t *testing.T) {
	t.Parallel()

	f := mustFieldFormat(t, "Text", "surname", false, "1:60", "")
	got, err := f.ValidateValue("Doe")
	if err != nil {
		t.Fatalf("ValidateValue() error = %v", err)
	}
	if got != "Doe" {
		t.Errorf("ValidateValue() = %v, want %q", got, "Doe")
	}
}

func TestChoiceFieldFormat(t *testing.T) {
	t.Parallel()

	f := mustFieldFormat(t, "Choice", "gender", false, "", "female, male, other, unknown")

	for _, value := range []string{"female", "Male", "OTHER", "unknown"} {
		if _, err := f.ValidateValue(value); err != nil {
			t.Errorf("ValidateValue(%q) error = %v, want nil", value, err)
		}
	}
	if _, err := f.ValidateValue("alien"); !IsKind(err, KindFieldValue) {
		t.Errorf("ValidateValue(alien) error = %v, want field value error", err)
	}
}

func TestChoiceFieldFormat_broken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule string
	}{
		{name: "empty rule", rule: ""},
		{name: "blank rule", rule: "   "},
		{name: "empty alternative", rule: "red,,green"},
		{name: "trailing comma", rule: "red,"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			length, _ := ParseRange("", "")
			if _, err := newFieldFormat("Choice", "color", false, length, tt.rule); !IsKind(err, KindFieldSyntax) {
				t.Errorf("newFieldFormat(rule=%q) error = %v, want field syntax error", tt.rule, err)
			}
		})
	}
}

func TestIntegerFieldFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rule    string
		value   string
		want    int64
		wantErr bool
	}{
		{name: "plain", rule: "", value: "42", want: 42},
		{name: "negative", rule: "", value: "-17", want: -17},
		{name: "default upper bound", rule: "", value: "2147483647", want: 2147483647},
		{name: "beyond default upper bound", rule: "", value: "2147483648", wantErr: true},
		{name: "beyond default lower bound", rule: "", value: "-2147483649", wantErr: true},
		{name: "explicit range", rule: "0:99999", value: "23", want: 23},
		{name: "below explicit range", rule: "0:99999", value: "-1", wantErr: true},
		{name: "above explicit range", rule: "0:99999", value: "100000", wantErr: true},
		{name: "not a number", rule: "", value: "abc", wantErr: true},
		{name: "decimal point", rule: "", value: "1.23", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := mustFieldFormat(t, "Integer", "customer_id", false, "", tt.rule)
			got, err := f.ValidateValue(tt.value)
			if tt.wantErr {
				if !IsKind(err, KindFieldValue) {
					t.Errorf("ValidateValue(%q) error = %v, want field value error", tt.value, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateValue(%q) error = %v", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("ValidateValue(%q) = %v, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestDecimalFieldFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rule    string
		value   string
		want    string
		wantErr bool
	}{
		{name: "plain", value: "1.23", want: "1.23"},
		{name: "integer", value: "42", want: "42"},
		{name: "signed", value: "-17.5", want: "-17.5"},
		{name: "plus sign", value: "+3.14", want: "3.14"},
		{name: "integer part within range", rule: "0:999", value: "999.99", want: "999.99"},
		{name: "integer part outside range", rule: "0:999", value: "1000.00", wantErr: true},
		{name: "no exponent notation", value: "1e5", wantErr: true},
		{name: "comma is not a decimal point", value: "1,23", wantErr: true},
		{name: "not a number", value: "abc", wantErr: true},
		{name: "lone point", value: ".", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := mustFieldFormat(t, "Decimal", "amount", false, "", tt.rule)
			got, err := f.ValidateValue(tt.value)
			if tt.wantErr {
				if !IsKind(err, KindFieldValue) {
					t.Errorf("ValidateValue(%q) error = %v, want field value error", tt.value, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateValue(%q) error = %v", tt.value, err)
			}
			want, _ := decimal.NewFromString(tt.want)
			if !got.(decimal.Decimal).Equal(want) {
				t.Errorf("ValidateValue(%q) = %v, want %v", tt.value, got, want)
			}
		})
	}
}

func TestDateTimeFieldFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rule    string
		value   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "date",
			rule:  "DD.MM.YYYY",
			value: "08.03.1957",
			want:  time.Date(1957, time.March, 8, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "date and time",
			rule:  "YYYY-MM-DD hh:mm:ss",
			value: "2008-11-23 17:04:59",
			want:  time.Date(2008, time.November, 23, 17, 4, 59, 0, time.UTC),
		},
		{
			name:  "two digit year in the 2000s",
			rule:  "DD.MM.YY",
			value: "01.02.03",
			want:  time.Date(2003, time.February, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "two digit year in the 1900s",
			rule:  "DD.MM.YY",
			value: "01.02.69",
			want:  time.Date(1969, time.February, 1, 0, 0, 0, 0, time.UTC),
		},
		{name: "broken calendar date", rule: "DD.MM.YYYY", value: "30.02.1957", wantErr: true},
		{name: "month out of range", rule: "DD.MM.YYYY", value: "01.13.1957", wantErr: true},
		{name: "too few digits", rule: "DD.MM.YYYY", value: "8.3.1957", wantErr: true},
		{name: "wrong separator", rule: "DD.MM.YYYY", value: "08-03-1957", wantErr: true},
		{name: "trailing junk", rule: "DD.MM.YYYY", value: "08.03.1957x", wantErr: true},
		{name: "hour out of range", rule: "hh:mm", value: "24:00", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := mustFieldFormat(t, "DateTime", "date_of_birth", false, "", tt.rule)
			got, err := f.ValidateValue(tt.value)
			if tt.wantErr {
				if !IsKind(err, KindFieldValue) {
					t.Errorf("ValidateValue(%q) error = %v, want field value error", tt.value, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateValue(%q) error = %v", tt.value, err)
			}
			if !got.(time.Time).Equal(tt.want) {
				t.Errorf("ValidateValue(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestRegExFieldFormat(t *testing.T) {
	t.Parallel()

	f := mustFieldFormat(t, "RegEx", "branch_id", false, "", `38\d\d\d`)
	if _, err := f.ValidateValue("38000"); err != nil {
		t.Errorf("ValidateValue(38000) error = %v, want nil", err)
	}
	// The match is anchored at the start but not at the end.
	if _, err := f.ValidateValue("38000x"); err != nil {
		t.Errorf("ValidateValue(38000x) error = %v, want nil", err)
	}
	if _, err := f.ValidateValue("37999"); !IsKind(err, KindFieldValue) {
		t.Errorf("ValidateValue(37999) error = %v, want field value error", err)
	}
	if _, err := f.ValidateValue("x38000"); !IsKind(err, KindFieldValue) {
		t.Errorf("ValidateValue(x38000) error = %v, want field value error", err)
	}

	length, _ := ParseRange("", "")
	if _, err := newFieldFormat("RegEx", "broken", false, length, "("); !IsKind(err, KindFieldSyntax) {
		t.Errorf("newFieldFormat(rule=() error = %v, want field syntax error", err)
	}
}

func TestRegExFieldFormat_caseInsensitive(t *testing.T) {
	t.Parallel()

	f := mustFieldFormat(t, "RegEx", "code", false, "", "abc")
	if _, err := f.ValidateValue("ABC"); err != nil {
		t.Errorf("ValidateValue(ABC) error = %v, want nil", err)
	}
}

func TestPatternFieldFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rule    string
		value   string
		wantErr bool
	}{
		{name: "question mark is one character", rule: "h?llo", value: "hello"},
		{name: "question mark needs a character", rule: "h?llo", value: "hllo", wantErr: true},
		{name: "star is any sequence", rule: "DSB*.csv", value: "DSB_20081130.csv"},
		{name: "star matches nothing", rule: "ab*c", value: "abc"},
		{name: "literal dot is escaped", rule: "a.b", value: "axb", wantErr: true},
		{name: "case insensitive", rule: "abc*", value: "ABCDEF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := mustFieldFormat(t, "Pattern", "file_name", false, "", tt.rule)
			_, err := f.ValidateValue(tt.value)
			if tt.wantErr {
				if !IsKind(err, KindFieldValue) {
					t.Errorf("ValidateValue(%q) error = %v, want field value error", tt.value, err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateValue(%q) error = %v, want nil", tt.value, err)
			}
		})
	}
}

func TestNewFieldFormat_unknownType(t *testing.T) {
	t.Parallel()

	length, _ := ParseRange("", "")
	if _, err := newFieldFormat("NoSuchType", "x", false, length, ""); !IsKind(err, KindFieldSyntax) {
		t.Errorf("newFieldFormat(NoSuchType) error = %v, want field syntax error", err)
	}
}

func TestRegisterFieldFormat(t *testing.T) {
	t.Parallel()

	RegisterFieldFormat("TestOnlyUppercase", func(name string, allowEmpty bool, length *Range, rule string) (FieldFormat, error) {
		return &textFieldFormat{fieldBase{name, allowEmpty, length, rule}}, nil
	})
	length, _ := ParseRange("", "")
	f, err := newFieldFormat("testonlyuppercase", "x", false, length, "")
	if err != nil {
		t.Fatalf("newFieldFormat() error = %v", err)
	}
	if f.Name() != "x" {
		t.Errorf("Name() = %q, want %q", f.Name(), "x")
	}
}

func TestFieldFormat_noHiddenState(t *testing.T) {
	t.Parallel()

	// The same format validates the same value identically no matter how
	// often or in which order it runs.
	f := mustFieldFormat(t, "Integer", "n", false, "", "0:10")
	for i := 0; i < 3; i++ {
		if _, err := f.ValidateValue("5"); err != nil {
			t.Fatalf("ValidateValue(5) error = %v", err)
		}
		if _, err := f.ValidateValue("11"); err == nil {
			t.Fatal("ValidateValue(11) should fail")
		}
	}
}
