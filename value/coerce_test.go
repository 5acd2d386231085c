package value_test

import (
	"testing"

	"github.com/jinx-lang/jinx/value"
)

func TestCast(t *testing.T) {
	data := []struct {
		name    string
		v       value.Value
		target  value.Type
		want    string
		wantTyp value.Type
		wantErr bool
	}{
		{"number to integer truncates", value.Num(3.9), value.Integer, "3", value.Integer, false},
		{"boolean to integer", value.Bool(true), value.Integer, "1", value.Integer, false},
		{"numeric string to integer", value.Str("42"), value.Integer, "42", value.Integer, false},
		{"non-numeric string to integer errors", value.Str("abc"), value.Integer, "", 0, true},
		{"integer to number", value.Int(3), value.Number, "3", value.Number, false},
		{"numeric string to number", value.Str("3.5"), value.Number, "3.5", value.Number, false},
		{"integer to boolean", value.Int(0), value.Boolean, "false", value.Boolean, false},
		{"bool string to boolean", value.Str("true"), value.Boolean, "true", value.Boolean, false},
		{"bad bool string errors", value.Str("nope"), value.Boolean, "", 0, true},
		{"any value to string", value.Int(7), value.String, "7", value.String, false},
		{"any value to type", value.Int(7), value.ValueType, "integer", value.ValueType, false},
		{"same type is a no-op", value.Int(7), value.Integer, "7", value.Integer, false},
		{"collection to integer errors", value.CollectionValue(nil), value.Integer, "", 0, true},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			got, err := value.Cast(d.v, d.target, "test")
			if d.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Type() != d.wantTyp {
				t.Errorf("got type %s, want %s", got.Type(), d.wantTyp)
			}
			if got.String() != d.want {
				t.Errorf("got %q, want %q", got.String(), d.want)
			}
		})
	}
}

func TestRuneLen(t *testing.T) {
	if n := value.RuneLen("abc"); n != 3 {
		t.Errorf("RuneLen(abc) = %d, want 3", n)
	}
	if n := value.RuneLen("héllo"); n != 5 {
		t.Errorf("RuneLen(héllo) = %d, want 5", n)
	}
}

func TestIndex(t *testing.T) {
	got, err := value.Index("hello", 1, "test")
	if err != nil || got.AsString() != "h" {
		t.Errorf("Index(hello, 1) = (%v, %v), want (h, nil)", got, err)
	}
	got, err = value.Index("hello", 5, "test")
	if err != nil || got.AsString() != "o" {
		t.Errorf("Index(hello, 5) = (%v, %v), want (o, nil)", got, err)
	}
	if _, err := value.Index("hello", 0, "test"); err == nil {
		t.Errorf("Index(hello, 0) should error, out of range")
	}
	if _, err := value.Index("hello", 6, "test"); err == nil {
		t.Errorf("Index(hello, 6) should error, out of range")
	}
}

func TestSlice(t *testing.T) {
	got, err := value.Slice("hello world", 1, 5, "test")
	if err != nil || got.AsString() != "hello" {
		t.Errorf("Slice(hello world, 1, 5) = (%v, %v), want (hello, nil)", got, err)
	}
	if _, err := value.Slice("hello", 3, 2, "test"); err == nil {
		t.Errorf("Slice with to < from should error")
	}
	if _, err := value.Slice("hello", 1, 10, "test"); err == nil {
		t.Errorf("Slice past the string length should error")
	}
}
