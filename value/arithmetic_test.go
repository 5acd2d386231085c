package value_test

import (
	"testing"

	"github.com/jinx-lang/jinx/internal/jerr"
	"github.com/jinx-lang/jinx/value"
)

func TestAdd(t *testing.T) {
	data := []struct {
		name    string
		a, b    value.Value
		want    value.Value
		wantErr bool
	}{
		{"int+int stays int", value.Int(2), value.Int(3), value.Int(5), false},
		{"int+number promotes", value.Int(2), value.Num(0.5), value.Num(2.5), false},
		{"string+string concatenates", value.Str("foo"), value.Str("bar"), value.Str("foobar"), false},
		{"string+int is an error", value.Str("foo"), value.Int(1), value.Value{}, true},
		{"bool+int is an error", value.Bool(true), value.Int(1), value.Value{}, true},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			got, err := value.Add(d.a, d.b, "test")
			if d.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Type() != d.want.Type() || got.String() != d.want.String() {
				t.Errorf("got %s, want %s", got, d.want)
			}
		})
	}
}

func TestDivide(t *testing.T) {
	data := []struct {
		name    string
		a, b    value.Value
		wantTyp value.Type
		want    string
		wantErr bool
	}{
		{"exact integer division stays integer", value.Int(10), value.Int(2), value.Integer, "5", false},
		{"inexact integer division promotes", value.Int(1), value.Int(3), value.Number, "0.3333333333333333", false},
		{"division by zero is Arithmetic error", value.Int(1), value.Int(0), 0, "", true},
		{"number division by zero is Arithmetic error", value.Num(1), value.Num(0), 0, "", true},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			got, err := value.Divide(d.a, d.b, "test")
			if d.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				if je, ok := err.(*jerr.Error); ok && je.Kind != jerr.Arithmetic {
					t.Errorf("expected Kind Arithmetic, got %s", je.Kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Type() != d.wantTyp {
				t.Errorf("got type %s, want %s", got.Type(), d.wantTyp)
			}
		})
	}
}

func TestMod(t *testing.T) {
	data := []struct {
		name string
		a, b value.Value
		want int64
	}{
		{"positive/positive", value.Int(7), value.Int(3), 1},
		{"negative dividend takes divisor's sign", value.Int(-7), value.Int(3), 2},
		{"negative divisor takes divisor's sign", value.Int(7), value.Int(-3), -2},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			got, err := value.Mod(d.a, d.b, "test")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.AsInt() != d.want {
				t.Errorf("Mod(%v, %v) = %d, want %d", d.a, d.b, got.AsInt(), d.want)
			}
		})
	}
}

func TestModByZero(t *testing.T) {
	if _, err := value.Mod(value.Int(1), value.Int(0), "test"); err == nil {
		t.Fatalf("expected error on modulus by zero")
	}
}

func TestSubtractMultiply(t *testing.T) {
	if got, err := value.Subtract(value.Int(5), value.Int(2), "test"); err != nil || got.AsInt() != 3 {
		t.Errorf("Subtract(5,2) = %v, %v", got, err)
	}
	if got, err := value.Multiply(value.Num(2), value.Int(3), "test"); err != nil || got.AsNumber() != 6 {
		t.Errorf("Multiply(2.0,3) = %v, %v", got, err)
	}
}

func TestNegate(t *testing.T) {
	if got, err := value.Negate(value.Int(5), "test"); err != nil || got.AsInt() != -5 {
		t.Errorf("Negate(5) = %v, %v", got, err)
	}
	if got, err := value.Negate(value.Num(2.5), "test"); err != nil || got.AsNumber() != -2.5 {
		t.Errorf("Negate(2.5) = %v, %v", got, err)
	}
	if _, err := value.Negate(value.Str("x"), "test"); err == nil {
		t.Errorf("Negate(string) should error")
	}
}
