package adapters

import "testing"

func TestMinorToDecimal(t *testing.T) {
	cases := []struct {
		minor int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{1234, "12.34"},
		{100000, "1000.00"},
		{-1234, "-12.34"},
	}
	for _, tc := range cases {
		if got := MinorToDecimal(tc.minor); got != tc.want {
			t.Errorf("MinorToDecimal(%d) = %q, want %q", tc.minor, got, tc.want)
		}
	}
}

func TestDecimalToMinor(t *testing.T) {
	cases := []struct {
		value string
		want  int64
	}{
		{"12.34", 1234},
		{"12.3", 1230},
		{"12", 1200},
		{"0.05", 5},
		{"12.3400", 1234},
		{"-12.34", -1234},
		{" 7.00 ", 700},
	}
	for _, tc := range cases {
		got, err := DecimalToMinor(tc.value)
		if err != nil {
			t.Errorf("DecimalToMinor(%q): %v", tc.value, err)
			continue
		}
		if got != tc.want {
			t.Errorf("DecimalToMinor(%q) = %d, want %d", tc.value, got, tc.want)
		}
	}
}

func TestDecimalToMinorRejectsGarbage(t *testing.T) {
	for _, value := range []string{"", "abc", "12.x"} {
		if _, err := DecimalToMinor(value); err == nil {
			t.Errorf("DecimalToMinor(%q) should fail", value)
		}
	}
}

// A gateway amount with more precision than the ledger's minor units must
// fail the parse, never lose value to rounding.
func TestDecimalToMinorRejectsSubCentPrecision(t *testing.T) {
	for _, value := range []string{"12.345", "0.001", "0.00000001", "-3.999"} {
		if got, err := DecimalToMinor(value); err == nil {
			t.Errorf("DecimalToMinor(%q) = %d, want sub-cent precision error", value, got)
		}
	}
}
