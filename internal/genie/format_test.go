package genie

import "testing"

func strptr(s string) *string { return &s }

func TestFormatCellFloats(t *testing.T) {
	cases := []struct {
		in       string
		typeName string
		want     string
	}{
		{"1234567.891", "DOUBLE", "1,234,567.89"},
		{"1234567.891", "DECIMAL", "1,234,567.89"},
		{"1234567.891", "FLOAT", "1,234,567.89"},
		{"0.5", "DOUBLE", "0.50"},
		{"-9876.4", "DOUBLE", "-9,876.40"},
		{"1000000", "DOUBLE", "1,000,000.00"},
	}
	for _, tc := range cases {
		if got := formatCell(strptr(tc.in), tc.typeName); got != tc.want {
			t.Errorf("formatCell(%q, %s) = %q, want %q", tc.in, tc.typeName, got, tc.want)
		}
	}
}

func TestFormatCellIntegers(t *testing.T) {
	cases := []struct {
		in       string
		typeName string
		want     string
	}{
		{"1234567", "INT", "1,234,567"},
		{"1234567", "BIGINT", "1,234,567"},
		{"1234567", "LONG", "1,234,567"},
		{"-42", "INT", "-42"},
		{"0", "BIGINT", "0"},
	}
	for _, tc := range cases {
		if got := formatCell(strptr(tc.in), tc.typeName); got != tc.want {
			t.Errorf("formatCell(%q, %s) = %q, want %q", tc.in, tc.typeName, got, tc.want)
		}
	}
}

func TestFormatCellNull(t *testing.T) {
	for _, typeName := range []string{"DOUBLE", "INT", "STRING"} {
		if got := formatCell(nil, typeName); got != "NULL" {
			t.Errorf("formatCell(nil, %s) = %q, want NULL", typeName, got)
		}
	}
}

func TestFormatCellPassthrough(t *testing.T) {
	if got := formatCell(strptr("west region"), "STRING"); got != "west region" {
		t.Errorf("string cell mangled: %q", got)
	}
	// Unparseable numerics pass through verbatim rather than erroring.
	if got := formatCell(strptr("n/a"), "DOUBLE"); got != "n/a" {
		t.Errorf("unparseable float mangled: %q", got)
	}
	if got := formatCell(strptr("n/a"), "INT"); got != "n/a" {
		t.Errorf("unparseable int mangled: %q", got)
	}
}
