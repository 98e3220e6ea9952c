package id

import (
	"math/big"
	"testing"
)

func TestToBaseUnits(t *testing.T) {
	base, err := ToBaseUnits("1.25", 6)
	if err != nil {
		t.Fatalf("ToBaseUnits failed: %v", err)
	}
	if base != "1250000" {
		t.Fatalf("unexpected base units: %s", base)
	}

	base, err = ToBaseUnits("0.5", 18)
	if err != nil {
		t.Fatalf("ToBaseUnits failed: %v", err)
	}
	if base != "500000000000000000" {
		t.Fatalf("unexpected base units: %s", base)
	}
}

func TestToBaseUnitsValidation(t *testing.T) {
	if _, err := ToBaseUnits("0", 6); err == nil {
		t.Fatal("expected positive amount error")
	}
	if _, err := ToBaseUnits("-1", 6); err == nil {
		t.Fatal("expected rejection of negative amount")
	}
	if _, err := ToBaseUnits("1.1234567", 6); err == nil {
		t.Fatal("expected precision error")
	}
	if _, err := ToBaseUnits("abc", 6); err == nil {
		t.Fatal("expected format error")
	}
}

func TestFormatBaseUnits(t *testing.T) {
	if got := FormatBaseUnits("100", 2); got != "1" {
		t.Fatalf("FormatBaseUnits(100, 2) = %s, want 1", got)
	}
	if got := FormatBaseUnits("1250000", 6); got != "1.25" {
		t.Fatalf("FormatBaseUnits(1250000, 6) = %s, want 1.25", got)
	}
	if got := FormatBaseUnits("5", 6); got != "0.000005" {
		t.Fatalf("FormatBaseUnits(5, 6) = %s, want 0.000005", got)
	}
	if got := FormatBig(big.NewInt(0), 6); got != "0" {
		t.Fatalf("unexpected zero format: %s", got)
	}
}
