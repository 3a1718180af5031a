package utils

import (
	"math/big"
	"testing"
	"time"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		input    string
		length   int
		expected string
	}{
		{"hello world", 5, "he..."},
		{"short", 10, "short"},
		{"exact", 5, "exact"},
		{"", 5, ""},
		{"abc", 2, "ab"},
		{"abc", 3, "abc"},
	}

	for _, tt := range tests {
		result := TruncateString(tt.input, tt.length)
		if result != tt.expected {
			t.Errorf("TruncateString(%q, %d) = %q; want %q", tt.input, tt.length, result, tt.expected)
		}
	}
}

func TestAddCommas(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"123", "123"},
		{"1234", "1,234"},
		{"123456", "123,456"},
		{"1234567", "1,234,567"},
		{"1234.56", "1,234.56"},
		{"-1234", "-1,234"},
		{"", ""},
	}

	for _, tt := range tests {
		result := AddCommas(tt.input)
		if result != tt.expected {
			t.Errorf("AddCommas(%q) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		input    float64
		decimals int
		expected string
	}{
		{1234.5678, 2, "1,234.57"},
		{1234.5, 2, "1,234.50"},
		{0, 2, "0.00"},
	}

	for _, tt := range tests {
		result := FormatFloat(tt.input, tt.decimals)
		if result != tt.expected {
			t.Errorf("FormatFloat(%f, %d) = %q; want %q", tt.input, tt.decimals, result, tt.expected)
		}
	}
}

func TestFormatBigFloat(t *testing.T) {
	tests := []struct {
		input    *big.Float
		decimals int
		expected string
	}{
		{big.NewFloat(1234.5678), 2, "1,234.57"},
		{nil, 2, "0"},
	}

	for _, tt := range tests {
		result := FormatBigFloat(tt.input, tt.decimals)
		if result != tt.expected {
			t.Errorf("FormatBigFloat(%v, %d) = %q; want %q", tt.input, tt.decimals, result, tt.expected)
		}
	}
}

func TestFormatTokenAmount(t *testing.T) {
	oneAndHalf, _ := new(big.Int).SetString("1500000000000000000", 10)
	tests := []struct {
		input    *big.Int
		decimals int
		expected string
	}{
		{oneAndHalf, 18, "1.500000"},
		{big.NewInt(1234567), 6, "1.234567"},
		{big.NewInt(0), 18, "0.000000"},
		{big.NewInt(42), 0, "42.000000"},
		{nil, 18, "0.000000"},
	}

	for _, tt := range tests {
		result := FormatTokenAmount(tt.input, tt.decimals)
		if result != tt.expected {
			t.Errorf("FormatTokenAmount(%v, %d) = %q; want %q", tt.input, tt.decimals, result, tt.expected)
		}
	}
}

func TestParseTokenAmount(t *testing.T) {
	tests := []struct {
		input    string
		decimals int
		expected string
		wantErr  bool
	}{
		{"1.5", 18, "1500000000000000000", false},
		{"0.1", 18, "100000000000000000", false},
		{"100", 6, "100000000", false},
		{".25", 2, "25", false},
		{"1.23456789", 6, "1234567", false},
		{"-2", 1, "-20", false},
		{"abc", 18, "", true},
		{"", 18, "", true},
		{"1.2.3", 18, "", true},
	}

	for _, tt := range tests {
		result, err := ParseTokenAmount(tt.input, tt.decimals)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTokenAmount(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTokenAmount(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if result.String() != tt.expected {
			t.Errorf("ParseTokenAmount(%q, %d) = %s; want %s", tt.input, tt.decimals, result, tt.expected)
		}
	}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		amount   float64
		currency string
		expected string
	}{
		{1234.56, "USD", "$1,234.56"},
		{0, "USD", "$0.00"},
		{-42.5, "USD", "-$42.50"},
		{1000000, "", "$1,000,000.00"},
		{12.3, "eur", "€12.30"},
		{99.999, "GBP", "£100.00"},
		{5, "CHF", "CHF 5.00"},
	}

	for _, tt := range tests {
		result := FormatCurrency(tt.amount, tt.currency)
		if result != tt.expected {
			t.Errorf("FormatCurrency(%f, %q) = %q; want %q", tt.amount, tt.currency, result, tt.expected)
		}
	}
}

func TestFormatDate(t *testing.T) {
	result := FormatDateIn(1700000000, time.UTC)
	if result != "Nov 14, 2023, 10:13 PM" {
		t.Errorf("FormatDateIn = %q", result)
	}
	if FormatDate(0) == "" {
		t.Error("FormatDate returned empty string")
	}
}

func TestFormatAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0x1234567890abcdef1234567890abcdef1234abcd", "0x1234...abcd"},
		{"", ""},
		{"0x1234", "0x1234"},
	}

	for _, tt := range tests {
		result := FormatAddress(tt.input)
		if result != tt.expected {
			t.Errorf("FormatAddress(%q) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}
