package utils

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"Simple", "alice@example.com", true},
		{"PlusTag", "alice+keys@example.co.uk", true},
		{"Empty", "", false},
		{"NoAt", "alice.example.com", false},
		{"NoTLD", "alice@example", false},
		{"Spaces", "alice @example.com", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValidEmail(tc.input); got != tc.expected {
				t.Errorf("IsValidEmail(%q) = %v, expected %v", tc.input, got, tc.expected)
			}
		})
	}
}

func TestUserIDEmail(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantAddr  string
		wantValid bool
	}{
		{"NameAndAddress", "Alice <alice@example.com>", "alice@example.com", true},
		{"BareAddress", "bob@example.com", "bob@example.com", true},
		{"PaddedBareAddress", "  bob@example.com  ", "bob@example.com", true},
		{"NameOnly", "Carol", "Carol", false},
		{"BrokenAddress", "Dave <dave>", "dave", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			addr, ok := UserIDEmail(tc.input)
			if addr != tc.wantAddr || ok != tc.wantValid {
				t.Errorf("UserIDEmail(%q) = (%q, %v), expected (%q, %v)", tc.input, addr, ok, tc.wantAddr, tc.wantValid)
			}
		})
	}
}
