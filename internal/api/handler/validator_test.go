package handler

import (
	"strings"
	"testing"
)

func TestStrongPassword(t *testing.T) {
	cases := map[string]bool{
		"Passw0rd!":                    true,
		"abcdefg1":                     true,
		"contraseña9":                  true,
		"short1":                       false,
		"allletters":                   false,
		"12345678":                     false,
		strings.Repeat("a1", 30):       true,
		strings.Repeat("a1", 30) + "x": false,
	}
	for in, want := range cases {
		if got := strongPassword(in); got != want {
			t.Errorf("strongPassword(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidator_Messages(t *testing.T) {
	v := NewValidator()

	err := v.Validate(&registerRequest{Username: "a!", Password: "weak"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "username may only contain") || !strings.Contains(msg, "password must be 8 to 60") {
		t.Fatalf("unexpected message %q", msg)
	}

	if err := v.Validate(&registerRequest{Username: "alice_01", Password: "Passw0rd!"}); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}
