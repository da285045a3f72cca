package utils

import (
	"encoding/base64"
	"testing"
)

func TestUniqueStringIsURLSafeAndRandom(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		value, err := UniqueString(50)
		if err != nil {
			t.Fatalf("unique string: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(value)
		if err != nil {
			t.Fatalf("expected url-safe base64, got %q: %v", value, err)
		}
		if len(raw) != 50 {
			t.Fatalf("expected 50 random bytes, got %d", len(raw))
		}
		if _, dup := seen[value]; dup {
			t.Fatalf("duplicate value %q", value)
		}
		seen[value] = struct{}{}
	}
}

func TestGenerateVerificationCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := GenerateVerificationCode(DefaultVerificationCodeLength)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 5 {
			t.Fatalf("expected 5 digits, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("expected digits only, got %q", code)
			}
		}
	}

	code, err := GenerateVerificationCode(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != DefaultVerificationCodeLength {
		t.Fatalf("expected default length, got %q", code)
	}
}

func TestHashTokenIsKeyed(t *testing.T) {
	a := HashToken("12345", "pepper-one")
	b := HashToken("12345", "pepper-two")
	if a == b {
		t.Fatal("expected different peppers to produce different digests")
	}
	if a != HashToken("12345", "pepper-one") {
		t.Fatal("expected digest to be deterministic")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@X.com "); got != "alice@x.com" {
		t.Fatalf("unexpected normalized email %q", got)
	}
}

func TestEncodeDecodeID(t *testing.T) {
	encoded := EncodeID(42)
	if encoded == "42" {
		t.Fatal("expected id to be obscured")
	}
	id, err := DecodeID(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected 42, got %d", id)
	}
	if _, err := DecodeID("%%%"); err == nil {
		t.Fatal("expected decode error for invalid input")
	}
	if _, err := DecodeID(StrEncode("not-a-number")); err == nil {
		t.Fatal("expected decode error for non-numeric payload")
	}
}
