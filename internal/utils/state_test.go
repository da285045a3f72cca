package utils

import "testing"

func TestStateSignAndVerify(t *testing.T) {
	raw, err := UniqueString(16)
	if err != nil {
		t.Fatal(err)
	}
	signed := SignState(raw, "state-secret-123456")
	parsed, ok := VerifySignedState(signed, "state-secret-123456")
	if !ok || parsed != raw {
		t.Fatalf("verify failed: %v %s", ok, parsed)
	}
	if _, ok := VerifySignedState(signed, "wrong-secret"); ok {
		t.Fatal("expected verification failure with wrong secret")
	}
	for _, bad := range []string{"", "nodot", ".sig", raw + ".tampered"} {
		if _, ok := VerifySignedState(bad, "state-secret-123456"); ok {
			t.Fatalf("expected %q to fail", bad)
		}
	}
}
