package jsonrpc

import (
	"testing"
	"time"
)

// Reference moments and codes from the published SHA-1 test table,
// truncated to the 6 digits the servlet checks.
func TestTOTPReferenceVectors(t *testing.T) {
	secret := "12345678901234567890" // not base32, exercised as raw bytes
	cases := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
		{20000000000, "353130"},
	}
	for _, c := range cases {
		got := TOTP(secret, time.Unix(c.unix, 0))
		if got != c.want {
			t.Errorf("TOTP at %d = %s, want %s", c.unix, got, c.want)
		}
	}
}

func TestTOTPBase32Secret(t *testing.T) {
	// base32 of the same reference key
	want := TOTP("12345678901234567890", time.Unix(59, 0))
	got := TOTP("GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", time.Unix(59, 0))
	if got != want {
		t.Errorf("base32 secret = %s, raw secret = %s", got, want)
	}
	relaxed := TOTP("gezd gnbv gy3t qojq gezd gnbv gy3t qojq", time.Unix(59, 0))
	if relaxed != want {
		t.Errorf("spacing and case should not matter, got %s", relaxed)
	}
}

func TestTOTPChangesPerStep(t *testing.T) {
	secret := "GEZDGNBVGY3TQOJQ"
	a := TOTP(secret, time.Unix(0, 0))
	b := TOTP(secret, time.Unix(29, 0))
	c := TOTP(secret, time.Unix(30, 0))
	if a != b {
		t.Error("codes inside one 30s step must match")
	}
	if a == c {
		t.Error("codes of adjacent steps should differ")
	}
}
