package provider

import "testing"

func TestSignAndVerifyRoundTrip(t *testing.T) {
	creds := Credentials{AccessKey: "access", SecretKey: "secret"}
	body := []byte(`{"amount":100}`)

	sig := Sign("post", "/v1/payouts", "abcd1234", "1700000000", creds, body)
	if sig == "" {
		t.Fatalf("expected non-empty signature")
	}

	if !VerifySignature(sig, "post", "/v1/payouts", "abcd1234", "1700000000", creds, body) {
		t.Fatalf("expected signature to verify")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	creds := Credentials{AccessKey: "access", SecretKey: "secret"}
	body := []byte(`{"amount":100}`)
	sig := Sign("post", "/v1/payouts", "abcd1234", "1700000000", creds, body)

	cases := []struct {
		name   string
		verify func() bool
	}{
		{"body changed", func() bool {
			return VerifySignature(sig, "post", "/v1/payouts", "abcd1234", "1700000000", creds, []byte(`{"amount":999}`))
		}},
		{"path changed", func() bool {
			return VerifySignature(sig, "post", "/v1/ewallets", "abcd1234", "1700000000", creds, body)
		}},
		{"salt changed", func() bool {
			return VerifySignature(sig, "post", "/v1/payouts", "ffff0000", "1700000000", creds, body)
		}},
		{"timestamp changed", func() bool {
			return VerifySignature(sig, "post", "/v1/payouts", "abcd1234", "1700000001", creds, body)
		}},
		{"wrong secret", func() bool {
			return VerifySignature(sig, "post", "/v1/payouts", "abcd1234", "1700000000", Credentials{AccessKey: "access", SecretKey: "other"}, body)
		}},
		{"empty signature", func() bool {
			return VerifySignature("", "post", "/v1/payouts", "abcd1234", "1700000000", creds, body)
		}},
	}
	for _, tc := range cases {
		if tc.verify() {
			t.Fatalf("%s: expected verification to fail", tc.name)
		}
	}
}

func TestSignIsDeterministic(t *testing.T) {
	creds := Credentials{AccessKey: "a", SecretKey: "b"}
	first := Sign("get", "/v1/issuing/cards/card_1", "00ff", "1700000000", creds, nil)
	second := Sign("get", "/v1/issuing/cards/card_1", "00ff", "1700000000", creds, nil)
	if first != second {
		t.Fatalf("expected identical signatures, got %q and %q", first, second)
	}
}
