package util

import "testing"

func TestChecksumSigner_RoundTrip(t *testing.T) {
	signer := NewChecksumSigner([]byte("legacy-secret"))

	sig := signer.Sign("ML-00001", "camp-9")
	if len(sig) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", sig)
	}
	if !signer.Verify("ML-00001", "camp-9", sig) {
		t.Fatal("signed checksum must verify")
	}
	if signer.Verify("ML-00002", "camp-9", sig) {
		t.Fatal("checksum must bind the offer id")
	}
	if signer.Verify("ML-00001", "camp-9", "0000000000000000") {
		t.Fatal("wrong checksum must not verify")
	}
}

func TestChecksumSigner_EmptySecretDisablesEnforcement(t *testing.T) {
	signer := NewChecksumSigner(nil)

	if !signer.Verify("ML-00001", "camp-9", "anything") {
		t.Fatal("empty secret must accept any checksum")
	}
	if !signer.Verify("ML-00001", "camp-9", "") {
		t.Fatal("empty secret must accept a missing checksum")
	}
}
