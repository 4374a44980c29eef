package signature_test

import (
	"testing"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/signature"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSign_KnownVector(t *testing.T) {
	// hex(HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog"))
	// from RFC 2104 / common HMAC test vectors.
	got := signature.Sign("key", []byte("The quick brown fox jumps over the lazy dog"))
	want := "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"
	if got != want {
		t.Errorf("Sign = %s, want %s", got, want)
	}
}

func TestVerify_AcceptsValidSignature(t *testing.T) {
	body := []byte(`{"applicationId":"app-1"}`)
	sig := signature.Sign(testSecret, body)

	if !signature.Verify(testSecret, body, sig) {
		t.Error("Verify rejected a valid signature")
	}
}

func TestVerify_RejectsTamperedBody(t *testing.T) {
	body := []byte(`{"applicationId":"app-1"}`)
	sig := signature.Sign(testSecret, body)

	if signature.Verify(testSecret, []byte(`{"applicationId":"app-2"}`), sig) {
		t.Error("Verify accepted a signature for a different body")
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	body := []byte(`{"applicationId":"app-1"}`)
	sig := signature.Sign(testSecret, body)

	if signature.Verify("another-secret-another-secret-ab", body, sig) {
		t.Error("Verify accepted a signature under the wrong secret")
	}
}

func TestVerify_RejectsNonHex(t *testing.T) {
	if signature.Verify(testSecret, []byte("body"), "not hex at all") {
		t.Error("Verify accepted a non-hex signature")
	}
}
