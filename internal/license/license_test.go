package license

import (
	"strings"
	"testing"
)

var testSecret = []byte("test-secret-key")

func TestDerive_Deterministic(t *testing.T) {
	first := Derive(testSecret, "user@example.com")
	second := Derive(testSecret, "user@example.com")

	if first != second {
		t.Errorf("Expected identical keys, got '%s' and '%s'", first, second)
	}
}

func TestDerive_DistinctEmails(t *testing.T) {
	emails := []string{
		"a@example.com",
		"b@example.com",
		"ab@example.com",
		"a@example.co",
		"a+tag@example.com",
	}

	seen := make(map[string]string)
	for _, email := range emails {
		key := Derive(testSecret, email)
		if prior, dup := seen[key]; dup {
			t.Errorf("Collision: '%s' and '%s' derived the same key", prior, email)
		}
		seen[key] = email
	}
}

func TestDerive_SecretChangesKey(t *testing.T) {
	first := Derive([]byte("secret-one"), "user@example.com")
	second := Derive([]byte("secret-two"), "user@example.com")

	if first == second {
		t.Error("Different secrets must derive different keys")
	}
}

func TestDerive_NormalizationVariants(t *testing.T) {
	canonical := Derive(testSecret, "user@example.com")

	variants := []string{
		"USER@EXAMPLE.COM",
		"  user@example.com  ",
		"\tUser@Example.Com\n",
	}

	for _, variant := range variants {
		if got := Derive(testSecret, variant); got != canonical {
			t.Errorf("Variant '%q' derived '%s', expected '%s'", variant, got, canonical)
		}
	}
}

func TestDerive_URLSafeUnpadded(t *testing.T) {
	key := Derive(testSecret, "user@example.com")

	// 32-byte digest encodes to 43 base64 characters with padding stripped.
	if len(key) != 43 {
		t.Errorf("Expected 43-character key, got %d ('%s')", len(key), key)
	}
	if strings.ContainsAny(key, "=+/") {
		t.Errorf("Key is not URL-safe unpadded base64: '%s'", key)
	}
}

func TestVerify(t *testing.T) {
	key := Derive(testSecret, "user@example.com")

	if !Verify(testSecret, "user@example.com", key) {
		t.Error("Expected derived key to verify")
	}
	if !Verify(testSecret, "USER@example.com ", key) {
		t.Error("Expected key to verify against a case/whitespace variant")
	}
	if Verify(testSecret, "other@example.com", key) {
		t.Error("Key must not verify for a different email")
	}
	if Verify(testSecret, "user@example.com", key[:42]+"x") {
		t.Error("Tampered key must not verify")
	}
	if Verify(testSecret, "user@example.com", "") {
		t.Error("Empty key must not verify")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"User@Example.Com", "user@example.com"},
		{"  user@example.com ", "user@example.com"},
		{"", ""},
		{"   ", ""},
	}

	for _, tc := range tests {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
