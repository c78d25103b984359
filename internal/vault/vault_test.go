package vault

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	phones := []string{"+15551234567", "+237650000000", "5", "+4915112345678901"}
	for _, phone := range phones {
		ciphertext, iv, err := EncryptPhone(phone, "correct horse battery")
		if err != nil {
			t.Fatalf("encrypt %q: %v", phone, err)
		}
		got, err := DecryptPhone(ciphertext, iv, "correct horse battery")
		if err != nil {
			t.Fatalf("decrypt %q: %v", phone, err)
		}
		if got != phone {
			t.Fatalf("round trip mismatch: got %q want %q", got, phone)
		}
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	c1, iv1, err := EncryptPhone("+15551234567", "pw")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	c2, iv2, err := EncryptPhone("+15551234567", "pw")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(iv1, iv2) {
		t.Fatal("expected distinct IVs per call")
	}
	if bytes.Equal(c1, c2) {
		t.Fatal("expected distinct ciphertext for repeated encryption")
	}
}

func TestDecryptWrongPasswordNeverRecovers(t *testing.T) {
	const phone = "+15551234567"
	ciphertext, iv, err := EncryptPhone(phone, "password-one")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	got, err := DecryptPhone(ciphertext, iv, "password-two")
	if err == nil && got == phone {
		t.Fatal("wrong password recovered the phone number")
	}
	if err != nil && !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}
}

func TestDecryptRejectsMangledInput(t *testing.T) {
	ciphertext, iv, err := EncryptPhone("+15551234567", "pw")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := DecryptPhone(ciphertext[:len(ciphertext)-1], iv, "pw"); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("truncated ciphertext: expected ErrDecrypt, got %v", err)
	}
	if _, err := DecryptPhone(ciphertext, iv[:8], "pw"); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("short iv: expected ErrDecrypt, got %v", err)
	}
	if _, err := DecryptPhone(nil, iv, "pw"); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("empty ciphertext: expected ErrDecrypt, got %v", err)
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	k1, err := DeriveKey("pw")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, err := DeriveKey("pw")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("expected deterministic key derivation")
	}
	if len(k1) != 24 {
		t.Fatalf("expected 24 byte key, got %d", len(k1))
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("pw1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	ok, err := VerifyPassword("pw1", hash)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected matching password to verify")
	}

	ok, err = VerifyPassword("pw2", hash)
	if err != nil {
		t.Fatalf("verify mismatch: %v", err)
	}
	if ok {
		t.Fatal("expected mismatching password to fail")
	}

	hash2, err := HashPassword("pw1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == hash2 {
		t.Fatal("expected per-call salt to vary the hash")
	}
}

func TestVerifyPasswordCorruptHash(t *testing.T) {
	if _, err := VerifyPassword("pw", "not-a-bcrypt-hash"); !errors.Is(err, ErrCorruptCredential) {
		t.Fatalf("expected ErrCorruptCredential, got %v", err)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	fp1 := FingerprintPhone("+15551234567")
	fp2 := FingerprintPhone("+15551234567")
	if fp1 != fp2 {
		t.Fatal("expected stable fingerprint")
	}
	if fp1 == FingerprintPhone("+15557654321") {
		t.Fatal("expected distinct numbers to produce distinct fingerprints")
	}
	if len(fp1) != 64 {
		t.Fatalf("expected hex sha256 fingerprint, got length %d", len(fp1))
	}
}
