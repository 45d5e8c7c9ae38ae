package archive

import (
	"bytes"
	"errors"
	"testing"

	"golang.org/x/crypto/chacha20poly1305"

	"pumpsync/internal/errs"
	"pumpsync/internal/model"
)

func testNonce() []byte {
	n := make([]byte, chacha20poly1305.NonceSizeX)
	for i := range n {
		n[i] = byte(i)
	}
	return n
}

func TestDeriveKey_Deterministic(t *testing.T) {
	t.Parallel()

	k1 := DeriveKey("user@example.com", "PMP-1234")
	k2 := DeriveKey("user@example.com", "PMP-1234")
	if len(k1) != keyLen {
		t.Fatalf("len=%d, want=%d", len(k1), keyLen)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatalf("DeriveKey not deterministic")
	}
	if bytes.Equal(k1, DeriveKey("other@example.com", "PMP-1234")) {
		t.Fatalf("DeriveKey must change with account")
	}
	if bytes.Equal(k1, DeriveKey("user@example.com", "PMP-9999")) {
		t.Fatalf("DeriveKey must change with serial")
	}
}

func TestDecrypt_Roundtrip(t *testing.T) {
	t.Parallel()

	key := DeriveKey("acct", "serial")
	payload := []byte(`{"seq":1,"type":3,"ts":"2026-08-30T10:00:00Z","info":"{}"}`)

	blob, err := Encrypt(payload, key, testNonce())
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := Decrypt(blob, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("roundtrip mismatch")
	}
}

func TestDecrypt_CorruptedTrailingByte(t *testing.T) {
	t.Parallel()

	key := DeriveKey("acct", "serial")
	blob, err := Encrypt([]byte("event data"), key, testNonce())
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	blob.Data[len(blob.Data)-1] ^= 0x01

	_, err = Decrypt(blob, key)
	if !errors.Is(err, errs.ErrDecryption) {
		t.Fatalf("want ErrDecryption, got %v", err)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	t.Parallel()

	blob, err := Encrypt([]byte("event data"), DeriveKey("acct", "serial"), testNonce())
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(blob, DeriveKey("acct", "other")); !errors.Is(err, errs.ErrDecryption) {
		t.Fatalf("want ErrDecryption with wrong key, got %v", err)
	}
}

func TestDecrypt_BadVersionAndShortBlob(t *testing.T) {
	t.Parallel()

	key := DeriveKey("acct", "serial")
	if _, err := Decrypt(model.RawArchiveBlob{Version: "PSA9", Data: make([]byte, 64)}, key); !errors.Is(err, errs.ErrDecryption) {
		t.Fatalf("want ErrDecryption for unknown version, got %v", err)
	}
	if _, err := Decrypt(model.RawArchiveBlob{Version: BlobVersion, Data: []byte("short")}, key); !errors.Is(err, errs.ErrDecryption) {
		t.Fatalf("want ErrDecryption for short blob, got %v", err)
	}
}
