// Package archive decrypts and parses the vendor's encrypted event archive.
package archive

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"pumpsync/internal/errs"
	"pumpsync/internal/model"
)

// BlobVersion is the archive format marker this connector understands.
const BlobVersion = "PSA1"

const keyLen = 32

// hkdfSalt is fixed for the archive format; the secret input is the
// account/device pair, not this salt.
var hkdfSalt = []byte("pumpsync.archive.v1")

// DeriveKey derives the symmetric archive key from the account and
// device identifiers known at configuration time. Deterministic; the
// key is held in memory only and never persisted.
func DeriveKey(accountID, serial string) []byte {
	r := hkdf.New(sha256.New, []byte(accountID+":"+serial), hkdfSalt, []byte("archive-key"))
	key := make([]byte, keyLen)
	if _, err := r.Read(key); err != nil {
		// hkdf.Read only fails when asked for more than 255*hashLen bytes.
		panic(fmt.Sprintf("hkdf: %v", err))
	}
	return key
}

// Decrypt opens the archive blob with the derived key. The ciphertext
// layout is a 24-byte XChaCha20-Poly1305 nonce followed by the sealed
// payload, with the version marker bound as AAD. Every failure maps to
// errs.ErrDecryption: bad key, truncated blob, corrupted payload, or an
// unknown format version. The caller must not retry the same blob.
func Decrypt(blob model.RawArchiveBlob, key []byte) ([]byte, error) {
	if blob.Version != BlobVersion {
		return nil, fmt.Errorf("%w: unsupported archive version %q", errs.ErrDecryption, blob.Version)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDecryption, err)
	}
	if len(blob.Data) < chacha20poly1305.NonceSizeX+aead.Overhead() {
		return nil, fmt.Errorf("%w: blob too short (%d bytes)", errs.ErrDecryption, len(blob.Data))
	}
	nonce := blob.Data[:chacha20poly1305.NonceSizeX]
	ct := blob.Data[chacha20poly1305.NonceSizeX:]
	plain, err := aead.Open(nil, nonce, ct, []byte(blob.Version))
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", errs.ErrDecryption)
	}
	return plain, nil
}

// Encrypt seals a payload into the wire format Decrypt understands.
// The connector never uploads archives; this exists to build fixtures.
func Encrypt(payload, key, nonce []byte) (model.RawArchiveBlob, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return model.RawArchiveBlob{}, err
	}
	if len(nonce) != chacha20poly1305.NonceSizeX {
		return model.RawArchiveBlob{}, fmt.Errorf("nonce must be %d bytes", chacha20poly1305.NonceSizeX)
	}
	out := make([]byte, 0, len(nonce)+len(payload)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, payload, []byte(BlobVersion))...)
	return model.RawArchiveBlob{Version: BlobVersion, Data: out}, nil
}
