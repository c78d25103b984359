package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/scrypt"
)

var (
	// ErrCorruptCredential indicates a stored password hash that cannot be parsed.
	ErrCorruptCredential = errors.New("corrupt stored credential")

	// ErrDecrypt indicates the ciphertext could not be decrypted. A wrong
	// password and corrupted input are indistinguishable here: the cipher
	// carries no integrity tag, so a bad key either fails PKCS#7 unpadding
	// or yields garbage that happens to unpad.
	ErrDecrypt = errors.New("phone decryption failed")
)

const (
	// keyLabel is the fixed, public scrypt derivation label. It is not a
	// secret; determinism is required so the same password always derives
	// the same key.
	keyLabel = "phone-proof.v1"

	keyLen = 24 // AES-192

	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

// HashPassword produces an adaptive salted hash with the salt embedded in
// the output, so verification needs only the stored value.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash. A
// mismatch is a false result, not an error; only a malformed stored hash
// produces ErrCorruptCredential.
func VerifyPassword(password, storedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrCorruptCredential, err)
	}
}

// DeriveKey derives the AES key for phone encryption from the password.
// Deterministic for a given password; the key is never stored or cached.
func DeriveKey(password string) ([]byte, error) {
	return scrypt.Key([]byte(password), []byte(keyLabel), scryptN, scryptR, scryptP, keyLen)
}

// EncryptPhone encrypts the phone number under a key derived from the
// password, returning the ciphertext and the random IV generated for this
// call. Encrypting the same phone twice yields different ciphertext.
func EncryptPhone(phone, password string) (ciphertext, iv []byte, err error) {
	key, err := DeriveKey(password)
	if err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	iv = make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, err
	}

	padded := pkcs7Pad([]byte(phone), aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return ciphertext, iv, nil
}

// DecryptPhone re-derives the key from the supplied password and decrypts.
// Success doubles as an implicit password check underneath the explicit
// hash comparison done by the login flow.
func DecryptPhone(ciphertext, iv []byte, password string) (string, error) {
	key, err := DeriveKey(password)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	if len(iv) != aes.BlockSize || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", ErrDecrypt
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(unpadded), nil
}

// FingerprintPhone returns a deterministic, password-independent digest of
// the phone number. Suitable only for ban correlation: it must never be
// used to authenticate or to recover the number.
func FingerprintPhone(phone string) string {
	sum := sha256.Sum256([]byte(phone))
	return hex.EncodeToString(sum[:])
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
