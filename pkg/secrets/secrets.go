// Package secrets provides the symmetric cipher used for session cookies,
// OAuth state passthrough values, and signup invitation tokens.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const ivLength = 16

// KeyLength is the required key size in bytes (AES-256).
const KeyLength = 32

var (
	ErrInvalidKeyLength = errors.New("encryption key must be exactly 32 bytes")
	// ErrDecryption covers every decode failure: malformed token, bad
	// padding, wrong key. Callers treat it as "not our ciphertext" rather
	// than an internal error.
	ErrDecryption = errors.New("failed to decrypt token")
)

// Cipher encrypts and decrypts opaque strings with AES-256-CBC. Tokens are
// formatted as hex(iv) + ":" + hex(ciphertext) with a fresh random IV per
// encryption.
type Cipher struct {
	key []byte
}

func NewCipher(key string) (*Cipher, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	return &Cipher{key: []byte(key)}, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	encrypted := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(encrypted, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(encrypted), nil
}

func (c *Cipher) Decrypt(token string) (string, error) {
	ivPart, body, found := strings.Cut(token, ":")
	if !found {
		return "", ErrDecryption
	}

	iv, err := hex.DecodeString(ivPart)
	if err != nil || len(iv) != ivLength {
		return "", ErrDecryption
	}
	encrypted, err := hex.DecodeString(body)
	if err != nil || len(encrypted) == 0 || len(encrypted)%aes.BlockSize != 0 {
		return "", ErrDecryption
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", ErrDecryption
	}

	decrypted := make([]byte, len(encrypted))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(decrypted, encrypted)

	plaintext, err := pkcs7Unpad(decrypted, aes.BlockSize)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrDecryption
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, ErrDecryption
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, ErrDecryption
		}
	}
	return data[:len(data)-padding], nil
}
