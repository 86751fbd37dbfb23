package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// IVBytes is the AES block and IV size.
const IVBytes = aes.BlockSize

// ErrBadPadding is returned when decrypted data does not end in valid PKCS#7
// padding, which almost always means the wrong key.
var ErrBadPadding = errors.New("crypto: invalid padding")

// EncryptCBC pads plaintext to the block size and encrypts it under key with a
// fresh random IV read from r (crypto/rand when r is nil).
func EncryptCBC(key, plaintext []byte, r io.Reader) (iv, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	if r == nil {
		r = rand.Reader
	}
	iv = make([]byte, IVBytes)
	if _, err := io.ReadFull(r, iv); err != nil {
		return nil, nil, fmt.Errorf("rand.Read iv: %w", err)
	}
	padded := pad(plaintext, aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return iv, ciphertext, nil
}

// DecryptCBC decrypts ciphertext under key and iv and strips the padding.
func DecryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	if len(iv) != IVBytes {
		return nil, fmt.Errorf("crypto: iv is %d bytes, want %d", len(iv), IVBytes)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("crypto: ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	return unpad(plain, aes.BlockSize)
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	for i := 0; i < n; i++ {
		out = append(out, byte(n))
	}
	return out
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, ErrBadPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-n], nil
}
