// Package secret cifra en reposo la contraseña del certificado de cada empresa.
//
// Formato: hex(iv) + ":" + hex(ciphertext), AES-256-CBC con padding PKCS#7 y llave
// derivada por scrypt (N=16384, r=8, p=1), compatible con los valores ya almacenados.
package secret

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// DefaultSalt sal histórica de la derivación de llave.
const DefaultSalt = "salt"

// ErrInvalidCiphertext el valor no tiene el formato iv:ct o no descifra con la llave actual.
var ErrInvalidCiphertext = errors.New("secret: valor cifrado inválido")

// AESCodec cifra y descifra con una llave de proceso.
type AESCodec struct {
	block cipher.Block
	rand  io.Reader
}

// NewAESCodec deriva la llave de 32 bytes a partir del secreto de la aplicación.
func NewAESCodec(appSecret, salt string) (*AESCodec, error) {
	if appSecret == "" {
		return nil, fmt.Errorf("secret: APP_SECRET vacío")
	}
	if salt == "" {
		salt = DefaultSalt
	}
	key, err := scrypt.Key([]byte(appSecret), []byte(salt), 16384, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("secret: derivar llave: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secret: crear cifrador: %w", err)
	}
	return &AESCodec{block: block, rand: rand.Reader}, nil
}

// Encrypt cifra un texto y devuelve "ivhex:cthex".
func (c *AESCodec) Encrypt(plaintext string) (string, error) {
	return c.EncryptBytes([]byte(plaintext))
}

// Decrypt revierte Encrypt.
func (c *AESCodec) Decrypt(value string) (string, error) {
	b, err := c.DecryptBytes(value)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncryptBytes cifra bytes arbitrarios con un IV aleatorio.
func (c *AESCodec) EncryptBytes(plaintext []byte) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("secret: generar IV: %w", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// DecryptBytes revierte EncryptBytes.
func (c *AESCodec) DecryptBytes(value string) ([]byte, error) {
	ivHex, ctHex, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || ivHex == "" || ctHex == "" {
		return nil, ErrInvalidCiphertext
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, ErrInvalidCiphertext
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, ErrInvalidCiphertext
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, ct)
	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	return plain, nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrInvalidCiphertext
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrInvalidCiphertext
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrInvalidCiphertext
		}
	}
	return b[:len(b)-n], nil
}
