package secret_test

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfe-emissor/internal/infrastructure/secret"
)

func newCodec(t *testing.T, key string) *secret.AESCodec {
	t.Helper()
	c, err := secret.NewAESCodec(key, "")
	require.NoError(t, err)
	return c
}

func TestAESCodec_RoundTripTexto(t *testing.T) {
	c := newCodec(t, "chave-de-teste")
	for _, in := range []string{"", "1234", "senha com acentuação ç", strings.Repeat("x", 16), strings.Repeat("y", 1000)} {
		enc, err := c.Encrypt(in)
		require.NoError(t, err)
		assert.Contains(t, enc, ":")
		dec, err := c.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, in, dec)
	}
}

func TestAESCodec_RoundTripBytesArbitrarios(t *testing.T) {
	c := newCodec(t, "chave-de-teste")
	for size := 0; size < 70; size++ {
		in := make([]byte, size)
		_, err := rand.Read(in)
		require.NoError(t, err)

		enc, err := c.EncryptBytes(in)
		require.NoError(t, err)
		dec, err := c.DecryptBytes(enc)
		require.NoError(t, err)
		assert.Equal(t, in, dec, "tamaño %d", size)
	}
}

func TestAESCodec_IVAleatorio(t *testing.T) {
	c := newCodec(t, "chave-de-teste")
	a, err := c.Encrypt("mesma senha")
	require.NoError(t, err)
	b, err := c.Encrypt("mesma senha")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestAESCodec_FormatoInvalido(t *testing.T) {
	c := newCodec(t, "chave-de-teste")
	for _, in := range []string{"", "sem-separador", "zz:00", "00112233445566778899aabbccddeeff:", "0011:00112233445566778899aabbccddeeff"} {
		_, err := c.Decrypt(in)
		assert.ErrorIs(t, err, secret.ErrInvalidCiphertext, in)
	}
}

func TestAESCodec_OtraLlaveNoDescifra(t *testing.T) {
	enc, err := newCodec(t, "chave-a").Encrypt("segredo-do-certificado")
	require.NoError(t, err)

	dec, err := newCodec(t, "chave-b").Decrypt(enc)
	if err == nil {
		// Con probabilidad ~1/256 el padding resulta válido por casualidad.
		assert.NotEqual(t, "segredo-do-certificado", dec)
	}
}

func TestNewAESCodec_SecretoVacio(t *testing.T) {
	_, err := secret.NewAESCodec("", "")
	assert.Error(t, err)
}
