package messenger

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseline/messenger-intake/pkg/util/errorutil"
)

func sign256(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func sign1(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureSHA256(t *testing.T) {
	body := []byte(`{"object":"page"}`)
	require.NoError(t, VerifySignature("secret", body, sign256("secret", body)))
}

func TestVerifySignatureSHA1(t *testing.T) {
	body := []byte(`{"object":"page"}`)
	require.NoError(t, VerifySignature("secret", body, sign1("secret", body)))
}

func TestVerifySignatureMismatch(t *testing.T) {
	body := []byte(`{"object":"page"}`)
	err := VerifySignature("secret", body, sign256("wrong-secret", body))
	require.Error(t, err)
	assert.True(t, errorutil.IsCode(err, errorutil.CodeAuthenticationFailed))
}

func TestVerifySignatureTamperedBody(t *testing.T) {
	sig := sign256("secret", []byte(`{"object":"page"}`))
	err := VerifySignature("secret", []byte(`{"object":"evil"}`), sig)
	require.Error(t, err)
}

func TestVerifySignatureMissingHeader(t *testing.T) {
	err := VerifySignature("secret", []byte("body"), "")
	require.Error(t, err)
	assert.True(t, errorutil.IsCode(err, errorutil.CodeAuthenticationFailed))
}

func TestVerifySignatureUnsupportedScheme(t *testing.T) {
	err := VerifySignature("secret", []byte("body"), "md5=abcdef")
	require.Error(t, err)
}

func TestVerifySignatureSkippedWithoutSecret(t *testing.T) {
	assert.NoError(t, VerifySignature("", []byte("body"), ""))
	assert.NoError(t, VerifySignature("", []byte("body"), "sha256=bogus"))
}
