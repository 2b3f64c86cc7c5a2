package messenger

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/caseline/messenger-intake/pkg/util/errorutil"
)

// Signature header names sent by the Messenger platform.
const (
	SignatureHeader       = "X-Hub-Signature"
	SignatureHeader256    = "X-Hub-Signature-256"
	signatureSchemeSHA1   = "sha1"
	signatureSchemeSHA256 = "sha256"
)

// VerifySignature checks an X-Hub-Signature(-256) header against an HMAC
// recomputed over the exact raw body bytes. An empty app secret skips
// verification entirely; the caller is expected to log the degraded state.
func VerifySignature(appSecret string, body []byte, signatureHeader string) error {
	if appSecret == "" {
		return nil
	}
	if signatureHeader == "" {
		return errorutil.NewAuthenticationError("missing signature header")
	}

	scheme, provided, ok := strings.Cut(signatureHeader, "=")
	if !ok {
		return errorutil.NewAuthenticationError("malformed signature header")
	}

	var mac hash.Hash
	switch scheme {
	case signatureSchemeSHA256:
		mac = hmac.New(sha256.New, []byte(appSecret))
	case signatureSchemeSHA1:
		mac = hmac.New(sha1.New, []byte(appSecret))
	default:
		return errorutil.NewAuthenticationError("unsupported signature scheme")
	}

	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return errorutil.NewAuthenticationError("signature mismatch")
	}
	return nil
}
