package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Signature headers, checked in order.
const (
	HeaderSignature       = "X-Webhook-Signature"
	HeaderHubSignature256 = "X-Hub-Signature-256"
)

type Verification int

const (
	// Skipped means no secret is configured or the sender sent no signature.
	// The request is accepted unverified.
	Skipped Verification = iota
	Valid
	Invalid
)

func (v Verification) String() string {
	switch v {
	case Skipped:
		return "skipped"
	case Valid:
		return "valid"
	default:
		return "invalid"
	}
}

// OK reports whether the request may proceed.
func (v Verification) OK() bool {
	return v != Invalid
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// SignatureHeader returns the first recognised signature header on h.
func SignatureHeader(h http.Header) string {
	if v := h.Get(HeaderSignature); v != "" {
		return v
	}
	return h.Get(HeaderHubSignature256)
}

// VerifySignature checks header against the HMAC of the raw body bytes.
// header may be "sha256=<hex>" or bare hex.
func VerifySignature(body []byte, header, secret string) Verification {
	header = strings.TrimSpace(header)
	if secret == "" || header == "" {
		return Skipped
	}

	sig := header
	if len(sig) > 7 && strings.EqualFold(sig[:7], "sha256=") {
		sig = sig[7:]
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return Invalid
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return Invalid
	}
	return Valid
}

// Verifier applies the configured policy for unsigned requests.
type Verifier struct {
	// RequireSignature rejects requests without a signature header when the
	// endpoint has a secret.
	RequireSignature bool
}

func (v Verifier) Verify(body []byte, headers http.Header, secret string) Verification {
	header := SignatureHeader(headers)
	if v.RequireSignature && secret != "" && strings.TrimSpace(header) == "" {
		return Invalid
	}
	return VerifySignature(body, header, secret)
}
