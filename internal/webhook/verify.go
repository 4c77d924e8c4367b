// Package webhook verifies provider callback signatures. Two scheme
// families exist: HMAC-SHA1 over a canonicalized URL+parameter string
// (Twilio), and HMAC-SHA256 over the raw request body.
package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sort"
)

// TwilioSignature computes the expected X-Twilio-Signature value: the
// full request URL concatenated with every POST parameter name and
// value in sorted key order, HMAC-SHA1 signed and base64 encoded.
func TwilioSignature(url string, params map[string]string, authToken string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := url
	for _, k := range keys {
		data += k + params[k]
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyTwilioSignature checks a Twilio-style signature in constant
// time.
func VerifyTwilioSignature(url string, params map[string]string, signature, authToken string) bool {
	expected := TwilioSignature(url, params, authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// BodySignature computes the hex HMAC-SHA256 of a raw request body.
func BodySignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyBodySignature checks an HMAC-SHA256 body signature in constant
// time.
func VerifyBodySignature(body []byte, signature, secret string) bool {
	expected := BodySignature(body, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}
