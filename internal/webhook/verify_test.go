package webhook

import "testing"

func TestVerifyTwilioSignature(t *testing.T) {
	url := "https://mycompany.com/myapp.php?foo=1&bar=2"
	params := map[string]string{
		"CallSid": "CA1234567890ABCDE",
		"Caller":  "+12349013030",
		"Digits":  "1234",
		"From":    "+12349013030",
		"To":      "+18005551212",
	}
	authToken := "12345"

	// Known vector: HMAC-SHA1 over the URL plus the sorted key+value
	// concatenation, base64 encoded.
	sig := TwilioSignature(url, params, authToken)
	if sig != "0/KCTR6DLpKmkAf8muzZqo1nDgQ=" {
		t.Errorf("unexpected signature %q", sig)
	}

	if !VerifyTwilioSignature(url, params, sig, authToken) {
		t.Error("signature must verify")
	}
	if VerifyTwilioSignature(url, params, sig, "wrong-token") {
		t.Error("wrong token must not verify")
	}

	params["Digits"] = "9999"
	if VerifyTwilioSignature(url, params, sig, authToken) {
		t.Error("tampered params must not verify")
	}
}

func TestVerifyBodySignature(t *testing.T) {
	body := []byte(`{"RecordType":"Delivery","MessageID":"pm-1"}`)
	secret := "whsec_test"

	sig := BodySignature(body, secret)
	if !VerifyBodySignature(body, sig, secret) {
		t.Error("signature must verify")
	}
	if VerifyBodySignature(body, sig, "other-secret") {
		t.Error("wrong secret must not verify")
	}
	if VerifyBodySignature([]byte(`{}`), sig, secret) {
		t.Error("tampered body must not verify")
	}
}
