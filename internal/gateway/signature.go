package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID" under secret,
// which is what the gateway hands the browser after a completed payment.
func Sign(secret, orderID, paymentID string) string {
	return hex.EncodeToString(mac(secret, orderID, paymentID))
}

// VerifySignature recomputes the callback signature and compares it in
// constant time. Any empty input fails.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, mac(secret, orderID, paymentID))
}

func mac(secret, orderID, paymentID string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(orderID + "|" + paymentID))
	return h.Sum(nil)
}
