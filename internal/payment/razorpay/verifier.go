// Package razorpay verifies checkout signatures and talks to the Razorpay
// Orders API.
package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"ms-storefront/internal/apperror"
)

type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Sign returns hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func Sign(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature Razorpay handed to the browser after checkout.
func (v *Verifier) Verify(gatewayOrderID, gatewayPaymentID, signature string) error {
	if v.secret == "" {
		return apperror.Configuration("Razorpay secret not configured")
	}
	if gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return apperror.Validation("Missing payment verification fields")
	}

	expected := Sign(v.secret, gatewayOrderID, gatewayPaymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return apperror.Verification("Invalid payment signature")
	}
	return nil
}
